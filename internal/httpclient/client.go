package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Config 는 아웃바운드 HTTP 클라이언트 설정이다.
type Config struct {
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

// New 는 전송 계층용 HTTP 클라이언트를 생성한다. 텔레그램 롱폴링은
// 응답이 수십 초 지연될 수 있으므로 Timeout 은 폴링 대기보다
// 길게 잡아야 한다.
func New(cfg Config) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}
