package config

import "time"

// TelegramConfig: 텔레그램 봇 전송 계층 설정입니다.
type TelegramConfig struct {
	BotToken           string
	APIBaseURL         string
	PollTimeoutSeconds int
	OperatorChatID     int64
}

// HasOperator: 운영자 채팅 ID 설정 여부를 반환합니다.
func (t TelegramConfig) HasOperator() bool {
	return t.OperatorChatID != 0
}

// GeminiConfig: Gemini 모델 설정입니다.
type GeminiConfig struct {
	APIKeys         []string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	TimeoutSeconds  int
}

// PrimaryKey: 기본 API 키를 반환합니다.
func (g GeminiConfig) PrimaryKey() string {
	if len(g.APIKeys) == 0 {
		return ""
	}
	return g.APIKeys[0]
}

// QuotaConfig: 사용자별 일일 메시지 제한 설정입니다.
type QuotaConfig struct {
	DailyMessageLimit int
}

// ThrottleConfig: 업스트림 호출 최소 간격 설정입니다.
type ThrottleConfig struct {
	MinIntervalMS int
}

// MinInterval: 최소 호출 간격을 Duration으로 반환합니다.
func (t ThrottleConfig) MinInterval() time.Duration {
	return time.Duration(t.MinIntervalMS) * time.Millisecond
}

// UsageConfig: 사용량 리포트 주기 설정입니다.
type UsageConfig struct {
	ReportCheckMinutes int
}

// ReportCheckInterval: 리포트 확인 주기를 Duration으로 반환합니다.
func (u UsageConfig) ReportCheckInterval() time.Duration {
	return time.Duration(u.ReportCheckMinutes) * time.Minute
}

// LoggingConfig: 로깅 설정입니다.
type LoggingConfig struct {
	Level      string
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// HTTPConfig: 상태 확인용 HTTP 서버 설정입니다.
type HTTPConfig struct {
	Host         string
	Port         int
	HTTP2Enabled bool
}

// PromptConfig: 프롬프트 번들 설정입니다.
type PromptConfig struct {
	Dir string
}

// Config: 애플리케이션 전체 설정입니다.
type Config struct {
	Telegram TelegramConfig
	Gemini   GeminiConfig
	Quota    QuotaConfig
	Throttle ThrottleConfig
	Usage    UsageConfig
	Logging  LoggingConfig
	HTTP     HTTPConfig
	Prompt   PromptConfig
}
