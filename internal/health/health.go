package health

import (
	"time"

	"github.com/kapu/gemini-telegram-bot-go/internal/config"
	"github.com/kapu/gemini-telegram-bot-go/internal/session"
	"github.com/kapu/gemini-telegram-bot-go/internal/usage"
)

var startTime = time.Now()

// Component 는 상태 구성 요소다.
type Component struct {
	Status string         `json:"status"`
	Detail map[string]any `json:"detail"`
}

// Response 는 상태 응답 본문이다.
type Response struct {
	Status     string               `json:"status"`
	Components map[string]Component `json:"components"`
}

// Collect 는 헬스 상태를 수집한다. 외부 의존성 호출 없이 프로세스
// 내부 상태만 읽으므로 liveness/readiness 양쪽에 그대로 쓴다.
func Collect(cfg *config.Config, sessions *session.Store, ledger *usage.Ledger) Response {
	components := map[string]Component{
		"app":      buildAppStatus(),
		"gemini":   buildGeminiStatus(cfg),
		"sessions": buildSessionStatus(sessions),
		"usage":    buildUsageStatus(ledger),
	}

	overall := "ok"
	for _, component := range components {
		if component.Status != "ok" {
			overall = "degraded"
			break
		}
	}

	return Response{Status: overall, Components: components}
}

func buildAppStatus() Component {
	return Component{
		Status: "ok",
		Detail: map[string]any{
			"uptime_seconds": int(time.Since(startTime).Seconds()),
		},
	}
}

func buildGeminiStatus(cfg *config.Config) Component {
	apiKeyPresent := false
	model := ""
	timeoutSeconds := 0

	if cfg != nil {
		apiKeyPresent = cfg.Gemini.PrimaryKey() != ""
		model = cfg.Gemini.Model
		timeoutSeconds = cfg.Gemini.TimeoutSeconds
	}

	status := "ok"
	if !apiKeyPresent {
		status = "degraded"
	}

	return Component{
		Status: status,
		Detail: map[string]any{
			"api_key_present": apiKeyPresent,
			"model":           model,
			"timeout_seconds": timeoutSeconds,
		},
	}
}

func buildSessionStatus(sessions *session.Store) Component {
	count := 0
	if sessions != nil {
		count = sessions.Count()
	}
	return Component{
		Status: "ok",
		Detail: map[string]any{
			"backend":       "memory",
			"session_count": count,
		},
	}
}

func buildUsageStatus(ledger *usage.Ledger) Component {
	detail := map[string]any{}
	if ledger != nil {
		current := ledger.Current()
		detail["day"] = current.Day
		detail["requests"] = current.Requests
		detail["total_tokens"] = current.TotalTokens
	}
	return Component{Status: "ok", Detail: detail}
}
