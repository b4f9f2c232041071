package prompt

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/kapu/gemini-telegram-bot-go/internal/llm"
)

//go:embed prompts/*.yml
var promptsFS embed.FS

// Bundle 는 페르소나 프리앰블과 고정 응답 문구 모음이다.
type Bundle struct {
	prompts map[string]map[string]string
}

// NewBundle 는 내장 프롬프트를 로드한다. dir 이 비어 있지 않으면
// 해당 디렉터리의 YAML 이 내장본을 대체한다.
func NewBundle(dir string) (*Bundle, error) {
	loaded, err := LoadYAMLDir(promptsFS, "prompts")
	if err != nil {
		return nil, fmt.Errorf("load embedded prompts: %w", err)
	}

	if strings.TrimSpace(dir) != "" {
		override, err := LoadYAMLDir(os.DirFS(dir), ".")
		if err != nil {
			return nil, fmt.Errorf("load prompts dir: %w", err)
		}
		for name, mapping := range override {
			loaded[name] = mapping
		}
	}

	bundle := &Bundle{prompts: loaded}
	// 필수 필드는 기동 시점에 전부 검증한다.
	for _, key := range []string{"system", "greeting", "over_limit", "quota_exhausted", "memory_reset", "empty_reply", "error_prefix"} {
		if _, err := bundle.field(key); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

// SeedTurns 는 새 세션에 심을 페르소나 프리앰블 턴 쌍을 반환한다.
func (b *Bundle) SeedTurns() []llm.Turn {
	return []llm.Turn{
		{Role: llm.RoleUser, Content: b.System()},
		{Role: llm.RoleModel, Content: b.Greeting()},
	}
}

// System 은 페르소나 시스템 프롬프트를 반환한다.
func (b *Bundle) System() string { return b.mustField("system") }

// Greeting 은 페르소나 인사(확인) 문구를 반환한다.
func (b *Bundle) Greeting() string { return b.mustField("greeting") }

// OverLimit 은 일일 제한 초과 안내 문구를 반환한다.
func (b *Bundle) OverLimit() string { return b.mustField("over_limit") }

// QuotaExhausted 는 업스트림 쿼터 소진 안내 문구를 반환한다.
func (b *Bundle) QuotaExhausted() string { return b.mustField("quota_exhausted") }

// MemoryReset 은 컨텍스트 초기화 안내 문구를 반환한다.
func (b *Bundle) MemoryReset() string { return b.mustField("memory_reset") }

// EmptyReply 는 빈 응답 안내 문구를 반환한다.
func (b *Bundle) EmptyReply() string { return b.mustField("empty_reply") }

// ErrorPrefix 는 미분류 오류 응답 앞에 붙는 경고 마커다.
func (b *Bundle) ErrorPrefix() string { return b.mustField("error_prefix") }

func (b *Bundle) field(key string) (string, error) {
	if b == nil || b.prompts == nil {
		return "", fmt.Errorf("prompts not initialized")
	}
	persona, ok := b.prompts["persona"]
	if !ok {
		return "", fmt.Errorf("prompt not found: persona")
	}
	value, ok := persona[key]
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("prompt field missing: persona.%s", key)
	}
	return value, nil
}

func (b *Bundle) mustField(key string) string {
	value, err := b.field(key)
	if err != nil {
		return ""
	}
	return value
}
