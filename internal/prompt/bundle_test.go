package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kapu/gemini-telegram-bot-go/internal/llm"
)

func TestNewBundleEmbedded(t *testing.T) {
	bundle, err := NewBundle("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bundle.System() == "" {
		t.Fatalf("expected system prompt")
	}
	if bundle.Greeting() == "" {
		t.Fatalf("expected greeting")
	}
	if bundle.OverLimit() == "" || bundle.QuotaExhausted() == "" || bundle.MemoryReset() == "" {
		t.Fatalf("expected fixed reply texts")
	}
	if bundle.ErrorPrefix() == "" {
		t.Fatalf("expected error prefix")
	}
}

func TestSeedTurnsOrder(t *testing.T) {
	bundle, err := NewBundle("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seed := bundle.SeedTurns()
	if len(seed) != 2 {
		t.Fatalf("expected 2 seed turns, got %d", len(seed))
	}
	if seed[0].Role != llm.RoleUser || seed[1].Role != llm.RoleModel {
		t.Fatalf("unexpected seed roles: %s, %s", seed[0].Role, seed[1].Role)
	}
	if seed[1].Content != bundle.Greeting() {
		t.Fatalf("acknowledgment turn should carry the greeting")
	}
}

func TestNewBundleDirOverride(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		"system: custom system",
		"greeting: custom greeting",
		"over_limit: custom limit",
		"quota_exhausted: custom quota",
		"memory_reset: custom reset",
		"empty_reply: custom empty",
		`error_prefix: "!! "`,
	}, "\n")
	if err := os.WriteFile(filepath.Join(dir, "persona.yml"), []byte(content), 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	bundle, err := NewBundle(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bundle.System() != "custom system" {
		t.Fatalf("expected override system, got: %s", bundle.System())
	}
	if bundle.ErrorPrefix() != "!! " {
		t.Fatalf("expected override prefix, got: %q", bundle.ErrorPrefix())
	}
}

func TestNewBundleMissingField(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "persona.yml"), []byte("system: only system"), 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	if _, err := NewBundle(dir); err == nil {
		t.Fatalf("expected error for incomplete persona")
	}
}
