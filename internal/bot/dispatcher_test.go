package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kapu/gemini-telegram-bot-go/internal/llm"
	"github.com/kapu/gemini-telegram-bot-go/internal/prompt"
	"github.com/kapu/gemini-telegram-bot-go/internal/ratelimit"
	"github.com/kapu/gemini-telegram-bot-go/internal/session"
	"github.com/kapu/gemini-telegram-bot-go/internal/telegram"
	"github.com/kapu/gemini-telegram-bot-go/internal/throttle"
	"github.com/kapu/gemini-telegram-bot-go/internal/usage"
)

type sentMessage struct {
	chatID   int64
	text     string
	markdown bool
}

type fakeTransport struct {
	mu           sync.Mutex
	sent         []sentMessage
	actions      []int64
	failMarkdown bool
}

func (f *fakeTransport) SendMessage(ctx context.Context, chatID int64, text string, markdown bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if markdown && f.failMarkdown {
		return &telegram.APIError{Code: 400, Description: "Bad Request: can't parse entities"}
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, markdown: markdown})
	return nil
}

func (f *fakeTransport) SendChatAction(ctx context.Context, chatID int64, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, chatID)
	return nil
}

func (f *fakeTransport) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeTransport) lastText(t *testing.T) string {
	t.Helper()
	msgs := f.messages()
	if len(msgs) == 0 {
		t.Fatalf("no messages sent")
	}
	return msgs[len(msgs)-1].text
}

type fakeModel struct {
	mu    sync.Mutex
	calls int
	fn    func(history []llm.Turn, prompt string) (llm.ChatResult, error)
}

func (f *fakeModel) Chat(ctx context.Context, history []llm.Turn, prompt string) (llm.ChatResult, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return llm.ChatResult{Text: "ok", Usage: llm.Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}, HasUsage: true}, nil
	}
	return fn(history, prompt)
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	dispatcher *Dispatcher
	transport  *fakeTransport
	model      *fakeModel
	sessions   *session.Store
	limiter    *ratelimit.Limiter
	ledger     *usage.Ledger
	prompts    *prompt.Bundle
}

func newFixture(t *testing.T, dailyLimit int) *fixture {
	t.Helper()

	prompts, err := prompt.NewBundle("")
	if err != nil {
		t.Fatalf("load prompts: %v", err)
	}

	transport := &fakeTransport{}
	model := &fakeModel{}
	sessions := session.NewStore(prompts.SeedTurns, nil)
	limiter := ratelimit.NewLimiter(dailyLimit)
	ledger := usage.NewLedger(time.Now())

	dispatcher := NewDispatcher(
		transport, model, sessions, limiter,
		throttle.NewGate(0), ledger, prompts, nil,
	)

	return &fixture{
		dispatcher: dispatcher,
		transport:  transport,
		model:      model,
		sessions:   sessions,
		limiter:    limiter,
		ledger:     ledger,
		prompts:    prompts,
	}
}

func textMessage(chatID int64, text string) telegram.Message {
	return telegram.Message{
		MessageID: 1,
		Chat:      telegram.Chat{ID: chatID, Type: "private"},
		Text:      text,
	}
}

func TestStartCommandSeedsSessionAndGreets(t *testing.T) {
	fx := newFixture(t, 5)
	ctx := context.Background()

	fx.dispatcher.handleMessage(ctx, textMessage(1, "/start"))

	if !fx.sessions.Exists(1) {
		t.Fatalf("expected seeded session after /start")
	}
	if got := fx.transport.lastText(t); got != fx.prompts.Greeting() {
		t.Fatalf("expected greeting, got %q", got)
	}
	if fx.model.callCount() != 0 {
		t.Fatalf("commands must not invoke the model")
	}
}

func TestResetCommandDiscardsHistory(t *testing.T) {
	fx := newFixture(t, 5)
	ctx := context.Background()

	fx.dispatcher.handleMessage(ctx, textMessage(1, "hello"))
	snapshot, _ := fx.sessions.GetOrCreate(1)
	if len(snapshot.History) <= len(fx.prompts.SeedTurns()) {
		t.Fatalf("expected history beyond seed, got %d turns", len(snapshot.History))
	}

	fx.dispatcher.handleMessage(ctx, textMessage(1, "/reset"))

	snapshot, _ = fx.sessions.GetOrCreate(1)
	if len(snapshot.History) != len(fx.prompts.SeedTurns()) {
		t.Fatalf("expected reset session to hold only the seed, got %d turns", len(snapshot.History))
	}
	if got := fx.transport.lastText(t); got != fx.prompts.Greeting() {
		t.Fatalf("expected greeting after reset, got %q", got)
	}
}

func TestResetCommandWithBotSuffix(t *testing.T) {
	if !isResetCommand("/start@some_bot") {
		t.Fatalf("expected /start@bot to count as reset")
	}
	if !isResetCommand("/reset extra words") {
		t.Fatalf("expected /reset with arguments to count as reset")
	}
	if isResetCommand("/startling") {
		t.Fatalf("/startling is not a command")
	}
}

func TestOverLimitDeclinesWithoutModelCall(t *testing.T) {
	fx := newFixture(t, 2)
	ctx := context.Background()

	fx.dispatcher.handleMessage(ctx, textMessage(1, "one"))
	fx.dispatcher.handleMessage(ctx, textMessage(1, "two"))
	fx.dispatcher.handleMessage(ctx, textMessage(1, "three"))

	if fx.model.callCount() != 2 {
		t.Fatalf("expected exactly 2 model calls, got %d", fx.model.callCount())
	}
	if got := fx.transport.lastText(t); got != fx.prompts.OverLimit() {
		t.Fatalf("expected over-limit notice verbatim, got %q", got)
	}
	// 거절된 메시지는 카운트되지 않는다.
	if count := fx.limiter.Count(1, time.Now()); count != 2 {
		t.Fatalf("declined message must not count, got %d", count)
	}
}

func TestDeclinedMessageLeavesSessionUntouched(t *testing.T) {
	fx := newFixture(t, 1)
	ctx := context.Background()

	fx.dispatcher.handleMessage(ctx, textMessage(1, "one"))
	before, _ := fx.sessions.GetOrCreate(1)

	fx.dispatcher.handleMessage(ctx, textMessage(1, "two"))
	after, _ := fx.sessions.GetOrCreate(1)

	if len(after.History) != len(before.History) {
		t.Fatalf("declined message must not grow history: %d -> %d", len(before.History), len(after.History))
	}
}

func TestSuccessAppendsTurnsAndRecordsUsage(t *testing.T) {
	fx := newFixture(t, 5)
	ctx := context.Background()

	fx.model.fn = func(history []llm.Turn, prompt string) (llm.ChatResult, error) {
		return llm.ChatResult{
			Text:     "answer",
			Usage:    llm.Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
			HasUsage: true,
		}, nil
	}

	fx.dispatcher.handleMessage(ctx, textMessage(1, "question"))

	snapshot, _ := fx.sessions.GetOrCreate(1)
	seedLen := len(fx.prompts.SeedTurns())
	if len(snapshot.History) != seedLen+2 {
		t.Fatalf("expected seed+2 turns, got %d", len(snapshot.History))
	}
	if snapshot.History[seedLen].Content != "question" || snapshot.History[seedLen].Role != llm.RoleUser {
		t.Fatalf("unexpected user turn: %+v", snapshot.History[seedLen])
	}
	if snapshot.History[seedLen+1].Content != "answer" || snapshot.History[seedLen+1].Role != llm.RoleModel {
		t.Fatalf("unexpected model turn: %+v", snapshot.History[seedLen+1])
	}

	current := fx.ledger.Current()
	if current.Requests != 1 || current.InputTokens != 10 || current.OutputTokens != 20 || current.TotalTokens != 30 {
		t.Fatalf("unexpected ledger state: %+v", current)
	}
	if got := fx.transport.lastText(t); got != "answer" {
		t.Fatalf("expected model reply, got %q", got)
	}
}

func TestMissingUsageSkipsLedger(t *testing.T) {
	fx := newFixture(t, 5)
	ctx := context.Background()

	fx.model.fn = func(history []llm.Turn, prompt string) (llm.ChatResult, error) {
		return llm.ChatResult{Text: "answer"}, nil
	}

	fx.dispatcher.handleMessage(ctx, textMessage(1, "question"))

	if current := fx.ledger.Current(); current.Requests != 0 {
		t.Fatalf("missing usage metadata must skip the ledger, got %+v", current)
	}
	if got := fx.transport.lastText(t); got != "answer" {
		t.Fatalf("reply must still be delivered, got %q", got)
	}
}

func TestEmptyReplySendsNoticeWithoutAppending(t *testing.T) {
	fx := newFixture(t, 5)
	ctx := context.Background()

	fx.model.fn = func(history []llm.Turn, prompt string) (llm.ChatResult, error) {
		return llm.ChatResult{Usage: llm.Usage{TotalTokens: 3}, HasUsage: true}, nil
	}

	fx.dispatcher.handleMessage(ctx, textMessage(1, "question"))

	snapshot, _ := fx.sessions.GetOrCreate(1)
	if len(snapshot.History) != len(fx.prompts.SeedTurns()) {
		t.Fatalf("empty reply must not grow history, got %d turns", len(snapshot.History))
	}
	if got := fx.transport.lastText(t); got != fx.prompts.EmptyReply() {
		t.Fatalf("expected empty-reply notice, got %q", got)
	}
	if current := fx.ledger.Current(); current.Requests != 1 {
		t.Fatalf("usage metadata was present, ledger must record: %+v", current)
	}
}

func TestContextTooLargeResetsSession(t *testing.T) {
	fx := newFixture(t, 5)
	ctx := context.Background()

	fx.dispatcher.handleMessage(ctx, textMessage(1, "warmup"))

	fx.model.fn = func(history []llm.Turn, prompt string) (llm.ChatResult, error) {
		return llm.ChatResult{}, errors.New("input token count exceeds the maximum")
	}
	fx.dispatcher.handleMessage(ctx, textMessage(1, "huge"))

	if fx.sessions.Exists(1) {
		t.Fatalf("context overflow must destroy the session")
	}
	if got := fx.transport.lastText(t); got != fx.prompts.MemoryReset() {
		t.Fatalf("expected memory-reset notice, got %q", got)
	}

	// 다음 메시지는 프리앰블만 심긴 새 세션에서 출발한다.
	fx.model.fn = func(history []llm.Turn, prompt string) (llm.ChatResult, error) {
		if len(history) != len(fx.prompts.SeedTurns()) {
			t.Errorf("expected fresh seeded history, got %d turns", len(history))
		}
		return llm.ChatResult{Text: "fresh", HasUsage: true}, nil
	}
	fx.dispatcher.handleMessage(ctx, textMessage(1, "again"))
}

func TestUpstreamQuotaPreservesSession(t *testing.T) {
	fx := newFixture(t, 5)
	ctx := context.Background()

	fx.dispatcher.handleMessage(ctx, textMessage(1, "warmup"))
	before, _ := fx.sessions.GetOrCreate(1)

	fx.model.fn = func(history []llm.Turn, prompt string) (llm.ChatResult, error) {
		return llm.ChatResult{}, errors.New("RESOURCE_EXHAUSTED: quota exceeded")
	}
	fx.dispatcher.handleMessage(ctx, textMessage(1, "question"))

	after, _ := fx.sessions.GetOrCreate(1)
	if len(after.History) != len(before.History) {
		t.Fatalf("quota failure must leave the session intact: %d -> %d", len(before.History), len(after.History))
	}
	if got := fx.transport.lastText(t); got != fx.prompts.QuotaExhausted() {
		t.Fatalf("expected quota notice, got %q", got)
	}
}

func TestUnclassifiedFailureEchoesError(t *testing.T) {
	fx := newFixture(t, 5)
	ctx := context.Background()

	fx.model.fn = func(history []llm.Turn, prompt string) (llm.ChatResult, error) {
		return llm.ChatResult{}, errors.New("connection reset by peer")
	}
	fx.dispatcher.handleMessage(ctx, textMessage(1, "question"))

	got := fx.transport.lastText(t)
	if !strings.HasPrefix(got, fx.prompts.ErrorPrefix()) {
		t.Fatalf("expected error prefix, got %q", got)
	}
	if !strings.Contains(got, "connection reset by peer") {
		t.Fatalf("expected raw error in reply, got %q", got)
	}
}

func TestMarkdownFallbackRetriesPlain(t *testing.T) {
	fx := newFixture(t, 5)
	fx.transport.failMarkdown = true
	ctx := context.Background()

	fx.model.fn = func(history []llm.Turn, prompt string) (llm.ChatResult, error) {
		return llm.ChatResult{Text: "*broken markdown", HasUsage: true}, nil
	}
	fx.dispatcher.handleMessage(ctx, textMessage(1, "question"))

	msgs := fx.transport.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one delivered message, got %d", len(msgs))
	}
	if msgs[0].markdown {
		t.Fatalf("fallback delivery must be plain")
	}
	if msgs[0].text != "*broken markdown" {
		t.Fatalf("fallback must carry the same text, got %q", msgs[0].text)
	}
}

func TestLongReplyIsSegmentedInOrder(t *testing.T) {
	fx := newFixture(t, 5)
	ctx := context.Background()

	long := strings.Repeat("a", 4000) + strings.Repeat("b", 100)
	fx.model.fn = func(history []llm.Turn, prompt string) (llm.ChatResult, error) {
		return llm.ChatResult{Text: long, HasUsage: true}, nil
	}
	fx.dispatcher.handleMessage(ctx, textMessage(1, "question"))

	msgs := fx.transport.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(msgs))
	}
	if msgs[0].text+msgs[1].text != long {
		t.Fatalf("chunk concatenation must reproduce the reply")
	}
}

func TestNonTextUpdatesIgnored(t *testing.T) {
	fx := newFixture(t, 5)
	ctx := context.Background()

	fx.dispatcher.HandleUpdate(ctx, telegram.Update{UpdateID: 1})
	fx.dispatcher.HandleUpdate(ctx, telegram.Update{UpdateID: 2, Message: &telegram.Message{Chat: telegram.Chat{ID: 1}, Text: "   "}})

	if fx.model.callCount() != 0 {
		t.Fatalf("non-text updates must not reach the model")
	}
	if len(fx.transport.messages()) != 0 {
		t.Fatalf("non-text updates must not produce replies")
	}
}

func TestLanesPreservePerChatOrder(t *testing.T) {
	fx := newFixture(t, 100)
	ctx := context.Background()

	var mu sync.Mutex
	var prompts []string
	done := make(chan struct{}, 10)
	fx.model.fn = func(history []llm.Turn, prompt string) (llm.ChatResult, error) {
		mu.Lock()
		prompts = append(prompts, prompt)
		mu.Unlock()
		done <- struct{}{}
		return llm.ChatResult{Text: "ok", HasUsage: true}, nil
	}

	for i := 0; i < 5; i++ {
		fx.dispatcher.HandleUpdate(ctx, telegram.Update{
			UpdateID: int64(i),
			Message:  &telegram.Message{Chat: telegram.Chat{ID: 7}, Text: string(rune('a' + i))},
		})
	}

	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, p := range prompts {
		if want := string(rune('a' + i)); p != want {
			t.Fatalf("out-of-order processing: position %d got %q, want %q", i, p, want)
		}
	}
}
