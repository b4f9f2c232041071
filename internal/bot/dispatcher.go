package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kapu/gemini-telegram-bot-go/internal/gemini"
	"github.com/kapu/gemini-telegram-bot-go/internal/llm"
	"github.com/kapu/gemini-telegram-bot-go/internal/prompt"
	"github.com/kapu/gemini-telegram-bot-go/internal/ratelimit"
	"github.com/kapu/gemini-telegram-bot-go/internal/session"
	"github.com/kapu/gemini-telegram-bot-go/internal/telegram"
	"github.com/kapu/gemini-telegram-bot-go/internal/textutil"
	"github.com/kapu/gemini-telegram-bot-go/internal/throttle"
	"github.com/kapu/gemini-telegram-bot-go/internal/usage"
)

// Transport 는 디스패처가 쓰는 전송 계층 최소 인터페이스다.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, markdown bool) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// Model 는 업스트림 모델 호출 최소 인터페이스다.
type Model interface {
	Chat(ctx context.Context, history []llm.Turn, prompt string) (llm.ChatResult, error)
}

// Dispatcher 는 메시지 하나의 전체 흐름을 조율한다:
// 쿼터 → 세션 → 스로틀 → 모델 호출 → 사용량 → 분할 응답.
// 메시지 처리 중의 어떤 실패도 프로세스나 다른 사용자 세션을
// 건드리지 않는다.
type Dispatcher struct {
	transport Transport
	model     Model
	sessions  *session.Store
	limiter   *ratelimit.Limiter
	gate      *throttle.Gate
	ledger    *usage.Ledger
	prompts   *prompt.Bundle
	logger    *slog.Logger
	lanes     *lanes

	now func() time.Time
}

// NewDispatcher 는 디스패처를 생성한다. 상태 컨테이너는 전부
// 주입받는다(전역 상태 없음).
func NewDispatcher(
	transport Transport,
	model Model,
	sessions *session.Store,
	limiter *ratelimit.Limiter,
	gate *throttle.Gate,
	ledger *usage.Ledger,
	prompts *prompt.Bundle,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		transport: transport,
		model:     model,
		sessions:  sessions,
		limiter:   limiter,
		gate:      gate,
		ledger:    ledger,
		prompts:   prompts,
		logger:    logger,
		lanes:     newLanes(),
		now:       time.Now,
	}
}

// HandleUpdate 는 업데이트를 채팅 레인에 넣는다. 같은 채팅의 응답
// 순서는 레인이 보장하고, 다른 채팅끼리는 동시에 진행된다.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update telegram.Update) {
	if update.Message == nil || strings.TrimSpace(update.Message.Text) == "" {
		return
	}

	message := *update.Message
	d.lanes.submit(message.Chat.ID, func() {
		if ctx.Err() != nil {
			return
		}
		d.handleMessage(ctx, message)
	})
}

func (d *Dispatcher) handleMessage(ctx context.Context, message telegram.Message) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	if isResetCommand(text) {
		d.handleReset(ctx, chatID)
		return
	}

	// 1) 쿼터 검사. 거절 시 세션도 업스트림도 건드리지 않고,
	// 이 메시지는 카운트되지 않는다.
	today := d.now()
	if !d.limiter.Admit(chatID, today) {
		d.logger.Debug("message_declined_over_limit", "chat_id", chatID)
		d.safeSend(ctx, chatID, d.prompts.OverLimit())
		return
	}

	// 2) 수락된 메시지만 오늘 쿼터에 센다.
	d.limiter.Record(chatID, today)

	// 3) 세션 확보(없으면 프리앰블을 심어 생성).
	snapshot, _ := d.sessions.GetOrCreate(chatID)

	// 4) "입력 중" 표시는 최선 노력이다.
	if err := d.transport.SendChatAction(ctx, chatID, telegram.ActionTyping); err != nil {
		d.logger.Debug("chat_action_failed", "chat_id", chatID, "err", err)
	}

	// 5) 전역 스로틀 슬롯 대기.
	if err := d.gate.Acquire(ctx); err != nil {
		d.logger.Debug("throttle_wait_aborted", "chat_id", chatID, "err", err)
		return
	}

	// 6) 모델 호출.
	result, err := d.model.Chat(ctx, snapshot.History, text)
	if err != nil {
		d.handleUpstreamFailure(ctx, chatID, err)
		return
	}

	// 7) 성공 경로: 히스토리 연장 → 사용량 적재 → 응답.
	if result.Text != "" {
		d.sessions.Append(chatID,
			llm.Turn{Role: llm.RoleUser, Content: text},
			llm.Turn{Role: llm.RoleModel, Content: result.Text},
		)
	}

	d.recordUsage(chatID, result)

	if result.Text == "" {
		d.safeSend(ctx, chatID, d.prompts.EmptyReply())
		return
	}
	d.safeSend(ctx, chatID, result.Text)
}

// handleReset 는 /start, /reset 처리를 맡는다. 세션을 제거한 뒤
// 프리앰블을 심은 새 세션을 만들고 인사를 보낸다.
func (d *Dispatcher) handleReset(ctx context.Context, chatID int64) {
	d.sessions.Reset(chatID)
	d.sessions.GetOrCreate(chatID)
	d.safeSend(ctx, chatID, d.prompts.Greeting())
}

// handleUpstreamFailure 는 실패 종류별로 복구한다. 어떤 경우에도
// 오류를 다시 던지지 않는다.
func (d *Dispatcher) handleUpstreamFailure(ctx context.Context, chatID int64, err error) {
	switch gemini.Classify(err) {
	case gemini.FailureQuotaExhausted:
		d.logger.Warn("upstream_quota_exhausted", "chat_id", chatID, "err", err)
		d.safeSend(ctx, chatID, d.prompts.QuotaExhausted())
	case gemini.FailureContextTooLarge:
		d.logger.Warn("context_too_large", "chat_id", chatID, "err", err)
		d.sessions.Reset(chatID)
		d.safeSend(ctx, chatID, d.prompts.MemoryReset())
	default:
		d.logger.Error("upstream_call_failed", "chat_id", chatID, "err", err)
		d.safeSend(ctx, chatID, d.prompts.ErrorPrefix()+err.Error())
	}
}

// recordUsage 는 토큰 사용량을 원장에 적재한다. 메타데이터가 없으면
// 기록 자체를 건너뛰고 경고만 남긴다. 실패가 사용자에게 보이는 일은 없다.
func (d *Dispatcher) recordUsage(chatID int64, result llm.ChatResult) {
	if !result.HasUsage {
		d.logger.Warn("usage_metadata_missing", "chat_id", chatID)
		return
	}
	d.ledger.Record(
		int64(result.Usage.InputTokens),
		int64(result.Usage.OutputTokens),
		int64(result.Usage.TotalTokens),
	)
}

// safeSend 는 응답을 전송 한도 이하 조각으로 잘라 순서대로 보낸다.
// 조각마다 리치 포맷으로 먼저 시도하고, 실패하면 그 조각만 플레인으로
// 한 번 재시도한다. 조각 실패는 나머지 조각 전송을 막지 않는다.
func (d *Dispatcher) safeSend(ctx context.Context, chatID int64, text string) {
	for _, chunk := range textutil.Segment(text, textutil.DefaultMaxLength) {
		if err := d.transport.SendMessage(ctx, chatID, chunk, true); err == nil {
			continue
		} else {
			d.logger.Debug("rich_send_failed", "chat_id", chatID, "err", err)
		}
		if err := d.transport.SendMessage(ctx, chatID, chunk, false); err != nil {
			d.logger.Warn("plain_send_failed", "chat_id", chatID, "err", err)
		}
	}
}

func isResetCommand(text string) bool {
	command := text
	if idx := strings.IndexAny(command, " \t"); idx >= 0 {
		command = command[:idx]
	}
	// "/start@botname" 형태도 허용한다.
	if idx := strings.IndexByte(command, '@'); idx >= 0 {
		command = command[:idx]
	}
	switch command {
	case "/start", "/reset":
		return true
	default:
		return false
	}
}
