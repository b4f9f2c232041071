package usage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Sender 는 운영자에게 리포트를 푸시하는 전송 계층 최소 인터페이스다.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markdown bool) error
}

// Reporter 는 주기적으로 원장을 확인해 날짜가 넘어간 경우
// 마감된 하루의 사용량 리포트를 운영자 채팅으로 보낸다.
type Reporter struct {
	ledger         *Ledger
	sender         Sender
	operatorChatID int64
	checkInterval  time.Duration
	logger         *slog.Logger

	now func() time.Time
}

// NewReporter 는 리포터를 생성한다. operatorChatID 가 0 이면
// 푸시는 생략되고 원장 리셋만 수행된다.
func NewReporter(
	ledger *Ledger,
	sender Sender,
	operatorChatID int64,
	checkInterval time.Duration,
	logger *slog.Logger,
) *Reporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if checkInterval <= 0 {
		checkInterval = time.Hour
	}
	return &Reporter{
		ledger:         ledger,
		sender:         sender,
		operatorChatID: operatorChatID,
		checkInterval:  checkInterval,
		logger:         logger,
		now:            time.Now,
	}
}

// Run 는 컨텍스트가 취소될 때까지 리포트 루프를 돈다.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.check(ctx)
		}
	}
}

// check 는 1회 분량의 리포트 확인이다. 테스트에서 직접 호출한다.
func (r *Reporter) check(ctx context.Context) {
	snapshot, ok := r.ledger.DrainIfDayChanged(r.now())
	if !ok {
		return
	}

	r.logger.Info(
		"usage_day_closed",
		"day", snapshot.Day,
		"requests", snapshot.Requests,
		"input_tokens", snapshot.InputTokens,
		"output_tokens", snapshot.OutputTokens,
		"total_tokens", snapshot.TotalTokens,
	)

	if r.sender == nil || r.operatorChatID == 0 {
		return
	}

	if err := r.sender.SendMessage(ctx, r.operatorChatID, FormatReport(snapshot), false); err != nil {
		r.logger.Warn("usage_report_send_failed", "day", snapshot.Day, "err", err)
	}
}

// FormatReport 는 사람이 읽을 리포트 본문을 만든다.
func FormatReport(s Snapshot) string {
	return fmt.Sprintf(
		"📊 Usage report for %s\nRequests: %d\nInput tokens: %d\nOutput tokens: %d\nTotal tokens: %d",
		s.Day,
		s.Requests,
		s.InputTokens,
		s.OutputTokens,
		s.TotalTokens,
	)
}
