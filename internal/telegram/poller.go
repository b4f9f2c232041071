package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	pollRetryInitial = time.Second
	pollRetryMax     = 30 * time.Second
)

// Handler 는 업데이트 하나를 처리한다. 같은 채팅의 업데이트는
// 수신 순서대로 전달된다.
type Handler interface {
	HandleUpdate(ctx context.Context, update Update)
}

// Poller 는 getUpdates 롱폴링 루프다. 전송 계층은 채팅별 업데이트를
// 순서대로 주므로, 순서 보존 책임은 핸들러 쪽 채팅 레인에 있다.
type Poller struct {
	client *Client
	logger *slog.Logger
}

// NewPoller 는 폴러를 생성한다.
func NewPoller(client *Client, logger *slog.Logger) *Poller {
	return &Poller{client: client, logger: logger}
}

// Run 는 컨텍스트가 취소될 때까지 업데이트를 받아 핸들러에 넘긴다.
// 폴링 오류는 백오프 후 재시도하며 프로세스를 죽이지 않는다.
func (p *Poller) Run(ctx context.Context, handler Handler) error {
	var offset int64
	retryDelay := pollRetryInitial

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := p.client.GetUpdates(ctx, offset)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("poll_failed", "err", err, "retry_in", retryDelay)
			if sleepErr := sleepContext(ctx, retryDelay); sleepErr != nil {
				return sleepErr
			}
			retryDelay = min(retryDelay*2, pollRetryMax)
			continue
		}
		retryDelay = pollRetryInitial

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			handler.HandleUpdate(ctx, update)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
