package throttle

import (
	"context"
	"sync"
	"time"
)

// Gate 는 업스트림 호출 전면의 전역 최소 간격 게이트다.
// 사용자 단위가 아니라 프로세스 전체가 하나의 게이트를 공유한다.
// 공정성 장치가 아니라 공유 업스트림 쿼터 보호 장치다.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate 는 최소 호출 간격 interval 의 Gate 를 생성한다.
func NewGate(interval time.Duration) *Gate {
	return &Gate{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Acquire 는 직전에 예약된 슬롯 시작으로부터 최소 간격이 지날 때까지
// 대기한 뒤 새 슬롯 시작 시각을 기록하고 반환한다. 동시 호출자는
// 타임스탬프 갱신 구간에서 직렬화되므로 두 호출이 같은 이전 시각을
// 보고 간격보다 좁게 나가는 일은 없다. 대기는 락 밖에서 수행한다.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	now := g.now()
	start := now
	if g.interval > 0 && !g.last.IsZero() {
		if earliest := g.last.Add(g.interval); earliest.After(start) {
			start = earliest
		}
	}
	g.last = start
	g.mu.Unlock()

	if wait := start.Sub(now); wait > 0 {
		return g.sleep(ctx, wait)
	}
	return nil
}

// LastStart 는 마지막으로 예약된 슬롯 시작 시각을 반환한다.
func (g *Gate) LastStart() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// sleepContext 는 타이머 기반 대기다. 스핀 대기가 아니며
// 컨텍스트 취소 시 즉시 깨어난다.
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
