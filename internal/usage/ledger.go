package usage

import (
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// Snapshot: 마감된 하루의 사용량 집계 결과입니다.
type Snapshot struct {
	Day          string
	Requests     int64
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// Ledger 는 프로세스 전역 토큰 사용량 원장이다. 현재 리포트 날짜에
// 암묵적으로 키가 걸리며, 리포트 루프만 읽고 리셋한다. 다른 구성
// 요소는 Record 로 증가만 시킨다.
type Ledger struct {
	mu           sync.Mutex
	day          string
	requests     int64
	inputTokens  int64
	outputTokens int64
	totalTokens  int64
}

// NewLedger 는 now 기준의 빈 원장을 생성한다.
func NewLedger(now time.Time) *Ledger {
	return &Ledger{day: now.Format(dayLayout)}
}

// Record 는 성공한 업스트림 호출 1건의 토큰 사용량을 적재한다.
// 동시 호출에 안전하다.
func (l *Ledger) Record(inputTokens, outputTokens, totalTokens int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.requests++
	l.inputTokens += inputTokens
	l.outputTokens += outputTokens
	l.totalTokens += totalTokens
}

// DrainIfDayChanged 는 원장 날짜가 today 와 다르면 직전 날짜의
// 집계 스냅샷을 반환하고 새 날짜로 카운터를 전부 리셋한다.
// 날짜가 같으면 아무것도 하지 않는다.
func (l *Ledger) DrainIfDayChanged(today time.Time) (Snapshot, bool) {
	day := today.Format(dayLayout)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.day == day {
		return Snapshot{}, false
	}

	snapshot := Snapshot{
		Day:          l.day,
		Requests:     l.requests,
		InputTokens:  l.inputTokens,
		OutputTokens: l.outputTokens,
		TotalTokens:  l.totalTokens,
	}

	l.day = day
	l.requests = 0
	l.inputTokens = 0
	l.outputTokens = 0
	l.totalTokens = 0

	return snapshot, true
}

// Current 는 현재 날짜의 집계를 복사해 반환한다.
func (l *Ledger) Current() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Snapshot{
		Day:          l.day,
		Requests:     l.requests,
		InputTokens:  l.inputTokens,
		OutputTokens: l.outputTokens,
		TotalTokens:  l.totalTokens,
	}
}
