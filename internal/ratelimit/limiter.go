package ratelimit

import (
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// record 는 사용자 한 명의 일일 수락 카운트다. 달력 날짜가 바뀌면
// 다음 평가 시점에 0으로 간주된다(지연 리셋, 스케줄 작업 없음).
type record struct {
	day   string
	count int
}

// Limiter 는 사용자별 일일 메시지 쿼터를 추적한다.
// Admit 은 검사만 하고 Record 가 증가시키는 2단계 패턴이다.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	records map[int64]record
}

// NewLimiter 는 일일 한도 limit 의 Limiter 를 생성한다.
func NewLimiter(limit int) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	return &Limiter{
		limit:   limit,
		records: make(map[int64]record),
	}
}

// Admit 은 today 기준으로 메시지를 받아줄 수 있는지 반환한다.
// 기록이 없거나 저장된 날짜가 다르면 이전 카운트를 0으로 본다.
// 카운트는 변경하지 않는다.
func (l *Limiter) Admit(userID int64, today time.Time) bool {
	day := today.Format(dayLayout)

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok || rec.day != day {
		return true
	}
	return rec.count < l.limit
}

// Record 는 today 의 카운트를 1 증가시킨다. 날짜가 넘어갔으면
// 기록을 새 날짜로 리셋한 뒤 센다.
func (l *Limiter) Record(userID int64, today time.Time) {
	day := today.Format(dayLayout)

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok || rec.day != day {
		l.records[userID] = record{day: day, count: 1}
		return
	}
	rec.count++
	l.records[userID] = rec
}

// Count 는 today 기준 저장된 카운트를 반환한다.
func (l *Limiter) Count(userID int64, today time.Time) int {
	day := today.Format(dayLayout)

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok || rec.day != day {
		return 0
	}
	return rec.count
}

// Limit 는 설정된 일일 한도를 반환한다.
func (l *Limiter) Limit() int {
	return l.limit
}
