package session

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kapu/gemini-telegram-bot-go/internal/llm"
)

// state 는 채팅 하나의 대화 상태다. 턴 순서가 곧 대화 순서이며
// 재정렬되지 않는다.
type state struct {
	createdAt time.Time
	turns     []llm.Turn
}

// Snapshot: 세션 조회 결과입니다. History 는 복사본이라
// 호출자가 들고 있어도 저장소와 경합하지 않습니다.
type Snapshot struct {
	ChatID    int64
	CreatedAt time.Time
	History   []llm.Turn
}

// Store 는 채팅별 인메모리 세션 저장소다. 채팅당 살아 있는 세션은
// 최대 하나이며, 프로세스 수명 동안만 유지된다. 용량 제한은 두지 않는다
// (활성 사용자 수에 비례하는 메모리 사용을 허용하는 설계).
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*state
	seed     func() []llm.Turn
	logger   *slog.Logger
}

// NewStore 는 세션 저장소를 생성한다. seed 는 새 세션에 심을
// 페르소나 프리앰블 턴을 반환한다.
func NewStore(seed func() []llm.Turn, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		sessions: make(map[int64]*state),
		seed:     seed,
		logger:   logger,
	}
}

// GetOrCreate 는 기존 세션을 반환하거나, 없으면 프리앰블을 심어
// 새로 생성한다. 두 번째 반환값은 새로 생성되었는지 여부다.
func (s *Store) GetOrCreate(chatID int64) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[chatID]
	if !ok {
		var seedTurns []llm.Turn
		if s.seed != nil {
			seedTurns = s.seed()
		}
		st = &state{
			createdAt: time.Now(),
			turns:     append([]llm.Turn(nil), seedTurns...),
		}
		s.sessions[chatID] = st
		s.logger.Info("session_created", "chat_id", chatID)
	}

	return Snapshot{
		ChatID:    chatID,
		CreatedAt: st.createdAt,
		History:   append([]llm.Turn(nil), st.turns...),
	}, !ok
}

// Append 는 세션 끝에 턴을 추가한다. 세션이 없으면 무시한다
// (그 사이 리셋된 경우 새 턴을 유령 세션에 붙이지 않는다).
func (s *Store) Append(chatID int64, turns ...llm.Turn) {
	if len(turns) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[chatID]
	if !ok {
		return
	}
	st.turns = append(st.turns, turns...)
}

// Reset 는 세션을 무조건 제거한다. 없는 세션은 오류가 아니다.
func (s *Store) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[chatID]; !ok {
		return
	}
	delete(s.sessions, chatID)
	s.logger.Debug("session_reset", "chat_id", chatID)
}

// Exists 는 세션 존재 여부를 반환한다.
func (s *Store) Exists(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[chatID]
	return ok
}

// Count 는 현재 세션 수를 반환한다.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
