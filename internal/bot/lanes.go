package bot

import "sync"

const laneBuffer = 32

// lanes 는 채팅별 직렬 실행 레인이다. 같은 채팅의 작업은 수신 순서대로
// 한 번에 하나씩 처리되고, 다른 채팅의 작업은 자유롭게 교차된다.
// 레인은 세션과 마찬가지로 프로세스 수명 동안 회수하지 않는다.
type lanes struct {
	mu sync.Mutex
	m  map[int64]chan func()
}

func newLanes() *lanes {
	return &lanes{m: make(map[int64]chan func())}
}

// submit 는 chatID 레인 끝에 작업을 넣는다. 레인이 가득 차면
// 호출자(폴링 루프)가 막혀 자연스러운 배압이 걸린다.
func (l *lanes) submit(chatID int64, job func()) {
	l.mu.Lock()
	lane, ok := l.m[chatID]
	if !ok {
		lane = make(chan func(), laneBuffer)
		l.m[chatID] = lane
		go func() {
			for queued := range lane {
				queued()
			}
		}()
	}
	l.mu.Unlock()

	lane <- job
}
