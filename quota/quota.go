package quota

import (
	"context"
	"sync"
	"time"

	"ai-chat/config"
)

// Limiter 는 제목 생성용 LLM 호출의 분당/일일 한도를 관리한다.
// titler 인스턴스가 하나라는 전제의 인메모리 구현이라 재시작하면 카운터가 초기화된다.
type Limiter struct {
	mu sync.Mutex

	dailyLimit int
	usedToday  int
	dayKey     string

	interval time.Duration
	lastCall time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New 는 분당/일일 한도로 Limiter 를 만든다. 0 이하는 해당 방향 제한 없음.
func New(requestsPerMinute, requestsPerDay int) *Limiter {
	l := &Limiter{
		dailyLimit: max(requestsPerDay, 0),
		now:        time.Now,
		sleep:      sleepCtx,
	}
	if requestsPerMinute > 0 {
		l.interval = time.Minute / time.Duration(requestsPerMinute)
	}
	return l
}

func NewFromConfig(cfg config.TitlerConfig) *Limiter {
	return New(cfg.RequestsPerMinute, cfg.RequestsPerDay)
}

// WaitAndReserve 는 호출 전에 한도를 적용한다.
//   - 일일 한도 소진: (false, nil). 호출자는 LLM 호출을 건너뛴다.
//   - 컨텍스트 취소: (false, ctx.Err()).
func (l *Limiter) WaitAndReserve(ctx context.Context) (bool, error) {
	for {
		l.mu.Lock()

		now := l.now().UTC()
		if key := now.Format("2006-01-02"); l.dayKey != key {
			l.dayKey = key
			l.usedToday = 0
		}

		if l.dailyLimit > 0 && l.usedToday >= l.dailyLimit {
			l.mu.Unlock()
			return false, nil
		}

		var delay time.Duration
		if l.interval > 0 && !l.lastCall.IsZero() {
			delay = l.lastCall.Add(l.interval).Sub(now)
		}
		if delay <= 0 {
			l.usedToday++
			l.lastCall = now
			l.mu.Unlock()
			return true, nil
		}

		l.mu.Unlock()
		if err := l.sleep(ctx, delay); err != nil {
			return false, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
