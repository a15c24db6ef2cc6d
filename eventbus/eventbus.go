package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RetryDelays 는 재시도 횟수(1-based)별 지연 시간이다.
var RetryDelays = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	1 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

const retryInfix = ".retry."

// Topic 은 기본 토픽 이름에서 재시도/DLQ 토픽 이름을 파생한다.
type Topic struct {
	base string
}

func NewTopic(base string) Topic {
	return Topic{base: base}
}

func (t Topic) Base() string { return t.base }

// DLQ returns e.g. "ai-chat.chat.events.dlq".
func (t Topic) DLQ() string { return t.base + ".dlq" }

// RetryTopics returns one delayed topic per entry of RetryDelays,
// named "<base>.retry.<duration>".
func (t Topic) RetryTopics() []string {
	topics := make([]string, len(RetryDelays))
	for i, delay := range RetryDelays {
		topics[i] = t.base + retryInfix + delay.String()
	}
	return topics
}

// RetryTopic 은 다음 재시도 횟수(1-based)에 해당하는 지연 토픽을 반환한다.
func (t Topic) RetryTopic(retryCount int) (string, error) {
	if retryCount <= 0 || retryCount > len(RetryDelays) {
		return "", ErrMaxRetryExceeded
	}
	return t.base + retryInfix + RetryDelays[retryCount-1].String(), nil
}

// ParseRetryDelay 는 RetryTopic 이 만든 토픽 이름에서 지연 시간을 읽는다.
// "ai-chat.chat.events.retry.1m0s" -> 1m0s
func ParseRetryDelay(name string) (time.Duration, bool) {
	idx := strings.LastIndex(name, retryInfix)
	if idx == -1 || idx+len(retryInfix) >= len(name) {
		return 0, false
	}
	d, err := time.ParseDuration(name[idx+len(retryInfix):])
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// Event 는 Kafka 메시지 값으로 쓰이는 봉투다.
type Event struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Retry     int             `json:"retry"` // 0부터 시작
	MaxRetry  int             `json:"max_retry"`
	LastError string          `json:"last_error,omitempty"`
}

type EventHandler func(ctx context.Context, event Event) error

// Publisher 는 발행만 필요한 호출자(API 서버)를 위한 최소 인터페이스다.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
}

type EventBus interface {
	Publisher
	// Subscribe 는 기본 토픽을 구독해 handler 를 실행한다.
	// 실패한 이벤트는 지연 토픽 또는 DLQ 로 보내진다.
	Subscribe(ctx context.Context, groupID string, topic Topic, handler EventHandler) error
	// StartRetryReinjector 는 지연 토픽의 이벤트를 기한이 지나면 기본 토픽으로 되돌린다.
	StartRetryReinjector(ctx context.Context, groupID string, topic Topic) error
	Close()
}

var ErrMaxRetryExceeded = errors.New("eventbus: max retry exceeded")

// failureRoute decides where a failed event goes next. The returned event
// carries the handler error and, when retried, the incremented count.
func failureRoute(topic Topic, evt Event, handlerErr error) (string, Event) {
	evt.LastError = handlerErr.Error()
	next := evt.Retry + 1
	if next > evt.MaxRetry {
		return topic.DLQ(), evt
	}
	retryTopic, err := topic.RetryTopic(next)
	if err != nil {
		return topic.DLQ(), evt
	}
	evt.Retry = next
	return retryTopic, evt
}

// normalizeMaxRetry 는 범위를 벗어난 MaxRetry 를 최대값으로 보정한다.
func normalizeMaxRetry(n int) int {
	if n <= 0 || n > len(RetryDelays) {
		return len(RetryDelays)
	}
	return n
}

// NewJSONEvent 는 payload 를 JSON 으로 인코딩해 Event 를 만든다.
// id 가 비어 있으면 나노초 타임스탬프를 쓴다.
func NewJSONEvent(id string, payload any, maxRetry int) (Event, error) {
	if id == "" {
		id = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("payload marshal 실패: %w", err)
	}
	return Event{ID: id, Payload: b, MaxRetry: normalizeMaxRetry(maxRetry)}, nil
}

func DecodeJSON[T any](evt Event) (T, error) {
	var out T
	if err := json.Unmarshal(evt.Payload, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("payload unmarshal 실패: %w", err)
	}
	return out, nil
}
