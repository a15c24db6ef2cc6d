package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"ai-chat/logger"
)

const pollTimeout = 100 * time.Millisecond

// KafkaEventBus 는 confluent-kafka-go 기반 EventBus 구현체다.
type KafkaEventBus struct {
	Producer *kafka.Producer
	Brokers  string
}

func NewKafkaEventBus(brokers string) (*KafkaEventBus, error) {
	cfg := &kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
		"retries":           5,
	}
	if maxBytes := messageMaxBytesFromEnv(); maxBytes > 0 {
		(*cfg)["message.max.bytes"] = maxBytes
	}

	p, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka Producer 생성 실패: %w", err)
	}

	// 전달 보고서와 클라이언트 오류 로깅
	go func() {
		for e := range p.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					logger.Log.Errorf("메시지 전달 실패 %v: %v", ev.TopicPartition, ev.TopicPartition.Error)
				}
			case kafka.Error:
				logger.Log.Errorf("Kafka 오류: %v", ev)
			}
		}
	}()

	return &KafkaEventBus{Producer: p, Brokers: brokers}, nil
}

func (k *KafkaEventBus) Close() {
	if k.Producer == nil {
		return
	}
	if remaining := k.Producer.Flush(5000); remaining > 0 {
		logger.Log.Warnf("플러시 후에도 %d개의 메시지가 남아 있습니다.", remaining)
	}
	k.Producer.Close()
	logger.Log.Info("Kafka Producer 종료.")
}

// Publish 는 이벤트를 발행하고 전달 보고서를 기다린다.
func (k *KafkaEventBus) Publish(ctx context.Context, topic string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("이벤트 마샬링 실패: %w", err)
	}

	delivery := make(chan kafka.Event, 1)
	err = k.Producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          data,
		Key:            []byte(event.ID),
	}, delivery)
	if err != nil {
		return fmt.Errorf("메시지 발행 실패: %w", err)
	}

	select {
	case ev := <-delivery:
		if m, ok := ev.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			return fmt.Errorf("메시지 전달 실패: %w", m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *KafkaEventBus) newConsumer(groupID string, topics []string) (*kafka.Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":             k.Brokers,
		"group.id":                      groupID,
		"auto.offset.reset":             "earliest",
		"enable.auto.commit":            false,
		"partition.assignment.strategy": "range",
	})
	if err != nil {
		return nil, fmt.Errorf("kafka Consumer 생성 실패: %w", err)
	}
	if err := c.SubscribeTopics(topics, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("토픽 구독 실패 %v: %w", topics, err)
	}
	logger.InfoWithFields("kafka consumer started", logger.Fields{
		"group_id": groupID,
		"topics":   strings.Join(topics, ","),
	})
	return c, nil
}

// read polls one message. A nil message with a nil error means nothing
// arrived within the poll timeout.
func read(c *kafka.Consumer) (*kafka.Message, error) {
	msg, err := c.ReadMessage(pollTimeout)
	if err == nil {
		return msg, nil
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		if kerr.Code() == kafka.ErrTimedOut {
			return nil, nil
		}
		if kerr.IsFatal() {
			return nil, err
		}
	}
	logger.Log.Errorf("ReadMessage 오류: %v", err)
	time.Sleep(500 * time.Millisecond)
	return nil, nil
}

func (k *KafkaEventBus) Subscribe(ctx context.Context, groupID string, topic Topic, handler EventHandler) error {
	c, err := k.newConsumer(groupID, []string{topic.Base()})
	if err != nil {
		return err
	}
	defer c.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, err := read(c)
		if err != nil {
			return fmt.Errorf("컨슈머 치명적 오류: %w", err)
		}
		if msg == nil {
			continue
		}

		var evt Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Log.Errorf("토픽 %s 이벤트 페이로드 오류: %v. 건너뛰고 커밋합니다.", topic.Base(), err)
			_, _ = c.CommitMessage(msg)
			continue
		}
		evt.MaxRetry = normalizeMaxRetry(evt.MaxRetry)

		logger.DebugWithFields("event received", logger.Fields{
			"event_id": evt.ID,
			"retry":    evt.Retry,
			"topic":    topic.Base(),
		})

		if herr := handler(ctx, evt); herr != nil {
			dest, routed := failureRoute(topic, evt, herr)
			logger.WarnWithFields("event handling failed", logger.Fields{
				"event_id": evt.ID,
				"retry":    routed.Retry,
				"dest":     dest,
				"error":    herr.Error(),
			})
			if err := k.Publish(ctx, dest, routed); err != nil {
				// 커밋하지 않으면 같은 메시지가 다시 전달된다.
				logger.Log.Errorf("이벤트 %s 를 %s 로 발행 실패: %v. 오프셋 커밋 안함.", evt.ID, dest, err)
				continue
			}
		}

		if _, err := c.CommitMessage(msg); err != nil {
			logger.Log.Errorf("오프셋 커밋 오류: %v", err)
		}
	}
}

func (k *KafkaEventBus) StartRetryReinjector(ctx context.Context, groupID string, topic Topic) error {
	c, err := k.newConsumer(groupID, topic.RetryTopics())
	if err != nil {
		return err
	}
	defer c.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, err := read(c)
		if err != nil {
			return fmt.Errorf("재주입 컨슈머 치명적 오류: %w", err)
		}
		if msg == nil {
			continue
		}

		name := *msg.TopicPartition.Topic
		delay, ok := ParseRetryDelay(name)
		if !ok {
			logger.Log.Errorf("재시도 토픽 이름 파싱 실패: %s. 건너뛰고 커밋합니다.", name)
			_, _ = c.CommitMessage(msg)
			continue
		}

		if wait := reinjectWait(msg.Timestamp.Add(delay), time.Now()); wait > 0 {
			// 아직 기한 전: 되감아서 다시 읽는다.
			time.Sleep(wait)
			if err := c.Seek(msg.TopicPartition, 0); err != nil {
				logger.Log.Errorf("seek 실패 %s: %v", name, err)
			}
			continue
		}

		var evt Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Log.Errorf("재시도 토픽 %s 이벤트 페이로드 오류: %v. 건너뛰고 커밋합니다.", name, err)
			_, _ = c.CommitMessage(msg)
			continue
		}

		logger.InfoWithFields("reinjecting event", logger.Fields{
			"event_id": evt.ID,
			"from":     name,
			"to":       topic.Base(),
			"retry":    evt.Retry,
		})
		if err := k.Publish(ctx, topic.Base(), evt); err != nil {
			logger.Log.Errorf("이벤트 %s 재주입 실패: %v. 오프셋 커밋 안함.", evt.ID, err)
			continue
		}
		if _, err := c.CommitMessage(msg); err != nil {
			logger.Log.Errorf("재주입 후 커밋 오류: %v", err)
		}
	}
}

// reinjectWait 는 readyAt 까지 남은 시간을 50ms~500ms 로 잘라 반환한다.
// 이미 기한이 지났으면 0.
func reinjectWait(readyAt, now time.Time) time.Duration {
	remaining := readyAt.Sub(now)
	switch {
	case remaining <= 0:
		return 0
	case remaining > 500*time.Millisecond:
		return 500 * time.Millisecond
	case remaining < 50*time.Millisecond:
		return 50 * time.Millisecond
	}
	return remaining
}
