package eventbus

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"ai-chat/logger"
)

// Brokers returns KAFKA_BOOTSTRAP_SERVERS. An empty value means the event
// bus is not configured.
func Brokers() (string, error) {
	v := strings.TrimSpace(os.Getenv("KAFKA_BOOTSTRAP_SERVERS"))
	if v == "" {
		return "", errors.New("KAFKA_BOOTSTRAP_SERVERS environment variable is required")
	}
	return v, nil
}

func GroupID() (string, error) {
	v := strings.TrimSpace(os.Getenv("KAFKA_GROUP_ID"))
	if v == "" {
		return "", errors.New("KAFKA_GROUP_ID environment variable is required")
	}
	return v, nil
}

// messageMaxBytesFromEnv 는 KAFKA_MESSAGE_MAX_BYTES 를 읽는다. 0 이면 기본값.
func messageMaxBytesFromEnv() int {
	raw := os.Getenv("KAFKA_MESSAGE_MAX_BYTES")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		logger.Log.Warnf("KAFKA_MESSAGE_MAX_BYTES 파싱 실패: %v. 기본값 사용.", err)
		return 0
	}
	if n < 1 {
		return 1
	}
	return n
}
