package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"ai-chat/logger"
	"ai-chat/trace"
)

const defaultTimeout = 10 * time.Second

const maxBodyLog = 1024

// Config 는 HTTP 클라이언트 공통 설정이다.
type Config struct {
	Timeout time.Duration
	// Streaming 클라이언트는 응답 바디를 오래 읽으므로 전체 타임아웃을 두지 않는다.
	// 취소는 요청 컨텍스트로만 이루어진다.
	Streaming bool
	// Header 는 모든 요청에 덧붙는 고정 헤더다. (예: Authorization)
	Header http.Header
}

// loggingRoundTripper 는 모든 아웃바운드 호출에 X-Request-Id / X-Span-Id 를
// 붙이고 결과를 로깅한다.
type loggingRoundTripper struct {
	inner  http.RoundTripper
	header http.Header
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	req = req.Clone(req.Context())
	for key, values := range l.header {
		if req.Header.Get(key) != "" {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	trace.Inject(req.Context(), req.Header)
	requestID, spanID := req.Header.Get(trace.HeaderRequestID), req.Header.Get(trace.HeaderSpanID)

	bodySnippet := snapshotBody(req)

	resp, err := l.inner.RoundTrip(req)
	fields := logger.Fields{
		"method":     req.Method,
		"url":        redactedURL(req.URL),
		"duration":   time.Since(start).String(),
		"request_id": requestID,
		"span_id":    spanID,
	}
	if bodySnippet != "" {
		fields["body"] = bodySnippet
	}
	if err != nil {
		fields["error"] = err.Error()
		logger.ErrorWithFields("httpclient request failed", fields)
		return nil, err
	}
	fields["status"] = resp.StatusCode
	logger.DebugWithFields("httpclient request success", fields)
	return resp, nil
}

// snapshotBody 는 로깅용으로 바디를 읽은 뒤 전송을 위해 복원한다.
func snapshotBody(req *http.Request) string {
	if req.Body == nil || req.Body == http.NoBody {
		return ""
	}
	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		return ""
	}
	req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	if len(bodyBytes) > maxBodyLog {
		return string(bodyBytes[:maxBodyLog])
	}
	return string(bodyBytes)
}

func redactedURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Redacted()
}

// BaseClient 는 http.Client 와 baseURL 을 묶어 URL 생성과 요청 생성을 돕는다.
type BaseClient struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewBaseClient(baseURL string) *BaseClient {
	return NewBaseClientWithClient(nil, baseURL)
}

// NewBaseClientWithClient 는 httpClient 가 nil 이면 기본 클라이언트를 사용한다.
func NewBaseClientWithClient(httpClient *http.Client, baseURL string) *BaseClient {
	if httpClient == nil {
		httpClient = NewDefault()
	}
	return &BaseClient{
		HTTPClient: httpClient,
		BaseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// NewRequest 는 baseURL 과 상대 경로, 쿼리, 바디로 요청을 만든다.
// relPath 에 쿼리(?)가 포함되면 path.Join 이 이를 손상시키므로 에러를 반환한다.
func (c *BaseClient) NewRequest(ctx context.Context, method, relPath string, query url.Values, body io.Reader) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.Contains(relPath, "?") {
		return nil, fmt.Errorf("httpclient: relPath must not contain query string (use query parameter instead): %s", relPath)
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	if relPath != "" {
		base.Path = path.Join(base.Path, relPath)
	}
	if query != nil {
		base.RawQuery = query.Encode()
	}
	return http.NewRequestWithContext(ctx, method, base.String(), body)
}

func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	return c.HTTPClient.Do(req)
}

// New 는 주어진 설정으로 http.Client 를 만든다.
// Streaming 이 아니고 Timeout 이 0 이면 10초를 사용한다.
func New(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if cfg.Streaming {
		timeout = 0
	} else if timeout == 0 {
		timeout = defaultTimeout
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &loggingRoundTripper{
			inner:  http.DefaultTransport,
			header: cfg.Header.Clone(),
		},
	}
}

func NewDefault() *http.Client {
	return New(Config{})
}

// BearerHeader 는 Authorization: Bearer 헤더 하나를 담은 http.Header 를 만든다.
// key 가 비어 있으면 nil 을 반환한다.
func BearerHeader(key string) http.Header {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+key)
	return h
}
