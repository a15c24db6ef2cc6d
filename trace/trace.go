// Package trace carries a request id and a span counter through a context.
// A chat turn on the client and the API requests it causes share one id:
// the client stamps outbound calls with Inject and the API server continues
// the trace with FromHeader.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderSpanID    = "X-Span-Id"
)

type ctxKey struct{}

// Info is the trace of one turn or one inbound request. Parent is the span
// of the caller that started it, empty for a fresh trace.
type Info struct {
	RequestID string
	Parent    string
	spanSeq   atomic.Int64
}

func GenerateID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UTC().Format("20060102T150405.000000000")
	}
	return hex.EncodeToString(b[:])
}

func withInfo(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// WithRequestAndSpan starts a trace with a known id, counting spans from
// initialSpan.
func WithRequestAndSpan(ctx context.Context, requestID string, initialSpan int64) context.Context {
	info := &Info{RequestID: requestID}
	info.spanSeq.Store(initialSpan)
	return withInfo(ctx, info)
}

// WithNewRequest starts a fresh trace. The chat session calls it once per
// turn so the completion stream and both persistence calls share one id.
func WithNewRequest(ctx context.Context) context.Context {
	return WithRequestAndSpan(ctx, GenerateID(), 0)
}

// FromHeader continues the caller's trace when h carries a request id and
// starts a new one otherwise. The inbound request itself is span 0.
func FromHeader(ctx context.Context, h http.Header) context.Context {
	requestID := h.Get(HeaderRequestID)
	if requestID == "" {
		return WithNewRequest(ctx)
	}
	return withInfo(ctx, &Info{RequestID: requestID, Parent: h.Get(HeaderSpanID)})
}

// Inject opens the next span of ctx's trace and writes it to h.
func Inject(ctx context.Context, h http.Header) {
	requestID, spanID := NextSpanID(ctx)
	h.Set(HeaderRequestID, requestID)
	h.Set(HeaderSpanID, spanID)
}

func infoFromContext(ctx context.Context) *Info {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(ctxKey{}).(*Info)
	return v
}

func RequestIDFromContext(ctx context.Context) string {
	if info := infoFromContext(ctx); info != nil {
		return info.RequestID
	}
	return ""
}

// ParentSpanFromContext returns the caller's span id of a continued trace.
func ParentSpanFromContext(ctx context.Context) string {
	if info := infoFromContext(ctx); info != nil {
		return info.Parent
	}
	return ""
}

// CurrentSpanID reads the span counter without advancing it.
func CurrentSpanID(ctx context.Context) string {
	info := infoFromContext(ctx)
	if info == nil {
		return "0"
	}
	return strconv.FormatInt(max(info.spanSeq.Load(), 0), 10)
}

// NextSpanID advances the span counter. Without a trace it returns a fresh
// id and span "1".
func NextSpanID(ctx context.Context) (string, string) {
	info := infoFromContext(ctx)
	if info == nil {
		return GenerateID(), "1"
	}
	return info.RequestID, strconv.FormatInt(max(info.spanSeq.Add(1), 1), 10)
}
