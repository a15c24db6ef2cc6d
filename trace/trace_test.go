package trace

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextSpanID_IncrementsWithinRequest(t *testing.T) {
	ctx := WithRequestAndSpan(context.Background(), "req-1", 0)

	assert.Equal(t, "0", CurrentSpanID(ctx))

	reqID, span := NextSpanID(ctx)
	assert.Equal(t, "req-1", reqID)
	assert.Equal(t, "1", span)

	_, span = NextSpanID(ctx)
	assert.Equal(t, "2", span)
	assert.Equal(t, "2", CurrentSpanID(ctx))
}

func TestNextSpanID_WithoutTrace(t *testing.T) {
	reqID, span := NextSpanID(context.Background())
	assert.NotEmpty(t, reqID)
	assert.Equal(t, "1", span)
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	assert.Equal(t, "0", CurrentSpanID(context.Background()))
}

func TestNextSpanID_Concurrent(t *testing.T) {
	ctx := WithNewRequest(context.Background())

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, span := NextSpanID(ctx)
			_, dup := seen.LoadOrStore(span, true)
			assert.False(t, dup, "span %s issued twice", span)
		}()
	}
	wg.Wait()
	assert.Equal(t, "50", CurrentSpanID(ctx))
}

func TestFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderRequestID, "turn-7")
	h.Set(HeaderSpanID, "2")

	ctx := FromHeader(context.Background(), h)
	assert.Equal(t, "turn-7", RequestIDFromContext(ctx))
	assert.Equal(t, "2", ParentSpanFromContext(ctx))
	assert.Equal(t, "0", CurrentSpanID(ctx))

	fresh := FromHeader(context.Background(), http.Header{})
	assert.NotEmpty(t, RequestIDFromContext(fresh))
	assert.Empty(t, ParentSpanFromContext(fresh))
}

func TestInject_ContinuesAcrossHop(t *testing.T) {
	client := WithRequestAndSpan(context.Background(), "turn-1", 0)

	out := http.Header{}
	Inject(client, out)
	Inject(client, out)
	assert.Equal(t, "turn-1", out.Get(HeaderRequestID))
	assert.Equal(t, "2", out.Get(HeaderSpanID))

	server := FromHeader(context.Background(), out)
	assert.Equal(t, "turn-1", RequestIDFromContext(server))
	assert.Equal(t, "2", ParentSpanFromContext(server))

	reqID, span := NextSpanID(server)
	assert.Equal(t, "turn-1", reqID)
	assert.Equal(t, "1", span)
}
