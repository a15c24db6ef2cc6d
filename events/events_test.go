package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeekType(t *testing.T) {
	evt := NewChatTitleRequested("c1", "api")
	data, err := json.Marshal(evt)
	require.NoError(t, err)

	typ, err := PeekType(data)
	require.NoError(t, err)
	assert.Equal(t, ChatTitleRequested, typ)
	assert.Contains(t, string(data), `"chat_id":"c1"`)

	_, err = PeekType([]byte("nope"))
	assert.Error(t, err)
}

func TestNewChatTitled(t *testing.T) {
	evt := NewChatTitled("c1", "Go channels", "gemini-2.5-flash", "titler")
	assert.Equal(t, ChatTitled, evt.Type)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "titler", evt.Source)
}
