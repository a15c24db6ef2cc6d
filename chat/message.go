package chat

import (
	"sort"
	"time"

	"ai-chat/models"
)

// MessageID is either a client-generated provisional id or the id the
// persistence API assigned. The two are never mixed: a message keeps its
// provisional id until the save succeeds, then switches to Persisted.
type MessageID struct {
	local  string
	server string
}

func Provisional(localID string) MessageID { return MessageID{local: localID} }
func Persisted(serverID string) MessageID  { return MessageID{server: serverID} }

func (id MessageID) IsPersisted() bool { return id.server != "" }

// Local returns the provisional id, empty once persisted.
func (id MessageID) Local() string { return id.local }

// Server returns the persisted id, empty while provisional.
func (id MessageID) Server() string { return id.server }

func (id MessageID) String() string {
	if id.server != "" {
		return id.server
	}
	return "local:" + id.local
}

// Message is one entry of a session's history.
type Message struct {
	ID        MessageID
	Role      models.Role
	Content   string
	CreatedAt time.Time
	// ChatID is empty until the conversation has a server-side chat.
	ChatID       string
	InputTokens  *int64
	OutputTokens *int64
	// Failed marks an assistant message whose content was replaced by an
	// error description.
	Failed bool
}

// FromRecords converts persisted rows (any order) to history, oldest first.
func FromRecords(records []models.Message) []Message {
	sorted := make([]models.Message, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	out := make([]Message, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, Message{
			ID:           Persisted(r.ID),
			Role:         r.Role,
			Content:      r.Content,
			CreatedAt:    r.CreatedAt,
			ChatID:       r.ChatID,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
		})
	}
	return out
}

// UsageSummary totals token usage over a history.
type UsageSummary struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	// ContextUsagePercent is input tokens over the model context length,
	// capped at 100. Zero when the context length is unknown.
	ContextUsagePercent float64
}

func TotalUsage(messages []Message, contextLength int64) UsageSummary {
	var u UsageSummary
	for _, m := range messages {
		if m.InputTokens != nil {
			u.InputTokens += *m.InputTokens
		}
		if m.OutputTokens != nil {
			u.OutputTokens += *m.OutputTokens
		}
	}
	u.TotalTokens = u.InputTokens + u.OutputTokens
	if contextLength > 0 {
		u.ContextUsagePercent = min(float64(u.InputTokens)/float64(contextLength)*100, 100)
	}
	return u
}
