package llm

// Event types written on the /chat server-sent event stream.
const (
	EventContent = "content"
	EventUsage   = "usage"
	EventDone    = "done"
	EventError   = "error"
)

// Event is the JSON payload of one `data:` line of the /chat stream.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Usage   *Usage `json:"usage,omitempty"`
	Error   string `json:"error,omitempty"`
}
