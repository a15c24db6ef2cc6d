// Package chat runs chat turns: it streams an assistant reply into the
// session history, classifies failures and saves finished turns.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ai-chat/catalog"
	"ai-chat/chaterrors"
	"ai-chat/llm"
	"ai-chat/logger"
	"ai-chat/models"
	"ai-chat/trace"
)

var (
	ErrEmptyInput     = errors.New("chat: input is empty")
	ErrBusy           = errors.New("chat: a turn is already streaming")
	ErrNoModel        = errors.New("chat: no model selected")
	ErrNothingToRetry = errors.New("chat: no user message to retry")
	ErrClosed         = errors.New("chat: session closed")
)

// ModelSelector yields the currently selected model, nil when none.
type ModelSelector interface {
	Selected() *catalog.Model
}

// NewMessage is the create-message payload for one finished turn entry.
type NewMessage struct {
	ChatID       string
	Role         models.Role
	Content      string
	InputTokens  *int64
	OutputTokens *int64
}

// Persister is the write side of the chat history.
type Persister interface {
	CreateChat(ctx context.Context) (models.Chat, error)
	CreateMessage(ctx context.Context, m NewMessage) (models.Message, error)
}

// Snapshot is an immutable view of the session. Versions increase by one
// per state change.
type Snapshot struct {
	Version   uint64
	ChatID    string
	Messages  []Message
	Input     string
	Streaming bool
	Error     *chaterrors.ChatError
}

type NoticeKind int

const (
	NoticeTurnFailed NoticeKind = iota + 1
	NoticeSaveFailed
)

// Notice is a transient, user-facing notification.
type Notice struct {
	Kind    NoticeKind
	Message string
	Details string
	// Retry is true when the failure can be retried with Session.Retry.
	Retry bool
}

// Notifier receives snapshots in version order and notices. Callbacks run on
// session goroutines and must not call back into the Session synchronously.
type Notifier interface {
	Update(Snapshot)
	Notify(Notice)
}

type nopNotifier struct{}

func (nopNotifier) Update(Snapshot) {}
func (nopNotifier) Notify(Notice)   {}

type Config struct {
	Provider llm.Provider
	Models   ModelSelector
	// Persister is optional; without it turns are not saved.
	Persister Persister
	// Notifier is optional.
	Notifier     Notifier
	Instructions string
	Now          func() time.Time
	NewID        func() string
}

// Session holds one conversation. At most one turn streams at a time.
type Session struct {
	provider  llm.Provider
	models    ModelSelector
	persister Persister
	notifier  Notifier
	now       func() time.Time
	newID     func() string

	baseCtx   context.Context
	stopAll   context.CancelFunc
	wg        sync.WaitGroup
	createMu  sync.Mutex
	publishMu sync.Mutex
	published uint64

	mu           sync.Mutex
	closed       bool
	version      uint64
	gen          uint64
	epoch        uint64
	cancel       context.CancelFunc
	streaming    bool
	chatID       string
	messages     []Message
	input        string
	instructions string
	chatErr      *chaterrors.ChatError
}

func NewSession(cfg Config) *Session {
	s := &Session{
		provider:     cfg.Provider,
		models:       cfg.Models,
		persister:    cfg.Persister,
		notifier:     cfg.Notifier,
		now:          cfg.Now,
		newID:        cfg.NewID,
		instructions: cfg.Instructions,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.baseCtx, s.stopAll = context.WithCancel(context.Background())
	return s
}

func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SetInstructions sets the system instructions sent with later turns.
func (s *Session) SetInstructions(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instructions = text
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked()
}

// Submit starts a turn from the current input. It returns ErrEmptyInput,
// ErrBusy or ErrNoModel without touching any state when the turn cannot
// start. The user message and an empty assistant placeholder are part of
// the history before Submit returns.
func (s *Session) Submit() (*Turn, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	text := strings.TrimSpace(s.input)
	if text == "" {
		s.mu.Unlock()
		return nil, ErrEmptyInput
	}
	if s.streaming {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	var model *catalog.Model
	if s.models != nil {
		model = s.models.Selected()
	}
	if model == nil || model.ID == "" {
		s.mu.Unlock()
		return nil, ErrNoModel
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	traceCtx := trace.WithNewRequest(s.baseCtx)
	ctx, cancel := context.WithCancel(traceCtx)
	s.cancel = cancel

	req := llm.Request{
		Model:        model.ID,
		Instructions: s.instructions,
		Messages:     make([]llm.Message, 0, len(s.messages)+1),
	}
	for _, m := range s.messages {
		if m.Failed {
			continue
		}
		req.Messages = append(req.Messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	req.Messages = append(req.Messages, llm.Message{Role: models.RoleUser, Content: text})

	now := s.now()
	user := Message{
		ID:        Provisional(s.newID()),
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: now,
		ChatID:    s.chatID,
	}
	assistant := Message{
		ID:        Provisional(s.newID()),
		Role:      models.RoleAssistant,
		CreatedAt: now,
		ChatID:    s.chatID,
	}
	s.messages = append(s.messages, user, assistant)
	s.input = ""
	s.streaming = true
	s.chatErr = nil
	snap := s.snapshotLocked()

	t := turnRun{
		turn:      newTurn(),
		gen:       gen,
		epoch:     s.epoch,
		chatID:    s.chatID,
		traceCtx:  traceCtx,
		user:      user,
		assistant: assistant.ID,
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.publish(snap)
	logger.DebugWithFields("chat turn started", logger.Fields{
		"request_id": trace.RequestIDFromContext(traceCtx),
		"model":      model.ID,
		"history":    len(req.Messages),
	})

	go s.run(ctx, cancel, req, t)
	return t.turn, nil
}

// turnRun is what the streaming goroutine needs to know about its turn.
type turnRun struct {
	turn      *Turn
	gen       uint64
	epoch     uint64
	chatID    string
	traceCtx  context.Context
	user      Message
	assistant MessageID
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, req llm.Request, t turnRun) {
	defer s.wg.Done()
	defer cancel()

	usage, err := s.stream(ctx, req, t.gen)

	var outcome Outcome
	switch {
	case err == nil:
		outcome = s.deliver(t, usage)
	case errors.Is(ctx.Err(), context.Canceled) || chaterrors.IsAborted(err) || errors.Is(err, errSuperseded):
		outcome = s.abort(t)
	default:
		outcome = s.fail(t, err)
	}
	t.turn.finish(outcome)

	logger.DebugWithFields("chat turn finished", logger.Fields{
		"request_id": trace.RequestIDFromContext(t.traceCtx),
		"state":      outcome.State.String(),
	})

	if outcome.State == Delivered && s.persister != nil {
		s.persistTurn(t, outcome.Assistant)
	}
}

var errSuperseded = errors.New("chat: turn superseded")

// stream applies every delta in delivery order. A recovered panic from the
// provider becomes an error.
func (s *Session) stream(ctx context.Context, req llm.Request, gen uint64) (usage *llm.Usage, err error) {
	defer func() {
		if r := recover(); r != nil {
			ce := chaterrors.FromRecovered(r)
			usage, err = nil, recoveredError{ce: ce, value: r}
		}
	}()

	st, err := s.provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	for st.Next() {
		delta := st.Delta()
		if !s.updateAssistant(gen, func(m *Message) { m.Content += delta }) {
			return nil, errSuperseded
		}
	}
	if err := st.Err(); err != nil {
		return nil, err
	}
	return st.Usage(), nil
}

type recoveredError struct {
	ce    chaterrors.ChatError
	value any
}

func (e recoveredError) Error() string { return fmt.Sprintf("provider panic: %v", e.value) }

// updateAssistant mutates the trailing assistant message of generation gen
// and publishes. It reports false once gen is no longer current.
func (s *Session) updateAssistant(gen uint64, mutate func(*Message)) bool {
	s.mu.Lock()
	if gen != s.gen || len(s.messages) == 0 {
		s.mu.Unlock()
		return false
	}
	last := len(s.messages) - 1
	if s.messages[last].Role != models.RoleAssistant {
		s.mu.Unlock()
		return false
	}
	updated := s.messages[last]
	mutate(&updated)
	// replace rather than mutate so earlier snapshots stay intact
	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	msgs[last] = updated
	s.messages = msgs
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true
}

// endTurn clears the in-flight state if gen is still current and returns
// the trailing assistant message.
func (s *Session) endTurn(gen uint64, mutate func(*Message)) (Message, bool) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return Message{}, false
	}
	var assistant Message
	if n := len(s.messages); n > 0 && s.messages[n-1].Role == models.RoleAssistant {
		assistant = s.messages[n-1]
		if mutate != nil {
			mutate(&assistant)
			msgs := make([]Message, n)
			copy(msgs, s.messages)
			msgs[n-1] = assistant
			s.messages = msgs
		}
	}
	s.streaming = false
	s.cancel = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return assistant, true
}

func (s *Session) deliver(t turnRun, usage *llm.Usage) Outcome {
	assistant, current := s.endTurn(t.gen, func(m *Message) {
		if usage != nil {
			in, out := usage.InputTokens, usage.OutputTokens
			m.InputTokens, m.OutputTokens = &in, &out
		}
	})
	if !current {
		return Outcome{State: Aborted}
	}
	return Outcome{State: Delivered, Assistant: assistant, Usage: usage}
}

func (s *Session) abort(t turnRun) Outcome {
	assistant, _ := s.endTurn(t.gen, nil)
	return Outcome{State: Aborted, Assistant: assistant}
}

func (s *Session) fail(t turnRun, err error) Outcome {
	ce := chaterrors.Classify(err)
	content := chaterrors.Describe(err)
	var rec recoveredError
	if errors.As(err, &rec) {
		ce = rec.ce
		content = "Error: " + ce.Message
	}

	s.mu.Lock()
	if t.gen == s.gen {
		s.chatErr = &ce
	}
	s.mu.Unlock()

	assistant, current := s.endTurn(t.gen, func(m *Message) {
		m.Content = content
		m.Failed = true
	})
	if !current {
		return Outcome{State: Aborted}
	}

	logger.WarnWithFields("chat turn failed", logger.Fields{
		"request_id": trace.RequestIDFromContext(t.traceCtx),
		"error_type": string(ce.Type),
		"error":      err.Error(),
	})
	s.notifier.Notify(Notice{
		Kind:    NoticeTurnFailed,
		Message: ce.Message,
		Details: ce.Details,
		Retry:   ce.Retryable,
	})
	return Outcome{State: Failed, Assistant: assistant, Err: &ce}
}

// Cancel aborts the active turn, if any. Calling it again, or with no active
// turn, has no effect.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Retry drops the last user message and everything after it, puts its text
// back into the input and submits again.
func (s *Session) Retry() (*Turn, error) {
	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	idx := -1
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == models.RoleUser {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrNothingToRetry
	}
	s.input = s.messages[idx].Content
	s.messages = append([]Message(nil), s.messages[:idx]...)
	s.chatErr = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return s.Submit()
}

// Reset clears history, input and error, cancels the active turn and
// detaches the session from its server-side chat.
func (s *Session) Reset() {
	s.replace("", nil)
}

// Load replaces the session with a persisted chat. Any active turn is
// cancelled.
func (s *Session) Load(chatID string, records []models.Message) {
	s.replace(chatID, FromRecords(records))
}

func (s *Session) replace(chatID string, history []Message) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.epoch++
	s.streaming = false
	s.chatID = chatID
	s.messages = history
	s.input = ""
	s.chatErr = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

func (s *Session) DismissError() {
	s.mu.Lock()
	if s.chatErr == nil {
		s.mu.Unlock()
		return
	}
	s.chatErr = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// Wait blocks until every running turn and pending save has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels the active turn and in-flight saves and waits for them.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.stopAll()
	s.wg.Wait()
}

// persistTurn saves both messages of a delivered turn with two concurrent
// create-message calls. Failures are reported, never rolled back.
func (s *Session) persistTurn(t turnRun, assistant Message) {
	ctx := t.traceCtx

	chatID, err := s.ensureChat(ctx, t)
	if err != nil {
		s.notifySaveFailed("Failed to save chat", err)
		return
	}

	var g errgroup.Group
	save := func(local MessageID, m NewMessage) func() error {
		return func() error {
			saved, err := s.persister.CreateMessage(ctx, m)
			if err != nil {
				s.notifySaveFailed("Failed to save "+string(m.Role)+" message", err)
				return err
			}
			s.reconcile(local, saved)
			return nil
		}
	}
	g.Go(save(t.user.ID, NewMessage{
		ChatID:  chatID,
		Role:    models.RoleUser,
		Content: t.user.Content,
	}))
	g.Go(save(t.assistant, NewMessage{
		ChatID:       chatID,
		Role:         models.RoleAssistant,
		Content:      assistant.Content,
		InputTokens:  assistant.InputTokens,
		OutputTokens: assistant.OutputTokens,
	}))
	if err := g.Wait(); err != nil {
		logger.WarnWithFields("chat turn partially saved", logger.Fields{
			"request_id": trace.RequestIDFromContext(ctx),
			"chat_id":    chatID,
			"error":      err.Error(),
		})
	}
}

// ensureChat returns the chat the turn belongs to, creating it on the first
// save of a new conversation. Creation is serialized so two quick turns do
// not create two chats.
func (s *Session) ensureChat(ctx context.Context, t turnRun) (string, error) {
	if t.chatID != "" {
		return t.chatID, nil
	}
	s.createMu.Lock()
	defer s.createMu.Unlock()

	s.mu.Lock()
	if s.epoch == t.epoch && s.chatID != "" {
		id := s.chatID
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	created, err := s.persister.CreateChat(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.epoch == t.epoch && s.chatID == "" {
		s.chatID = created.ID
		msgs := make([]Message, len(s.messages))
		for i, m := range s.messages {
			if m.ChatID == "" {
				m.ChatID = created.ID
			}
			msgs[i] = m
		}
		s.messages = msgs
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.publish(snap)
	} else {
		s.mu.Unlock()
	}
	return created.ID, nil
}

// reconcile swaps a provisional id for the server's once the save succeeded.
// It is a no-op if the message left the history in the meantime.
func (s *Session) reconcile(local MessageID, saved models.Message) {
	s.mu.Lock()
	idx := -1
	for i, m := range s.messages {
		if !m.ID.IsPersisted() && m.ID.Local() == local.Local() {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	msgs[idx].ID = Persisted(saved.ID)
	msgs[idx].ChatID = saved.ChatID
	s.messages = msgs
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

func (s *Session) notifySaveFailed(msg string, err error) {
	logger.ErrorWithFields(msg, logger.Fields{"error": err.Error()})
	s.notifier.Notify(Notice{Kind: NoticeSaveFailed, Message: msg, Details: err.Error()})
}

// snapshotLocked bumps the version and returns the new state. Callers hold mu.
func (s *Session) snapshotLocked() Snapshot {
	s.version++
	return s.cloneLocked()
}

func (s *Session) cloneLocked() Snapshot {
	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	var ce *chaterrors.ChatError
	if s.chatErr != nil {
		c := *s.chatErr
		ce = &c
	}
	return Snapshot{
		Version:   s.version,
		ChatID:    s.chatID,
		Messages:  msgs,
		Input:     s.input,
		Streaming: s.streaming,
		Error:     ce,
	}
}

// publish forwards snap unless a newer version was already delivered.
func (s *Session) publish(snap Snapshot) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if snap.Version <= s.published {
		return
	}
	s.published = snap.Version
	s.notifier.Update(snap)
}
