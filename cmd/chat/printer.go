package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"ai-chat/chat"
	"ai-chat/models"
)

var (
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// printer writes streamed assistant text as it arrives. It implements
// chat.Notifier and only ever writes; it never calls into the session.
type printer struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer

	key  string
	text string
}

func newPrinter(out, errOut io.Writer) *printer {
	return &printer{out: out, err: errOut}
}

func (p *printer) Update(s chat.Snapshot) {
	if !s.Streaming || len(s.Messages) == 0 {
		return
	}
	last := s.Messages[len(s.Messages)-1]
	if last.Role != models.RoleAssistant {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if key := last.ID.String(); key != p.key {
		p.key, p.text = key, ""
		fmt.Fprint(p.out, assistantStyle.Render("assistant")+" ")
	}
	if len(last.Content) > len(p.text) && strings.HasPrefix(last.Content, p.text) {
		fmt.Fprint(p.out, last.Content[len(p.text):])
		p.text = last.Content
	}
}

func (p *printer) Notify(n chat.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch n.Kind {
	case chat.NoticeSaveFailed:
		fmt.Fprintln(p.err, warnStyle.Render("[not saved] "+n.Message))
	case chat.NoticeTurnFailed:
		if n.Retry {
			fmt.Fprintln(p.err, dimStyle.Render("type /retry to try again or /dismiss to clear"))
		} else {
			fmt.Fprintln(p.err, dimStyle.Render("type /dismiss to clear"))
		}
	}
}

// finish ends the streamed line for a completed turn.
func (p *printer) finish(out chat.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	streamed := p.key != ""
	p.key, p.text = "", ""

	switch out.State {
	case chat.Delivered:
		if !streamed {
			fmt.Fprint(p.out, assistantStyle.Render("assistant")+" ")
		}
		fmt.Fprintln(p.out)
		if out.Usage != nil {
			fmt.Fprintln(p.out, dimStyle.Render(fmt.Sprintf("tokens in=%d out=%d", out.Usage.InputTokens, out.Usage.OutputTokens)))
		}
	case chat.Aborted:
		if streamed {
			fmt.Fprintln(p.out)
		}
		fmt.Fprintln(p.err, warnStyle.Render("[cancelled]"))
	case chat.Failed:
		if streamed {
			fmt.Fprintln(p.out)
		}
		fmt.Fprintln(p.err, errorStyle.Render(out.Assistant.Content))
	}
}

// transcript prints a loaded conversation, oldest first.
func (p *printer) transcript(messages []chat.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range messages {
		label := userStyle.Render(string(m.Role))
		if m.Role == models.RoleAssistant {
			label = assistantStyle.Render(string(m.Role))
		}
		fmt.Fprintf(p.out, "%s %s\n", label, m.Content)
	}
}
