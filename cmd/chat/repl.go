package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"ai-chat/appstate"
	"ai-chat/catalog"
	"ai-chat/chat"
	"ai-chat/models"
)

const maxListedModels = 25

const helpText = `commands:
  /models [filter]   list catalog models
  /model <id>        select a model
  /refresh           refetch the model catalog
  /save [id]         toggle a saved model (default: the selected one)
  /saved             list saved models
  /chats             list saved chats
  /open <n|id>       load a chat
  /delete <n|id>     delete a chat
  /new               start a new chat
  /retry             resend the last message
  /dismiss           clear the last error
  /usage             token usage of this chat
  /system [text]     set or clear system instructions
  /key <key|clear>   override the OpenRouter API key
  /quit              exit`

var errUnknownCommand = errors.New("unknown command, try /help")

type repl struct {
	st  *appstate.State
	p   *printer
	out io.Writer

	// chats is the last /chats listing, so /open and /delete accept indexes.
	chats []models.Chat
}

// handle runs one input line. It returns true when the user asked to quit.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		r.st.Session.SetInput(line)
		return false, r.await(ctx, r.st.Session.Submit)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/models":
		return false, r.listModels(ctx, arg)
	case "/model":
		return false, r.selectModel(ctx, arg)
	case "/refresh":
		if err := r.st.Catalog.Invalidate(); err != nil {
			return false, err
		}
		return false, r.listModels(ctx, "")
	case "/save":
		return false, r.toggleSaved(ctx, arg)
	case "/saved":
		return false, r.listSaved(ctx)
	case "/chats":
		return false, r.listChats(ctx)
	case "/open":
		return false, r.openChat(ctx, arg)
	case "/delete":
		return false, r.deleteChat(ctx, arg)
	case "/new", "/reset":
		r.st.Session.Reset()
		fmt.Fprintln(r.out, dimStyle.Render("new chat"))
	case "/retry":
		return false, r.await(ctx, r.st.Session.Retry)
	case "/dismiss":
		r.dismiss()
	case "/usage":
		r.usage()
	case "/system":
		r.st.Session.SetInstructions(arg)
	case "/key":
		return false, r.setKey(arg)
	default:
		return false, errUnknownCommand
	}
	return false, nil
}

// await starts a turn and blocks until it ends.
func (r *repl) await(ctx context.Context, start func() (*chat.Turn, error)) error {
	turn, err := start()
	if err != nil {
		return err
	}
	out, err := turn.Wait(ctx)
	if err != nil {
		return err
	}
	r.p.finish(out)
	return nil
}

func (r *repl) dismiss() {
	ce := r.st.Session.Snapshot().Error
	if ce == nil {
		fmt.Fprintln(r.out, dimStyle.Render("no error to dismiss"))
		return
	}
	r.st.Session.DismissError()
	fmt.Fprintln(r.out, dimStyle.Render("dismissed "+string(ce.Type)+" error"))
}

func (r *repl) listModels(ctx context.Context, filter string) error {
	res := r.st.Catalog.Fetch(ctx)
	if res.Unavailable() {
		return fmt.Errorf("model catalog unavailable: %s", res.Err)
	}

	selected := r.st.Selection.Selected()
	filter = strings.ToLower(filter)
	shown := 0
	for _, m := range res.Models {
		if filter != "" && !strings.Contains(strings.ToLower(m.ID+" "+m.Name), filter) {
			continue
		}
		if shown == maxListedModels {
			fmt.Fprintln(r.out, dimStyle.Render("... narrow the list with /models <filter>"))
			break
		}
		shown++
		fmt.Fprintf(r.out, "%s %s %s\n", marker(selected, m.ID, r.st.Saved.IsSaved(m.ID)), m.ID, dimStyle.Render(m.Name))
	}
	if shown == 0 {
		fmt.Fprintln(r.out, dimStyle.Render("no models"))
	}
	return nil
}

func marker(selected *catalog.Model, id string, saved bool) string {
	switch {
	case selected != nil && selected.ID == id:
		return ">"
	case saved:
		return "*"
	}
	return " "
}

func (r *repl) findModel(ctx context.Context, id string) (catalog.Model, error) {
	res := r.st.Catalog.Fetch(ctx)
	if res.Unavailable() {
		return catalog.Model{}, fmt.Errorf("model catalog unavailable: %s", res.Err)
	}
	for _, m := range res.Models {
		if m.ID == id {
			return m, nil
		}
	}
	return catalog.Model{}, fmt.Errorf("unknown model %q", id)
}

func (r *repl) selectModel(ctx context.Context, id string) error {
	if id == "" {
		if m := r.st.Selection.Selected(); m != nil {
			fmt.Fprintf(r.out, "%s %s\n", m.ID, dimStyle.Render(m.Name))
			return nil
		}
		return errors.New("no model selected, use /model <id>")
	}
	m, err := r.findModel(ctx, id)
	if err != nil {
		return err
	}
	return r.st.Selection.Set(m)
}

func (r *repl) toggleSaved(ctx context.Context, id string) error {
	name := ""
	if id == "" {
		m := r.st.Selection.Selected()
		if m == nil {
			return errors.New("no model selected")
		}
		id, name = m.ID, m.Name
	} else if m, err := r.findModel(ctx, id); err == nil {
		name = m.Name
	} else if !r.st.Saved.IsSaved(id) {
		return err
	}

	saved, err := r.st.Saved.Toggle(id, name)
	if err != nil {
		return err
	}
	if saved {
		fmt.Fprintf(r.out, "saved %s\n", id)
	} else {
		fmt.Fprintf(r.out, "removed %s\n", id)
	}
	return nil
}

func (r *repl) listSaved(ctx context.Context) error {
	entries := r.st.Saved.List()
	if len(entries) == 0 {
		fmt.Fprintln(r.out, dimStyle.Render("no saved models"))
		return nil
	}
	res := r.st.Catalog.Fetch(ctx)
	for _, v := range catalog.Annotate(entries, res.Models) {
		line := fmt.Sprintf("%s %s", v.Entry.ID, dimStyle.Render(v.Entry.Name))
		if !v.Available {
			line += " " + warnStyle.Render("(unavailable)")
		}
		fmt.Fprintln(r.out, line)
	}
	return nil
}

func (r *repl) listChats(ctx context.Context) error {
	chats, err := r.st.History.ListChats(ctx)
	if err != nil {
		return err
	}
	r.chats = chats
	if len(chats) == 0 {
		fmt.Fprintln(r.out, dimStyle.Render("no chats"))
		return nil
	}
	for i, c := range chats {
		title := "(untitled)"
		if c.Title != nil {
			title = *c.Title
		}
		fmt.Fprintf(r.out, "%2d. %s %s\n", i+1, title, dimStyle.Render(c.CreatedAt.Local().Format(time.DateTime)))
	}
	return nil
}

// resolveChat accepts a 1-based index into the last listing or a chat id.
func (r *repl) resolveChat(arg string) (string, error) {
	if arg == "" {
		return "", errors.New("chat index or id required")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(r.chats) {
			return "", fmt.Errorf("no chat #%d, run /chats first", n)
		}
		return r.chats[n-1].ID, nil
	}
	return arg, nil
}

func (r *repl) openChat(ctx context.Context, arg string) error {
	id, err := r.resolveChat(arg)
	if err != nil {
		return err
	}
	records, err := r.st.History.Messages(ctx, id)
	if err != nil {
		return err
	}
	r.st.Session.Load(id, records)
	r.p.transcript(r.st.Session.Snapshot().Messages)
	return nil
}

func (r *repl) deleteChat(ctx context.Context, arg string) error {
	id, err := r.resolveChat(arg)
	if err != nil {
		return err
	}
	if err := r.st.History.DeleteChat(ctx, id); err != nil {
		return err
	}
	if r.st.Session.Snapshot().ChatID == id {
		r.st.Session.Reset()
	}
	r.chats = nil
	fmt.Fprintln(r.out, dimStyle.Render("deleted"))
	return nil
}

func (r *repl) usage() {
	var contextLength int64
	if m := r.st.Selection.Selected(); m != nil {
		contextLength = m.ContextWindow()
	}
	u := chat.TotalUsage(r.st.Session.Snapshot().Messages, contextLength)
	fmt.Fprintf(r.out, "input %d  output %d  total %d", u.InputTokens, u.OutputTokens, u.TotalTokens)
	if contextLength > 0 {
		fmt.Fprintf(r.out, "  context %.1f%%", u.ContextUsagePercent)
	}
	fmt.Fprintln(r.out)
}

func (r *repl) setKey(arg string) error {
	if arg == "clear" {
		return r.st.ClearAPIKey()
	}
	if err := r.st.SetAPIKey(arg); err != nil {
		return err
	}
	// refetch the catalog with the new key
	return r.st.Catalog.Invalidate()
}
