// Command chat is an interactive terminal client for the chat API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"ai-chat/appstate"
	"ai-chat/config"
	"ai-chat/logger"
)

const historyFile = "input_history"

func main() {
	config.InitApp()
	cfg := config.GetConfig()

	if err := config.ValidateClient(cfg); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Client.DataDir, 0o700); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
	logger.InitFile(filepath.Join(cfg.Client.DataDir, "chat.log"), cfg.Logging.Level)

	p := newPrinter(os.Stdout, os.Stderr)
	st, err := appstate.New(cfg, nil, p)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	// Ctrl-C while streaming cancels only the current turn; at the prompt liner handles it.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		for sig := range sigs {
			st.Session.Cancel()
			if sig == syscall.SIGTERM {
				st.Close()
				os.Exit(0)
			}
		}
	}()

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	histPath := filepath.Join(cfg.Client.DataDir, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(histPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
		line.Close()
	}()

	r := &repl{st: st, p: p, out: os.Stdout}
	printWelcome(r)

	ctx := context.Background()
	for {
		input, err := line.Prompt("you> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Println()
			return
		}
		if err != nil {
			logger.Log.Errorf("prompt failed: %v", err)
			return
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		quit, err := r.handle(ctx, input)
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		}
		if quit {
			return
		}
	}
}

func printWelcome(r *repl) {
	fmt.Fprintln(r.out, assistantStyle.Render("ai-chat")+" "+dimStyle.Render("type /help for commands"))
	if m := r.st.Selection.Selected(); m != nil {
		fmt.Fprintln(r.out, dimStyle.Render("model: "+m.ID))
	} else {
		fmt.Fprintln(r.out, warnStyle.Render("no model selected, pick one with /models and /model <id>"))
	}
}
