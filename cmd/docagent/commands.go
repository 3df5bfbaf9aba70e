package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/rickchristie/docagent/assistant"
	"github.com/rickchristie/docagent/server"
)

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ---
// ask

// AskCmd answers a single question.
// Usage: docagent ask paper.pdf "What is the title of this paper?"
type AskCmd struct {
	root *Options

	Args struct {
		Document string   `positional-arg-name:"pdf" required:"yes"`
		Query    []string `positional-arg-name:"query" required:"yes"`
	} `positional-args:"yes"`
}

func (c *AskCmd) Execute(_ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, _, err := c.root.loadAssistant(ctx)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	answer := a.Answer(ctx, c.Args.Document, strings.Join(c.Args.Query, " "))
	_, err = fmt.Fprintln(c.root.stdout, answer)
	return err
}

// ---
// chat

// ChatCmd ingests a PDF once and answers questions until EOF or Ctrl-C.
// Usage: docagent chat paper.pdf
type ChatCmd struct {
	root *Options

	Prompt string `long:"prompt" description:"input prompt" default:"> "`

	Args struct {
		Document string `positional-arg-name:"pdf" required:"yes"`
	} `positional-args:"yes"`
}

func (c *ChatCmd) Execute(_ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, logger, err := c.root.loadAssistant(ctx)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	session, err := a.Ingest(ctx, c.Args.Document)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("removing document chunks", slog.Any("error", err))
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt: c.Prompt,
		Stdin:  c.root.stdin,
		Stdout: c.root.stdout,
		Stderr: c.root.stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close() //nolint:errcheck

	if title := session.Title(); title != "" {
		fmt.Fprintf(c.root.stdout, "Loaded %q. Ask away, Ctrl-D to quit.\n", title) //nolint:errcheck
	}
	return chatLoop(ctx, rl, c.root.stdout, session)
}

type lineReader interface {
	Readline() (string, error)
}

type asker interface {
	Ask(ctx context.Context, query string) *assistant.Response
}

// chatLoop answers each non-empty line until EOF, an interrupt, or ctx is canceled.
func chatLoop(ctx context.Context, lines lineReader, out io.Writer, session asker) error {
	for ctx.Err() == nil {
		line, err := lines.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "Goodbye!") //nolint:errcheck
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		query := strings.TrimSpace(line)
		switch query {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!") //nolint:errcheck
			return nil
		}

		resp := session.Ask(ctx, query)
		if _, err := fmt.Fprintf(out, "Assistant:\n\n%s\n\n", resp.Answer); err != nil {
			return err
		}
	}
	return nil
}

// ---
// serve

// ServeCmd starts the web form.
// Usage: docagent serve --addr :8080
type ServeCmd struct {
	root *Options

	Addr string `short:"a" long:"addr" description:"listen address (overrides server.addr)"`
}

func (c *ServeCmd) Execute(_ []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, logger, err := c.root.load()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		logger.Warn("no API token configured, uploads must supply one",
			slog.String("env", strings.Join(missing, ",")))
	}

	srv := server.New(*cfg, logger)
	defer srv.Close() //nolint:errcheck
	return srv.Run(ctx)
}
