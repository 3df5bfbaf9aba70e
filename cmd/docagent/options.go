package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rickchristie/docagent/assistant"
	"github.com/rickchristie/docagent/config"
)

// Options is the root command that groups sub-commands. The struct tags are interpreted by
// github.com/jessevdk/go-flags.
type Options struct {
	Config    string   `short:"f" long:"config" description:"config YAML path"`
	EnvFiles  []string `long:"env-file" description:".env file to load (repeatable, default .env)"`
	LogLevel  string   `long:"log-level" description:"override log level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	LogFormat string   `long:"log-format" description:"override log format" choice:"text" choice:"json"`

	Ask   AskCmd   `command:"ask" description:"Answer one question about a PDF"`
	Chat  ChatCmd  `command:"chat" description:"Ask questions about a PDF interactively"`
	Serve ServeCmd `command:"serve" description:"Start the web form"`

	stdin          io.ReadCloser
	stdout         io.Writer
	stderr         io.Writer
	newAssistant   func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*assistant.Assistant, error)
	requireAPIKeys bool
}

func newOptions(stdin io.ReadCloser, stdout, stderr io.Writer) *Options {
	o := &Options{
		stdin:          stdin,
		stdout:         stdout,
		stderr:         stderr,
		newAssistant:   assistant.FromConfig,
		requireAPIKeys: true,
	}
	o.Ask.root = o
	o.Chat.root = o
	o.Serve.root = o
	return o
}

// load reads the configuration, applies flag overrides, and builds the logger.
func (o *Options) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.Config, o.EnvFiles...)
	if err != nil {
		return nil, nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	return cfg, cfg.Log.NewLogger(o.stderr), nil
}

// loadAssistant is load plus a ready Assistant, for the commands that query models
// directly.
func (o *Options) loadAssistant(ctx context.Context) (*assistant.Assistant, *slog.Logger, error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	if missing := cfg.MissingCredentials(); o.requireAPIKeys && len(missing) > 0 {
		return nil, nil, fmt.Errorf("missing API token: set %s", strings.Join(missing, " or "))
	}
	a, err := o.newAssistant(ctx, *cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}
