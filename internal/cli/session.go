package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	connectx "github.com/mintelligence/connectx-go"
	"github.com/mintelligence/connectx-go/internal/config"
	"github.com/mintelligence/connectx-go/internal/logging"
)

// settings loads the config file and environment, then applies any flag
// the user set explicitly.
func (o *rootOptions) settings(cmd *cobra.Command) (*config.Demo, error) {
	cfg, err := config.LoadDemo(config.Path(o.configPath))
	if err != nil {
		return nil, err
	}

	o.applyFlags(cmd.Flags(), cfg)
	return cfg, nil
}

// applyFlags overrides cfg with every session flag set on the command line.
func (o *rootOptions) applyFlags(flags *pflag.FlagSet, cfg *config.Demo) {
	if flags.Changed("token") {
		cfg.Token = o.token
	}
	if flags.Changed("org") {
		cfg.OrganizationID = o.org
	}
	if flags.Changed("env") {
		cfg.Env = o.env
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = o.baseURL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.LogPretty = o.logPretty
	}
}

// session is an initialized client plus the delivery failures it reported.
type session struct {
	client *connectx.Client
	log    zerolog.Logger
	cfg    *config.Demo

	mu      sync.Mutex
	dropped []error
}

// openSession builds a client from the command's settings and initializes it.
func (o *rootOptions) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := o.settings(cmd)
	if err != nil {
		return nil, err
	}

	log := logging.NewWithComponent(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: cmd.ErrOrStderr(),
	}, "connectx-demo")

	s := &session{log: log, cfg: cfg}
	opts := []connectx.Option{
		connectx.WithTimeout(cfg.Timeout),
		connectx.WithLogger(log),
		connectx.WithOnDropped(s.recordDrop),
	}
	switch {
	case cfg.BaseURL != "":
		opts = append(opts, connectx.WithBaseURL(cfg.BaseURL))
	case cfg.Env != "":
		opts = append(opts, connectx.WithEnv(cfg.Env))
	}

	client, err := connectx.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	creds := connectx.Credentials{Token: cfg.Token, OrganizationID: cfg.OrganizationID}
	if err := client.Initialize(cmd.Context(), creds); err != nil {
		_ = client.Close()
		return nil, err
	}
	s.client = client
	return s, nil
}

func (s *session) recordDrop(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = append(s.dropped, err)
}

// finish flushes queued calls, closes the client and reports the first
// delivery failure, if any.
func (s *session) finish(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout+5*time.Second)
	defer cancel()

	flushErr := s.client.Flush(ctx)
	closeErr := s.client.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dropped) > 0 {
		return fmt.Errorf("%d call(s) not delivered: %w", len(s.dropped), s.dropped[0])
	}
	return errors.Join(flushErr, closeErr)
}
