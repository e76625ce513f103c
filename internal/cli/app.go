// app.go wires the shared client stack: config, logger, credentials, API
// client, event trace, history cache, session store and stream channel.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/sitewright-dev/sitewright/internal/api"
	"github.com/sitewright-dev/sitewright/internal/auth"
	"github.com/sitewright-dev/sitewright/internal/channel"
	"github.com/sitewright-dev/sitewright/internal/config"
	"github.com/sitewright-dev/sitewright/internal/eventlog"
	"github.com/sitewright-dev/sitewright/internal/generation"
	"github.com/sitewright-dev/sitewright/internal/history"
	"github.com/sitewright-dev/sitewright/internal/logger"
)

const historyFile = "history.db"

// app holds everything a command needs. Build one per invocation with
// newApp and close it before returning.
type app struct {
	dir     string
	cfg     *config.Config
	log     *logger.Logger
	auth    *auth.Store
	client  *api.Client
	events  *eventlog.Log
	history *history.Store
	store   *generation.Store
	channel *channel.Channel
}

func newApp() (*app, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	cfg, err := config.ReadConfig(dir)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Mode, verbose)
	if err != nil {
		return nil, err
	}

	authStore, err := auth.NewStore(dir)
	if err != nil {
		return nil, err
	}

	// A 401 means the cached token is stale; drop it so the next command
	// prompts for login instead of failing the same way.
	client := api.NewClient(cfg.Endpoints.API, authStore, func() {
		_ = authStore.Clear()
	}, log)

	events, err := eventlog.New(dir)
	if err != nil {
		return nil, err
	}

	hist, err := history.NewStore(filepath.Join(dir, historyFile))
	if err != nil {
		return nil, err
	}

	store := generation.NewStore(client, hist, events, log)
	ch := channel.New(cfg.Endpoints.Stream, store, events, log)

	return &app{
		dir:     dir,
		cfg:     cfg,
		log:     log,
		auth:    authStore,
		client:  client,
		events:  events,
		history: hist,
		store:   store,
		channel: ch,
	}, nil
}

func (a *app) close() {
	a.channel.Disconnect()
	if err := a.history.Close(); err != nil {
		a.log.Warn("closing history store", "error", err)
	}
	a.log.Sync()
}

// stdoutIsTTY decides between the interactive watch view and plain output.
func stdoutIsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
