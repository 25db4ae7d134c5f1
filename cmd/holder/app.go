package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/a2f-auth/a2f/internal/config"
	"github.com/a2f-auth/a2f/internal/holder"
	"github.com/a2f-auth/a2f/internal/infra"
	"github.com/a2f-auth/a2f/internal/logging"
	"github.com/a2f-auth/a2f/internal/poller"
)

type app struct {
	configPath string

	logger  *slog.Logger
	holder  *holder.Holder
	store   holder.Store
	profile *holder.Profile
}

// setup loads configuration and brings the holder to the ready stage.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadHolder(a.configPath)
	if err != nil {
		return err
	}
	a.logger = logging.NewConsole(os.Stderr, cfg.LogLevel)

	facade, err := infra.NewLedger(cfg.Ledger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	p := poller.New(facade, poller.Config{
		Period:  cfg.Interval,
		OnCycle: func(int) { fmt.Fprint(out, ".") },
	}, a.logger)

	a.holder = holder.New(facade, p, out, a.logger)
	a.store = holder.FileStore{Path: cfg.StatePath, Passphrase: cfg.Passphrase}
	a.profile, err = a.holder.Enroll(cmd.Context(), a.store)
	return err
}

// save persists the profile if one was loaded.
func (a *app) save() error {
	if a.profile == nil || a.store == nil {
		return nil
	}
	st, err := a.profile.State()
	if err != nil {
		return err
	}
	return a.store.Save(st)
}
