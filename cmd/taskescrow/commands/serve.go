package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/taskescrow/internal/daemon"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr string `help:"Override the HTTP listen address from the configuration"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.HTTP.Addr = s.Addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := daemon.OpenRuntime(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	watchPath := root.Config
	if !fileExists(watchPath) {
		watchPath = ""
	}
	d, err := daemon.New(cfg, watchPath, rt, logLevel)
	if err != nil {
		return err
	}

	slog.Info("Starting escrow service", "addr", cfg.HTTP.Addr, "store", string(cfg.Store.Driver))
	return d.Run(ctx)
}
