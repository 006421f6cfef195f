package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/taskescrow/internal/config"
	"git.home.luguber.info/inful/taskescrow/internal/daemon"
	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
)

// logLevel is shared by the CLI logger and the daemon's config reload.
var logLevel = new(slog.LevelVar)

// LogLevel returns the level variable backing the default logger.
func LogLevel() *slog.LevelVar { return logLevel }

// Global carries state shared by all subcommands.
type Global struct {
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"taskescrow.yaml" env:"TASKESCROW_CONFIG"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format (text|json)" default:"text" enum:"text,json"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve      ServeCmd     `cmd:"" help:"Run the escrow registry HTTP service"`
	Init       InitCmd      `cmd:"" help:"Initialize a new configuration file"`
	Keygen     KeygenCmd    `cmd:"" help:"Generate an identity keypair file"`
	Create     CreateCmd    `cmd:"" help:"Create a task escrow record signed by the depositor"`
	Complete   CompleteCmd  `cmd:"" help:"Mark a task escrow record completed"`
	Show       ShowCmd      `cmd:"" help:"Show a task escrow record"`
	Handshake  HandshakeCmd `cmd:"" help:"Run the initialize handshake against the configured store"`
	Greet      GreetCmd     `cmd:"" help:"Print the program greeting without touching any store"`
	VersionCmd VersionCmd   `cmd:"" name:"version" help:"Print detailed version information"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	if c.Verbose {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelInfo)
	}
	format := config.NormalizeLogFormat(c.LogFormat)
	slog.SetDefault(slog.New(config.NewLogHandler(os.Stderr, format, logLevel)))
	return nil
}

// loadConfig reads the configuration file. A missing file falls back to
// defaults with a sqlite store next to where the config file would live, so
// records outlive the command that created them.
func (c *CLI) loadConfig() (*config.Config, error) {
	if _, err := os.Stat(c.Config); errors.Is(err, fs.ErrNotExist) {
		return fallbackConfig(c.Config), nil
	}
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if !c.Verbose {
		logLevel.Set(cfg.Logging.Level.SlogLevel())
	}
	return cfg, nil
}

func fallbackConfig(configPath string) *config.Config {
	cfg := config.Default()
	cfg.Store.Driver = config.StoreDriverSQLite
	cfg.Store.SQLitePath = filepath.Join(filepath.Dir(configPath), filepath.Base(config.DefaultSQLitePath))
	slog.Debug("No configuration file, using defaults",
		slog.String("path", configPath),
		slog.String("sqlite_path", cfg.Store.SQLitePath))
	return cfg
}

// openRuntime loads configuration and opens the store with its observers.
// The HTTP-only parts of the config are ignored.
func (c *CLI) openRuntime(ctx context.Context) (*daemon.Runtime, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return daemon.OpenRuntime(ctx, cfg, slog.Default())
}

func closeRuntime(rt *daemon.Runtime) {
	if err := rt.Close(); err != nil {
		slog.Warn("Failed to close runtime", "error", err)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return ferrors.InternalError("failed to encode output").WithCause(err).Build()
	}
	return nil
}
