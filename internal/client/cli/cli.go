// Package cli implements the offsync command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/offsync/internal/client/iocli"
	"github.com/iudanet/offsync/internal/config"
)

// Version information, set from main
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// rootOptions are the persistent flags
type rootOptions struct {
	configPath string
	server     string
	db         string
	logLevel   string
	logFormat  string
	secret     string
}

// Cli holds what every command needs: the terminal, the configuration and
// the logger. The engine is opened per command with openApp.
type Cli struct {
	io        iocli.IO
	logOutput io.Writer
	opts      rootOptions
	cfg       config.Config
	logger    *slog.Logger
}

// New creates a Cli writing logs to logOutput
func New(io iocli.IO, logOutput io.Writer) *Cli {
	return &Cli{io: io, logOutput: logOutput}
}

// Execute runs the command line and returns the exit code
func Execute(ctx context.Context, args []string) int {
	c := New(iocli.NewStdio(), os.Stderr)
	cmd := c.RootCommand()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// RootCommand builds the command tree
func (c *Cli) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "offsync",
		Short:         "Offline-first sync engine",
		Long:          "offsync keeps a local copy of application data, queues changes made while offline and replays them once the server is reachable.",
		Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}
	root.SetOut(c.io)

	flags := root.PersistentFlags()
	flags.StringVarP(&c.opts.configPath, "config", "c", os.Getenv("OFFSYNC_CONFIG"), "path to the YAML config file")
	flags.StringVar(&c.opts.server, "server", "", "server URL")
	flags.StringVar(&c.opts.db, "db", "", "path to the local database")
	flags.StringVar(&c.opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&c.opts.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&c.opts.secret, "secret", "", "secret encrypting stored credentials (prefer OFFSYNC_SECRET)")

	root.AddCommand(
		c.proxyCommand(),
		c.runCommand(),
		c.watchCommand(),
		c.registerCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.statusCommand(),
		c.syncCommand(),
		c.queueCommand(),
		c.createCommand(),
		c.updateCommand(),
		c.getCommand(),
		c.listCommand(),
		c.deleteCommand(),
	)
	return root
}

// loadConfig applies file, environment and flags, in that order
func (c *Cli) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(c.opts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server = c.opts.server
	}
	if flags.Changed("db") {
		cfg.DBPath = c.opts.db
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = c.opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = c.opts.logFormat
	}
	if flags.Changed("secret") {
		cfg.Auth.Secret = c.opts.secret
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.cfg = cfg
	c.logger = cfg.Log.NewLogger(c.logOutput)
	return nil
}

// openApp opens the engine; the caller closes it
func (c *Cli) openApp(ctx context.Context) (*App, error) {
	return OpenApp(ctx, c.cfg, c.logger)
}

// withApp opens the engine around fn
func (c *Cli) withApp(ctx context.Context, fn func(*App) error) error {
	app, err := c.openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			c.logger.Error("Failed to close database", "error", err)
		}
	}()
	return fn(app)
}
