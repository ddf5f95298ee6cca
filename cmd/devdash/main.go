package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/auditmos/devdash/applog"
	"github.com/auditmos/devdash/config"
	"github.com/auditmos/devdash/dashboard"
	"github.com/auditmos/devdash/logging"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	app := NewApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func NewApp() *cli.App {
	return &cli.App{
		Name:    "devdash",
		Usage:   "local developer dashboard with rotating application logs",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
				EnvVars: []string{"DEVDASH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "runtime mode: production or development",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "directory holding memory_notepad.md, .github/ and repo_analysis/",
			},
			&cli.StringFlag{
				Name:  "log-dir",
				Usage: "application log directory (relative to root unless absolute)",
			},
			&cli.StringFlag{
				Name:  "diag-level",
				Usage: "diagnostics level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "diag-format",
				Usage: "diagnostics format: human or json",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			cleanupCommand(),
			statsCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the dashboard and the retention sweeper",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "dashboard listen address",
			},
			&cli.DurationFlag{
				Name:  "sweep-interval",
				Usage: "how often old logs are swept",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("addr") {
				cfg.Addr = c.String("addr")
			}
			if c.IsSet("sweep-interval") {
				cfg.SweepInterval = config.Duration(c.Duration("sweep-interval"))
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runServe(cfg, c.App.Writer)
		},
	}
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "delete log files older than the retention window",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runCleanup(cfg, c.App.Writer)
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "show log directory statistics",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print statistics as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runStats(cfg, c.Bool("json"), c.App.Writer)
		},
	}
}

// loadConfig layers file, environment and global flags, in that order.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}

	if c.IsSet("env") {
		mode, err := config.ParseMode(c.String("env"))
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	if c.IsSet("root") {
		cfg.Root = c.String("root")
	}
	if c.IsSet("log-dir") {
		cfg.LogDir = c.String("log-dir")
	}
	if c.IsSet("diag-level") {
		cfg.DiagLevel = c.String("diag-level")
	}
	if c.IsSet("diag-format") {
		cfg.DiagFormat = c.String("diag-format")
	}
	return cfg, nil
}

func logDir(cfg config.Config) string {
	if filepath.IsAbs(cfg.LogDir) {
		return cfg.LogDir
	}
	return filepath.Join(cfg.Root, cfg.LogDir)
}

func newManager(cfg config.Config, diag logging.Logger) (*applog.Manager, error) {
	m, err := applog.New(applog.Config{
		Dir:              logDir(cfg),
		MaxFileSize:      cfg.MaxFileSizeBytes(),
		Retention:        cfg.Retention(),
		Enabled:          cfg.Mode.IsProduction(),
		Redact:           cfg.RedactContext,
		CrossProcessLock: true,
		Diag:             diag,
	})
	if err != nil {
		return nil, fmt.Errorf("init log manager: %w", err)
	}
	return m, nil
}

func runServe(cfg config.Config, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	diag := logging.NewStderrLogger(cfg.DiagLevel, cfg.DiagFormat)
	logs, err := newManager(cfg, diag)
	if err != nil {
		return err
	}

	if !logs.Enabled() {
		fmt.Fprintf(out, "Log rotation disabled in %s mode\n", cfg.Mode)
	}

	feed := dashboard.NewStatsFeed(logs, diag)
	srv, err := dashboard.NewServer(dashboard.ServerConfig{
		Addr:          cfg.Addr,
		Root:          cfg.Root,
		Logs:          logs,
		Logger:        diag,
		Feed:          feed,
		CleanupPerMin: cfg.CleanupPerMin,
		OverridesDir:  filepath.Join(cfg.Root, ".devdash", "templates"),
	})
	if err != nil {
		return fmt.Errorf("init dashboard: %w", err)
	}
	srv.SetReadyCallback(func() {
		fmt.Fprintf(out, "Dashboard: http://%s\n", srv.Addr())
	})

	logs.Info("Dashboard starting", map[string]any{"addr": cfg.Addr, "mode": string(cfg.Mode)})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error {
		return applog.NewSweeper(logs, time.Duration(cfg.SweepInterval)).Run(gctx)
	})
	g.Go(func() error {
		if err := feed.Run(gctx); err != nil {
			// live stats are optional; the dashboard keeps serving without them
			diag.WithError(err).Warn("cli", "serve", "Live stats unavailable")
		}
		return nil
	})

	err = g.Wait()
	fmt.Fprintln(out, "Shutting down...")
	logs.Info("Dashboard stopped", nil)
	return err
}

func runCleanup(cfg config.Config, out io.Writer) error {
	diag := logging.NewStderrLogger(cfg.DiagLevel, cfg.DiagFormat)
	logs, err := newManager(cfg, diag)
	if err != nil {
		return err
	}
	if !logs.Enabled() {
		fmt.Fprintf(out, "Log rotation disabled in %s mode; nothing deleted\n", cfg.Mode)
		return nil
	}

	res := logs.Cleanup()
	for _, name := range res.Deleted {
		fmt.Fprintf(out, "deleted %s\n", name)
	}
	stats := logs.Stats()
	fmt.Fprintf(out, "Cleanup completed: %d deleted, %d remaining (%s)\n",
		len(res.Deleted), stats.FileCount, stats.TotalSize)
	return nil
}

func runStats(cfg config.Config, asJSON bool, out io.Writer) error {
	logs, err := newManager(cfg, logging.NewStderrLogger(cfg.DiagLevel, cfg.DiagFormat))
	if err != nil {
		return err
	}
	stats := logs.Stats()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(out, "Directory: %s\n", logs.Dir())
	fmt.Fprintf(out, "Files:     %d\n", stats.FileCount)
	fmt.Fprintf(out, "Size:      %s (%s)\n", stats.TotalSize, humanize.IBytes(uint64(stats.TotalBytes)))
	for _, name := range stats.Files {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}
