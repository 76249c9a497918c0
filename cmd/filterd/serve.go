package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/filterbind/internal/config"
	"github.com/vango-dev/filterbind/internal/errors"
	"github.com/vango-dev/filterbind/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the filter websocket server",
		Long: `Run the filter websocket server.

Filters are declared in filterd.json. Browsers connect to /ws with the
page's URL in ?href= and exchange input, navigate and url frames.

Examples:
  filterd serve
  filterd serve --config ./deploy/filterd.json --addr :8080
  filterd serve --log-level debug --log-format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", ".", "Config file or directory containing filterd.json")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from filterd.json)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	success("Loaded %d filter(s) from %s", len(cfg.Filters), cfg.Path())
	for _, f := range cfg.Filters {
		info("%-12s %-6s %-7s delay=%s", f.Name, f.Type, f.Mode, f.Delay)
	}
	info("Listening on %s", cfg.Server.Addr)

	srv := server.New(cfg, server.WithLogger(logger.With("component", "server")))
	return srv.ListenAndServe(ctx)
}

// loadConfig accepts either a filterd.json path or the directory holding it.
func loadConfig(path string) (*config.Config, error) {
	st, err := os.Stat(path)
	if err == nil && st.IsDir() {
		return config.Load(path)
	}
	return config.LoadFile(path)
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.New("F020").WithDetailf("--log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, errors.New("F020").WithDetailf("--log-format %q", format).
		WithSuggestion("Use text or json")
}
