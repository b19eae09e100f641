package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pricelens/backend/config"
	httpDelivery "github.com/pricelens/backend/internal/delivery/http"
	"github.com/pricelens/backend/internal/logger"
	"github.com/spf13/cobra"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "pricelens",
		Short:        "Product price and review analysis service",
		SilenceUsage: true,
		RunE:         runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API server",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "analyze <product-url>",
			Short: "Analyze a single product and print the result as JSON",
			Args:  cobra.ExactArgs(1),
			RunE:  runAnalyze,
		},
		newCacheCommand(),
	)
	return root
}

func newCacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result cache",
	}
	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Print cache membership",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, a *app) error {
					stats, err := a.analysis.CacheStats(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd, stats)
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached analysis",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, a *app) error {
					if err := a.analysis.ClearCache(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
					return nil
				})
			},
		},
	)
	return cacheCmd
}

// withApp loads configuration, wires the stack and runs fn with a context
// cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	log, err := logger.New(cfg.Log.JSON, cfg.Log.Level)
	if err != nil {
		return errors.Wrap(err, "failed to create logger")
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(cfg, log)
	if err != nil {
		return errors.Wrap(err, "failed to initialize application")
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, a)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		result, err := a.analysis.Analyze(ctx, args[0])
		if err != nil {
			if hints := errors.FlattenHints(err); hints != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), hints)
			}
			return err
		}
		return printJSON(cmd, result)
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		cfg, log := a.cfg, a.log

		log.Infow("starting PriceLens backend",
			"version", version,
			"environment", cfg.Server.Environment,
			"port", cfg.Server.Port,
			"acquisition_mode", cfg.Acquisition.Mode,
			"cache_type", cfg.Cache.Type,
			"cache_ttl", cfg.Cache.TTL.String(),
			"max_retries", cfg.Acquisition.MaxRetries,
		)

		a.startJanitor(ctx)

		handler := httpDelivery.NewHandler(a.analysis, logger.Named(log, "http"))
		router := httpDelivery.SetupRouter(cfg, handler, logger.Named(log, "http"))

		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			log.Infow("server listening", "addr", srv.Addr)
			serveErr <- srv.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return errors.Wrap(err, "failed to start server")
		case <-ctx.Done():
		}

		log.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "graceful shutdown failed")
		}
		return nil
	})
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
