package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"token_analyst/config"
	"token_analyst/dispatcher"
	"token_analyst/ledger"
	"token_analyst/server"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "token-analyst",
	Short: "Credit-gated multi-stage token analysis service",
	Long: `token-analyst answers token analysis commands by running discovery, whale,
market and financial stages over one token, charging the caller's credit
balance before any paid work.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = buildLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the command API",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDispatcher(cmd.Context())
		if err != nil {
			return err
		}
		// ledger round trips on top of the pipeline budget
		budget := cfg.Pipeline.Timeout + 3*cfg.Ledger.Timeout
		srv, err := server.New(d, budget, logger)
		if err != nil {
			return err
		}
		return listen(cmd.Context(), cfg.ServerAddr, srv.Routes())
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Serve the reference credit ledger backed by SQLite",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := ledger.OpenStore(cfg.Ledger.DBPath, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		svc := ledger.NewService(store, ledger.DefaultChain, logger)
		return listen(cmd.Context(), cfg.Ledger.ServiceAddr, svc.Routes())
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <user_id> <command> [args...]",
	Short: "Run one command through the dispatcher and print the reply",
	Example: `  token-analyst analyze 42 analyze 0x4200000000000000000000000000000000000042
  token-analyst analyze 42 discover
  token-analyst analyze 42 credits`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDispatcher(cmd.Context())
		if err != nil {
			return err
		}
		out := d.Handle(cmd.Context(), dispatcher.Request{
			UserID:  args[0],
			Command: args[1],
			Args:    args[2:],
		})
		w := cmd.OutOrStdout()
		for _, n := range out.Notices {
			fmt.Fprintln(w, n)
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, out.Reply)
		for _, p := range out.PaymentOptions {
			fmt.Fprintf(w, "  %s: %s\n", p.Label, p.URL)
		}
		logger.Debug("command finished", zap.String("request_id", out.RequestID), zap.String("state", string(out.State)))
		if out.State == dispatcher.StateFailed {
			return out.Err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildLogger(lc config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		lvl, err := zap.ParseAtomicLevel(strings.ToLower(lc.Level))
		if err != nil {
			return nil, err
		}
		zc.Level = lvl
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

// listen serves h on addr until ctx ends, then drains in-flight requests.
func listen(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.String("addr", addr))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
