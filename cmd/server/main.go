package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/RichardoC/padchat/internal/api"
	"github.com/RichardoC/padchat/internal/auth"
	"github.com/RichardoC/padchat/internal/config"
	"github.com/RichardoC/padchat/internal/db"
	"github.com/RichardoC/padchat/internal/llm"
)

const shutdownTimeout = 30 * time.Second

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP server",
		RunE:  runServe,
	}
	root := &cobra.Command{
		Use:     "padchat",
		Short:   "Chat server with stored conversations and a hosted language model",
		Version: version,
		RunE:    runServe,

		SilenceUsage: true,
	}
	root.AddCommand(
		serveCmd,
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema",
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "models",
			Short: "List the models available to the configured credential",
			RunE:  runModels,
		},
	)
	return root
}

// setup loads the configuration and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) (err error) {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open database", zap.Error(err), zap.String("databaseURL", redact(cfg.DatabaseURL)))
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", zap.Error(err))
		return multierr.Append(err, store.Close())
	}

	llmService, err := llm.New(ctx, cfg.LLMOptions(), logger)
	if err != nil {
		logger.Error("failed to initialize generation service", zap.Error(err))
		return multierr.Append(err, store.Close())
	}
	defer func() {
		err = multierr.Combine(err, store.Close(), llmService.Close())
	}()

	authClient := auth.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, &http.Client{Timeout: 30 * time.Second})
	sessions := auth.NewSessionStore(authClient, cfg.SessionCookieName, cfg.CookieSecure, logger)

	handler := api.NewHandler(store, sessions, llmService, api.NewMetrics(), logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(handler, cfg.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", cfg.ListenAddr),
			zap.String("provider", llmService.Provider()),
			zap.String("model", llmService.Model()),
			zap.String("version", version))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := db.Open(cmd.Context(), cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if err := store.Migrate(cmd.Context()); err != nil {
		return multierr.Append(err, store.Close())
	}
	logger.Info("schema applied", zap.String("databaseURL", redact(cfg.DatabaseURL)))
	return store.Close()
}

func runModels(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	llmService, err := llm.New(cmd.Context(), cfg.LLMOptions(), logger)
	if err != nil {
		return err
	}
	defer llmService.Close()

	available, err := llmService.ListModels(cmd.Context())
	if err != nil {
		return errors.New(llm.ClassifyError(err))
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDISPLAY NAME")
	for _, m := range available {
		fmt.Fprintf(w, "%s\t%s\n", m.Name, m.DisplayName)
	}
	return w.Flush()
}

// redact hides the password of a database URL before it is logged.
func redact(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil || u.User == nil {
		return databaseURL
	}
	return u.Redacted()
}
