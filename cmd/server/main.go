package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/cache"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/config"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/httpapi"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/legacy"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/logging"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/service"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store/memory"
	pgstore "github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store/postgres"
	sqlitestore "github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store/sqlite"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "techshop",
		Short:         "Point-of-sale backend for a single shop",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "import-legacy <shop.db>",
		Short: "Copy products and sales from an older shop database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportLegacy(cmd.Context(), args[0], cmd.OutOrStdout())
		},
	})
	return root
}

func setup() (config.Config, *slog.Logger, error) {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if err := validateConfig(cfg); err != nil {
		return cfg, logger, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}

func runServe(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	repo, closers, err := openRepository(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { runClosers(logger, closers) }()

	dashboardCache := cache.DashboardCache(cache.NoopDashboardCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisDashboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(startCtx); err != nil {
			logger.Warn("redis unavailable, using noop cache", "error", err)
			_ = redisCache.Close()
		} else {
			dashboardCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis", "addr", cfg.RedisAddr)
		}
	} else {
		logger.Info("cache: noop")
	}

	policy, _ := service.ParseQuantityPolicy(cfg.QuantityPolicy)
	svc := service.New(repo, dashboardCache,
		service.WithLogger(logger),
		service.WithQuantityPolicy(policy),
		service.WithLowStockThreshold(cfg.LowStockThreshold),
		service.WithDashboardTTL(cfg.DashboardCacheTTL()),
	)
	api := httpapi.New(svc, logger, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("POS backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

func runMigrate(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if cfg.DatabaseDriver == config.DriverMemory {
		return errors.New("migrate needs DB_DRIVER=sqlite or DB_DRIVER=postgres")
	}

	_, closers, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	runClosers(logger, closers)
	logger.Info("schema is up to date", "driver", cfg.DatabaseDriver)
	return nil
}

func runImportLegacy(ctx context.Context, path string, out io.Writer) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("legacy database: %w", err)
	}

	src, err := sqlitestore.Open(path, true)
	if err != nil {
		return err
	}
	defer src.Close()

	repo, closers, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer runClosers(logger, closers)

	result, err := legacy.NewImporter(src, repo, logger).Run(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "imported %d products, %d sales (%d items), skipped %d sales\n",
		result.Products, result.Sales, result.Items, result.Skipped)
	return err
}

func openRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Repository, []func() error, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable: %w", err)
		}
		logger.Info("repository: postgres")
		return pg, []func() error{pg.Close}, nil
	case config.DriverSQLite:
		lite, err := sqlitestore.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite unavailable: %w", err)
		}
		logger.Info("repository: sqlite", "path", cfg.SQLitePath)
		return lite, []func() error{lite.Close}, nil
	default:
		logger.Info("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}
}

func runClosers(logger *slog.Logger, closers []func() error) {
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", "error", err)
		}
	}
}

func validateConfig(cfg config.Config) error {
	switch cfg.DatabaseDriver {
	case config.DriverMemory, config.DriverSQLite:
	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER %q is not one of memory, sqlite, postgres", cfg.DatabaseDriver)
	}
	if cfg.DatabaseDriver == config.DriverSQLite && cfg.SQLitePath == "" {
		return errors.New("SQLITE_PATH must not be empty")
	}
	if _, err := service.ParseQuantityPolicy(cfg.QuantityPolicy); err != nil {
		return fmt.Errorf("QUANTITY_POLICY: %w", err)
	}
	return nil
}
