package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"api_pos/api"
	"api_pos/internal/catalog"
	"api_pos/internal/config"
	"api_pos/internal/observability"
	"api_pos/internal/sales"
	"api_pos/internal/store"
	"api_pos/internal/store/memory"
	"api_pos/internal/store/postgres"
	"api_pos/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:    "pos",
		Usage:   "point-of-sale sales service",
		Version: config.ServiceVersion,
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create the PostgreSQL schema",
				Action: migrate,
			},
			{
				Name:   "seed",
				Usage:  "insert the default products, skipping existing SKUs",
				Action: seed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating logger: %w", err)
	}
	return cfg, logger, nil
}

// openStore connects to PostgreSQL and applies the schema when a database URL
// is configured. Otherwise it returns a seeded in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("POS_DATABASE_URL not set, using in-memory storage")
		local := memory.NewLocalStorage()
		if _, err := catalog.Seed(ctx, local, catalog.DefaultProducts(), logger); err != nil {
			return nil, err
		}
		return local, nil
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("error setting up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracing", zap.Error(err))
		}
	}()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("error opening storage: %w", err)
	}
	defer st.Close()

	var verifier api.UserVerifier
	if cfg.UserServiceURL != "" {
		directory := users.NewDirectory(cfg.UserServiceURL, cfg.UserServiceTimeout, logger)
		defer directory.Close()
		verifier = directory
	} else {
		logger.Warn("POS_USER_SERVICE_URL not set, acting users are not verified")
	}

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	api.InitRoutes(r, sales.NewService(st, logger, nil), verifier, logger, api.Options{
		DefaultPageSize: cfg.DefaultPageSize,
		RecentSales:     cfg.RecentSales,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error trying to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrate(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		return errors.New("POS_DATABASE_URL is required to migrate")
	}
	db, err := postgres.New(c.Context, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(c.Context); err != nil {
		return err
	}
	logger.Info("schema migrated")
	return nil
}

func seed(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		return errors.New("POS_DATABASE_URL is required to seed")
	}
	db, err := postgres.New(c.Context, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	created, err := catalog.Seed(c.Context, db, catalog.DefaultProducts(), logger)
	if err != nil {
		return err
	}
	logger.Info("seed finished", zap.Int("created", created))
	return nil
}
