package main

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"street_trees/internal/config"
	"street_trees/internal/handlers"
	"street_trees/internal/logger"
	"street_trees/internal/pipeline"
	"street_trees/internal/repository"
	"street_trees/internal/repository/db"
	"street_trees/internal/server"
	"street_trees/internal/service"
)

const (
	configDir       = "configs"
	shutdownTimeout = 10 * time.Second
)

// @title                       Street tree explorer API
// @version                     1.0
// @description                 Filter street trees by species, trunk size and area; stream summaries and histograms.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := run(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("explorer stopped", "err", err)
	}
}

// run owns every resource, so its defers complete before main exits.
func run() error {
	// load config.yml (defaults and TREES_* env apply without it)
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	// init logger
	log := logger.Get(cfg.Log.Level)

	// open DB
	conn, err := openDB(cfg, log)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// context for background goroutines, cancelled on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(conn)
	if err := seedDataset(ctx, repos, cfg.Dataset.SeedCSV, log); err != nil {
		return err
	}

	services, err := service.NewService(repos, serviceOptions(cfg), log)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	apiHandler := handlers.NewHandler(services, log)

	// start the pipeline and the activity recorder
	services.Explorer.Start()
	go services.Activity.Run(ctx)

	// start HTTP server
	srv := &server.Server{}
	serveErr := runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown on signal or listener failure
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		err = fmt.Errorf("http server: %w", err)
	}
	waitForShutdown(services, srv, log)
	return err
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening sqlite", "path", cfg.DB.Path)
	return db.InitDB(cfg.DB.Path)
}

// seedDataset imports the tree CSV into an empty database.
func seedDataset(ctx context.Context, repos *repository.Repository, path string, log *logger.Logger) error {
	if path == "" {
		return nil
	}
	n, err := repository.SeedTreesFromFile(ctx, repos.Trees, path)
	if err != nil {
		return fmt.Errorf("seed trees from %q after %d rows: %w", path, n, err)
	}
	if n > 0 {
		log.Infow("trees seeded", "path", path, "inserted", n)
	}
	return nil
}

func serviceOptions(cfg *config.Config) service.Options {
	return service.Options{
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
		Pipeline: pipeline.Config{
			Bounds:             pipeline.Bounds{Min: cfg.Dataset.FieldMin, Max: cfg.Dataset.FieldMax},
			BinCount:           cfg.Dataset.BinCount,
			AnimationDelay:     cfg.Animation.Delay,
			AnimationWindow:    cfg.Animation.Window,
			AnimationStep:      cfg.Animation.Step,
			QuietPeriod:        cfg.Debounce.Quiet,
			RangeDebounce:      cfg.Debounce.Range,
			HistogramCacheSize: cfg.QueryCache.Size,
		},
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine. The channel
// receives the listener error unless the server was shut down.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) <-chan error {
	errc := make(chan error, 1)
	go func() {
		if port == "" {
			port = "8080"
		}
		log.Infow("http server listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !server.IsClosed(err) {
			errc <- err
		}
	}()
	return errc
}

// waitForShutdown stops the pipeline and drains in-flight requests.
func waitForShutdown(services *service.Service, srv *server.Server, log *logger.Logger) {
	log.Infow("shutting down server...")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	services.Explorer.Close()
}
