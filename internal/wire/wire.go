// Package wire provides dependency injection for the storyorder application.
// It creates singleton services with lazy initialization.
package wire

import (
	"io"
	"log"
	"os"
	"sync"

	"go.uber.org/zap"

	cliadapter "github.com/example/storyorder/internal/adapters/cli"
	"github.com/example/storyorder/internal/adapters/filesystem"
	"github.com/example/storyorder/internal/adapters/sqlite"
	"github.com/example/storyorder/internal/app"
	"github.com/example/storyorder/internal/config"
	"github.com/example/storyorder/internal/db"
	"github.com/example/storyorder/internal/logging"
	"github.com/example/storyorder/internal/ports/primary"
)

var (
	cfg          *config.Config
	logger       *zap.Logger
	orderService primary.OrderService
	verbose      bool
	once         sync.Once
)

// SetVerbose raises the log level to debug. It must be called before the
// first service is requested.
func SetVerbose(v bool) {
	verbose = v
}

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the process logger.
func Logger() *zap.Logger {
	once.Do(initServices)
	return logger
}

// OrderService returns the singleton OrderService instance.
func OrderService() primary.OrderService {
	once.Do(initServices)
	return orderService
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	dir, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to get working directory: %v", err)
	}
	cfg, err = config.LoadConfig(dir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err = logging.New(cfg.LogLevel, verbose)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	dbPath, err := cfg.ResolveDBPath()
	if err != nil {
		log.Fatalf("failed to resolve database path: %v", err)
	}
	db.SetPath(dbPath)
	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// Secondary ports
	reports := sqlite.NewReportRepository(database)
	source := filesystem.NewGameDataAdapter(cfg.LocaleRoot())

	orderService = app.NewOrderService(source, reports, logger, app.OrderSettings{
		Policy:      cfg.Policy(),
		Labels:      cfg.Labels(),
		Concurrency: cfg.Concurrency,
		Locale:      cfg.Locale,
	})
}

// Shutdown flushes the logger and closes the database. Safe to call when
// nothing was initialized.
func Shutdown() {
	if logger != nil {
		_ = logger.Sync()
	}
	_ = db.Close()
}

// OrderAdapter returns a new OrderAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func OrderAdapter() *cliadapter.OrderAdapter {
	return OrderAdapterWithOutput(os.Stdout)
}

// OrderAdapterWithOutput returns a new OrderAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func OrderAdapterWithOutput(out io.Writer) *cliadapter.OrderAdapter {
	once.Do(initServices)
	return cliadapter.NewOrderAdapter(orderService, out)
}
