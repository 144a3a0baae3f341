package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"expenses/internal/amqp"
	"expenses/internal/cache"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/remote/events"
	"expenses/internal/remote/memory"
	"expenses/internal/remote/postgres"
	"expenses/internal/remote/redis"
	"expenses/internal/remote/rest"
	"expenses/internal/remote/sheets"
	"expenses/internal/remote/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	caches *cache.Manager
}

// NewFactory returns a factory. Caches owned by a backend, such as the sheets
// row index, are registered with caches when it is not nil.
func NewFactory(logger *log.Logger, caches *cache.Manager) Factory {
	return &DefaultFactory{
		logger: log.OrDiscard(logger).WithComponent(log.ComponentBackend),
		caches: caches,
	}
}

// CreateBackend builds the collection client for config.Type and, when an
// AMQP URL is configured, wraps it so writes publish change events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case PostgresBackend:
		res, err = f.createPostgresBackend(ctx, config)
	case RedisBackend:
		res, err = f.createRedisBackend(ctx, config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case RESTBackend:
		res, err = f.createRESTBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.AMQPURL != "" {
		f.withEvents(res, config)
	}
	return res, nil
}

// withEvents wraps res with change event publishing. A broker that cannot be
// reached is logged and the backend keeps working without events.
func (f *DefaultFactory) withEvents(res *BackendResult, config Config) {
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		return
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	res.Collection = events.Wrap(res.Collection, client, f.logger)
	res.Publishing = true
	inner := res.Cleanup
	res.Cleanup = func() error {
		var errs []error
		if inner != nil {
			errs = append(errs, inner())
		}
		errs = append(errs, client.Close())
		return errors.Join(errs...)
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	var (
		store *memory.Store
		err   error
	)
	if config.SeedFile != "" {
		store, err = memory.NewFromFile(config.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
		}
	} else {
		store = memory.New()
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	return &BackendResult{Collection: store}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	store, err := sqlite.Open(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite backend: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Collection: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := postgres.Open(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres backend: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")
	return &BackendResult{Collection: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createRedisBackend(ctx context.Context, config Config) (*BackendResult, error) {
	prefix := config.RedisPrefix
	if prefix == "" {
		prefix = "expenses"
	}
	store, err := redis.Dial(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB, prefix,
		core.FieldUserID, core.FieldCategory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis backend: %w", err)
	}

	f.logger.Info("Initialized Redis backend", "addr", config.RedisAddr, "db", config.RedisDB)
	return &BackendResult{Collection: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := sheets.Open(ctx, sheets.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		RowCacheTTL:     config.GoogleRowCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets backend: %w", err)
	}
	if f.caches != nil {
		f.caches.Register(store.RowCache())
	}

	f.logger.Info("Initialized Google Sheets backend")
	return &BackendResult{Collection: store}, nil
}

func (f *DefaultFactory) createRESTBackend(config Config) (*BackendResult, error) {
	httpClient := &http.Client{Timeout: config.RequestTimeout}
	if config.RequestTimeout <= 0 {
		httpClient = nil
	}
	client, err := rest.New(config.RemoteURL, rest.StaticToken(config.IDToken), httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize REST backend: %w", err)
	}

	f.logger.Info("Initialized REST backend", "url", config.RemoteURL)
	return &BackendResult{Collection: client}, nil
}
