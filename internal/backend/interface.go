package backend

import (
	"context"
	"time"

	"expenses/internal/remote"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the collection client and its optional cleanup function.
type BackendResult struct {
	Collection remote.Collection
	Cleanup    CleanupFunc

	// Publishing is true when writes are announced over AMQP.
	Publishing bool
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory
	SeedFile string

	// SQLite
	SQLiteDBPath string

	// Postgres
	DatabaseURL string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleRowCacheTTL        time.Duration

	// REST
	RemoteURL      string
	IDToken        string
	RequestTimeout time.Duration

	// AMQP change events, optional for every type but rest
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	RedisBackend    BackendType = "redis"
	SheetsBackend   BackendType = "sheets"
	RESTBackend     BackendType = "rest"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, RedisBackend, SheetsBackend, RESTBackend:
		return true
	default:
		return false
	}
}
