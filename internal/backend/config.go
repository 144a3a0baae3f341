package backend

import (
	"errors"
	"fmt"

	"expenses/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.Backend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.Backend)
	}

	return Config{
		Type: backendType,

		SeedFile:     appConfig.MemorySeedFile,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,

		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
		RedisPrefix:   appConfig.RedisPrefix,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleRowCacheTTL:        appConfig.GoogleRowCacheTTL,

		RemoteURL:      appConfig.RemoteURL,
		IDToken:        appConfig.IDToken,
		RequestTimeout: appConfig.RequestTimeout,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate checks the fields the selected type needs.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for postgres backend")
		}
	case RedisBackend:
		if c.RedisAddr == "" {
			return errors.New("redis address is required for redis backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets backend")
		}
	case RESTBackend:
		if c.RemoteURL == "" {
			return errors.New("remote URL is required for rest backend")
		}
		if c.AMQPURL != "" {
			return errors.New("rest backend cannot publish change events; the server does")
		}
	case MemoryBackend:
		// an empty seed file means an empty store
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend, RedisBackend, SheetsBackend, RESTBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
