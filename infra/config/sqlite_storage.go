package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage handles persistent storage of gateway credentials
type SQLiteStorage struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (s *SQLiteStorage) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				// Exponential backoff: 10ms, 20ms, 40ms, 80ms
				backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
				time.Sleep(backoff)
				continue
			}
		} else {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	storage := &SQLiteStorage{
		db:   db,
		path: dbPath,
	}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := storage.applyPragmas(); err != nil {
		log.Printf("Warning: Failed to apply optimizations: %v", err)
	}

	return storage, nil
}

// initSchema creates the necessary tables
func (s *SQLiteStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS gateway_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gateway_name TEXT NOT NULL,
		environment TEXT NOT NULL,
		config_data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(gateway_name, environment)
	);

	CREATE INDEX IF NOT EXISTS idx_gateway_environment ON gateway_configs(gateway_name, environment);

	CREATE TRIGGER IF NOT EXISTS update_gateway_configs_updated_at
		AFTER UPDATE ON gateway_configs
	BEGIN
		UPDATE gateway_configs SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;
	`

	_, err := s.db.Exec(query)
	return err
}

// applyPragmas applies SQLite optimizations for multi-process access
func (s *SQLiteStorage) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA cache_size = 1000;",
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA temp_store = memory;",
		"PRAGMA optimize;",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			log.Printf("Warning: Failed to execute %s: %v", pragma, err)
		}
	}

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}
	return nil
}

// SaveGatewayConfig saves gateway credentials to SQLite
func (s *SQLiteStorage) SaveGatewayConfig(gatewayName, environment string, config map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return s.retryOperation(func() error {
		query := `
		INSERT INTO gateway_configs (gateway_name, environment, config_data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(gateway_name, environment)
		DO UPDATE SET
			config_data = excluded.config_data,
			updated_at = CURRENT_TIMESTAMP
		`

		if _, err := s.db.Exec(query, gatewayName, environment, string(configJSON)); err != nil {
			return fmt.Errorf("failed to save gateway config: %w", err)
		}
		return nil
	}, 3)
}

// LoadGatewayConfig loads gateway credentials from SQLite
func (s *SQLiteStorage) LoadGatewayConfig(gatewayName, environment string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config map[string]string
	err := s.retryOperation(func() error {
		query := `
		SELECT config_data
		FROM gateway_configs
		WHERE gateway_name = ? AND environment = ?
		`

		var configJSON string
		err := s.db.QueryRow(query, gatewayName, environment).Scan(&configJSON)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("no configuration found for gateway: %s, environment: %s", gatewayName, environment)
			}
			return fmt.Errorf("failed to load gateway config: %w", err)
		}

		if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		return nil
	}, 3)

	return config, err
}

// LoadAllGatewayConfigs loads every stored gateway configuration, keyed by
// "gateway_environment".
func (s *SQLiteStorage) LoadAllGatewayConfigs() (map[string]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var configs map[string]map[string]string
	err := s.retryOperation(func() error {
		query := `
		SELECT gateway_name, environment, config_data
		FROM gateway_configs
		ORDER BY gateway_name, environment
		`

		rows, err := s.db.Query(query)
		if err != nil {
			return fmt.Errorf("failed to query gateway configs: %w", err)
		}
		defer rows.Close()

		configs = make(map[string]map[string]string)

		for rows.Next() {
			var gatewayName, environment, configJSON string
			if err := rows.Scan(&gatewayName, &environment, &configJSON); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}

			var config map[string]string
			if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
				log.Printf("Warning: failed to unmarshal config for gateway %s, environment %s: %v", gatewayName, environment, err)
				continue
			}

			configs[fmt.Sprintf("%s_%s", gatewayName, environment)] = config
		}

		return rows.Err()
	}, 3)

	if err != nil {
		return nil, err
	}
	return configs, nil
}

// DeleteGatewayConfig deletes gateway credentials from SQLite
func (s *SQLiteStorage) DeleteGatewayConfig(gatewayName, environment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retryOperation(func() error {
		query := `
		DELETE FROM gateway_configs
		WHERE gateway_name = ? AND environment = ?
		`

		result, err := s.db.Exec(query, gatewayName, environment)
		if err != nil {
			return fmt.Errorf("failed to delete gateway config: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if rowsAffected == 0 {
			return fmt.Errorf("no configuration found for gateway: %s, environment: %s", gatewayName, environment)
		}
		return nil
	}, 3)
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
