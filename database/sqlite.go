package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"langaccessor/logger"
	"langaccessor/models"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is the default backend: app_settings rows for the KV side and
// installed_rules rows for the rule engine.
type SQLiteStore struct {
	db   *sql.DB
	path string

	// lastSeen holds the last value this process wrote or observed per key, so the
	// file watcher can tell edits made by other processes apart from our own.
	seenMu   sync.Mutex
	lastSeen map[string]string

	notifier
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dbDir := filepath.Dir(path)
	if dbDir != "." && dbDir != "" {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			logger.Error("Failed to create database directory %s: %v", dbDir, err)
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	dsn := path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		logger.Error("Failed to open database: %v", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		logger.Error("Failed to connect to database: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// SQLite allows a single writer; one connection keeps transactions from tripping over each other.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(path); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: path, lastSeen: make(map[string]string)}, nil
}

func applyMigrations(path string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+path+"?_foreign_keys=on")
	if err != nil {
		logger.Error("Failed to initialize migrations: %v", err)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	logger.Debug("Applying database migrations...")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Failed to apply migrations: %v", err)
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Debug("Database migrations applied successfully (or no changes).")
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get reads keys without touching lastSeen: a read must not hide an external edit
// that the watcher has not processed yet.
func (s *SQLiteStore) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	return s.read(ctx, keys)
}

func (s *SQLiteStore) read(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		var value string
		err := s.db.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE key = ?", key).Scan(&value)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("failed to get setting '%s': %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}

func (s *SQLiteStore) Set(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning settings transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare set setting statement: %w", err)
	}
	defer stmt.Close()

	var changed []string
	for key, value := range values {
		var old string
		err := tx.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE key = ?", key).Scan(&old)
		switch {
		case err == nil && old == value:
			continue
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to read setting '%s': %w", key, err)
		}
		if _, err := stmt.ExecContext(ctx, key, value); err != nil {
			return fmt.Errorf("failed to execute set setting for key '%s': %w", key, err)
		}
		changed = append(changed, key)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings transaction: %w", err)
	}
	s.remember(values)
	s.notify(changed)
	return nil
}

func (s *SQLiteStore) Subscribe(fn ChangeListener) func() {
	return s.subscribe(fn)
}

func (s *SQLiteStore) remember(values map[string]string) {
	s.seenMu.Lock()
	for k, v := range values {
		s.lastSeen[k] = v
	}
	s.seenMu.Unlock()
}

// seed records the current values of keys as observed, so the next refreshExternal
// only reports edits made after this call.
func (s *SQLiteStore) seed(ctx context.Context, keys []string) error {
	current, err := s.read(ctx, keys)
	if err != nil {
		return err
	}
	s.seenMu.Lock()
	for _, key := range keys {
		delete(s.lastSeen, key)
	}
	s.seenMu.Unlock()
	s.remember(current)
	return nil
}

// refreshExternal re-reads keys and notifies listeners about values that differ from
// what this process last wrote or observed.
func (s *SQLiteStore) refreshExternal(ctx context.Context, keys []string) error {
	current, err := s.read(ctx, keys)
	if err != nil {
		return fmt.Errorf("failed to re-read settings: %w", err)
	}

	s.seenMu.Lock()
	var changed []string
	for _, key := range keys {
		newVal, nowOK := current[key]
		oldVal, wasOK := s.lastSeen[key]
		if nowOK != wasOK || newVal != oldVal {
			changed = append(changed, key)
		}
		if nowOK {
			s.lastSeen[key] = newVal
		} else {
			delete(s.lastSeen, key)
		}
	}
	s.seenMu.Unlock()

	if len(changed) > 0 {
		logger.Debug("SQLiteStore: external change detected for keys %v", changed)
	}
	s.notify(changed)
	return nil
}

func (s *SQLiteStore) LoadRules(ctx context.Context) ([]models.Rule, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, rule_json FROM installed_rules ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("querying installed rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var id int
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning installed rule row: %w", err)
		}
		var rule models.Rule
		if err := json.Unmarshal([]byte(raw), &rule); err != nil {
			logger.Error("LoadRules: dropping unreadable rule %d: %v", id, err)
			continue
		}
		rule.ID = id
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating installed rule rows: %w", err)
	}
	return rules, nil
}

func (s *SQLiteStore) SaveRules(ctx context.Context, rules []models.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rules transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM installed_rules"); err != nil {
		return fmt.Errorf("clearing installed rules: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO installed_rules (id, priority, rule_json) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing installed rule insert: %w", err)
	}
	defer stmt.Close()

	for _, rule := range rules {
		raw, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("marshalling rule %d: %w", rule.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rule.ID, rule.Priority, string(raw)); err != nil {
			return fmt.Errorf("inserting rule %d: %w", rule.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rules transaction: %w", err)
	}
	return nil
}
