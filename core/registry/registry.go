// Package registry persists trained networks and their audit runs in a
// local SQLite database so models can be reloaded and re-audited without
// retraining.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openaudit/fairbayes/core/bayes"
	"github.com/openaudit/fairbayes/core/storage"
	_ "modernc.org/sqlite"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrModelNotFound indicates the named model is not in the registry.
	ErrModelNotFound = errors.New("model not found in registry")

	// ErrModelExists indicates a model with the same name is already stored.
	ErrModelExists = errors.New("model already exists in registry")

	// ErrRegistryClosed indicates the registry is closed.
	ErrRegistryClosed = errors.New("model registry is closed")
)

// =============================================================================
// Configuration
// =============================================================================

const DefaultMaxOpenConns = 1

// Config holds configuration for the model registry.
type Config struct {
	// DBPath is the path to the SQLite database. Empty resolves to the
	// platform data directory.
	DBPath string

	// MaxOpenConns bounds the connection pool. SQLite with a single
	// writer works best with one connection; pragmas are applied
	// per-connection and rely on this.
	MaxOpenConns int
}

func normalizeConfig(cfg Config) (Config, error) {
	if cfg.DBPath == "" {
		dirs, err := storage.ResolveDirs()
		if err != nil {
			return cfg, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DBPath = dirs.RegistryDB()
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultMaxOpenConns
	}
	return cfg, nil
}

// =============================================================================
// Records
// =============================================================================

// ModelRecord describes a stored model without its payload.
type ModelRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ClassAttr    string    `json:"class_attr"`
	Smoothing    float64   `json:"smoothing"`
	TrainingRows int       `json:"training_rows"`
	Variables    int       `json:"variables"`
	CreatedAt    time.Time `json:"created_at"`
}

// ModelMeta carries training facts that are not recoverable from the
// network itself.
type ModelMeta struct {
	Smoothing    float64
	TrainingRows int
}

// RunRecord describes one stored audit run.
type RunRecord struct {
	ID        string          `json:"id"`
	ModelID   string          `json:"model_id"`
	Dataset   string          `json:"dataset"`
	Rows      int             `json:"rows"`
	Report    json.RawMessage `json:"report"`
	CreatedAt time.Time       `json:"created_at"`
}

// =============================================================================
// Registry
// =============================================================================

// Registry stores models and audit runs in SQLite.
type Registry struct {
	db     *sql.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// NewRegistry opens (and if needed creates) the registry database.
func NewRegistry(cfg Config) (*Registry, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	r := &Registry{config: cfg}
	if err := r.initSQLite(); err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	return r, nil
}

func (r *Registry) initSQLite() error {
	if err := r.ensureDBDirectory(); err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}

	if err := r.configureAndCreateSchema(db); err != nil {
		db.Close()
		return err
	}

	r.db = db
	return nil
}

func (r *Registry) ensureDBDirectory() error {
	dir := filepath.Dir(r.config.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func (r *Registry) openDatabase() (*sql.DB, error) {
	db, err := sql.Open("sqlite", r.config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(r.config.MaxOpenConns)
	return db, nil
}

func (r *Registry) configureAndCreateSchema(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return r.createSchema(db)
}

func (r *Registry) createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS models (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		class_attr TEXT NOT NULL,
		smoothing REAL NOT NULL,
		training_rows INTEGER NOT NULL,
		variables INTEGER NOT NULL,
		payload BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_models_created ON models(created_at DESC);

	CREATE TABLE IF NOT EXISTS audit_runs (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		dataset TEXT NOT NULL,
		rows INTEGER NOT NULL,
		report BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (model_id) REFERENCES models(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_audit_runs_model ON audit_runs(model_id, created_at DESC);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// =============================================================================
// Models
// =============================================================================

// SaveModel encodes the network and stores it under a unique name.
func (r *Registry) SaveModel(ctx context.Context, name string, net *bayes.Network, meta ModelMeta) (*ModelRecord, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("model name must not be empty")
	}

	payload, err := bayes.EncodeNetwork(net)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}

	record := &ModelRecord{
		ID:           uuid.NewString(),
		Name:         name,
		ClassAttr:    net.Class().Name(),
		Smoothing:    meta.Smoothing,
		TrainingRows: meta.TrainingRows,
		Variables:    len(net.Variables()),
		CreatedAt:    time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO models (id, name, class_attr, smoothing, training_rows, variables, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Name, record.ClassAttr, record.Smoothing,
		record.TrainingRows, record.Variables, payload, record.CreatedAt)

	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: %q", ErrModelExists, name)
		}
		return nil, fmt.Errorf("failed to save model: %w", err)
	}

	return record, nil
}

// GetModel returns the stored record for a model name.
func (r *Registry) GetModel(ctx context.Context, name string) (*ModelRecord, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, class_attr, smoothing, training_rows, variables, created_at
		FROM models
		WHERE name = ?
	`, name)

	var record ModelRecord
	err := row.Scan(&record.ID, &record.Name, &record.ClassAttr, &record.Smoothing,
		&record.TrainingRows, &record.Variables, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	return &record, nil
}

// Network decodes and returns the stored network for a model name.
func (r *Registry) Network(ctx context.Context, name string) (*bayes.Network, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}

	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM models WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model payload: %w", err)
	}

	net, err := bayes.DecodeNetwork(payload)
	if err != nil {
		return nil, fmt.Errorf("decode model %q: %w", name, err)
	}
	return net, nil
}

// ListModels returns all stored models, newest first.
func (r *Registry) ListModels(ctx context.Context) ([]ModelRecord, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, class_attr, smoothing, training_rows, variables, created_at
		FROM models
		ORDER BY created_at DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var records []ModelRecord
	for rows.Next() {
		var record ModelRecord
		if err := rows.Scan(&record.ID, &record.Name, &record.ClassAttr, &record.Smoothing,
			&record.TrainingRows, &record.Variables, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}

	return records, nil
}

// DeleteModel removes a model and, via cascade, its audit runs.
func (r *Registry) DeleteModel(ctx context.Context, name string) error {
	if err := r.checkClosed(); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM models WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}

	return r.checkRowsAffected(result, fmt.Errorf("%w: %q", ErrModelNotFound, name))
}

// =============================================================================
// Audit Runs
// =============================================================================

// SaveRun stores one audit report against a model. The report is kept as
// the JSON produced by the audit, so older runs stay readable even if the
// summary columns evolve.
func (r *Registry) SaveRun(ctx context.Context, modelID, dataset string, rows int, report []byte) (*RunRecord, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}
	if !json.Valid(report) {
		return nil, fmt.Errorf("audit report is not valid JSON")
	}

	record := &RunRecord{
		ID:        uuid.NewString(),
		ModelID:   modelID,
		Dataset:   dataset,
		Rows:      rows,
		Report:    json.RawMessage(report),
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_runs (id, model_id, dataset, rows, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.ID, record.ModelID, record.Dataset, record.Rows, []byte(report), record.CreatedAt)

	if err != nil {
		if isForeignKeyError(err) {
			return nil, fmt.Errorf("%w: id %q", ErrModelNotFound, modelID)
		}
		return nil, fmt.Errorf("failed to save audit run: %w", err)
	}

	return record, nil
}

// ListRuns returns the stored audit runs for a model, newest first.
func (r *Registry) ListRuns(ctx context.Context, modelID string) ([]RunRecord, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, model_id, dataset, rows, report, created_at
		FROM audit_runs
		WHERE model_id = ?
		ORDER BY created_at DESC, id
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var record RunRecord
		var report []byte
		if err := rows.Scan(&record.ID, &record.ModelID, &record.Dataset,
			&record.Rows, &report, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit run: %w", err)
		}
		record.Report = json.RawMessage(report)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit runs: %w", err)
	}

	return records, nil
}

// =============================================================================
// Lifecycle
// =============================================================================

// Close closes the registry and its database connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	r.closed = true
	r.mu.Unlock()

	if r.db != nil {
		return r.db.Close()
	}

	return nil
}

func (r *Registry) checkClosed() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRegistryClosed
	}
	return nil
}

func (r *Registry) checkRowsAffected(result sql.Result, notFoundErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundErr
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
