package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// Repository loads and stores the single configuration row.
// Load returns nil when nothing has been stored yet.
type Repository interface {
	Load(ctx context.Context) (*models.UserConfiguration, error)
	Store(ctx context.Context, cfg models.UserConfiguration) error
}

// MemoryRepository keeps the encoded record in memory.
type MemoryRepository struct {
	mu  sync.Mutex
	rec *Record
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Load(_ context.Context) (*models.UserConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil {
		return nil, nil
	}
	cfg, err := Decode(*r.rec)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *MemoryRepository) Store(_ context.Context, cfg models.UserConfiguration) error {
	rec := Encode(cfg)
	r.mu.Lock()
	r.rec = &rec
	r.mu.Unlock()
	return nil
}

// FileRepository keeps the configuration in a YAML file.
type FileRepository struct {
	path string
}

// NewFileRepository creates a repository backed by the YAML file at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Load(_ context.Context) (*models.UserConfiguration, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse preferences %s: %w", r.path, err)
	}
	cfg, err := Decode(rec)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *FileRepository) Store(_ context.Context, cfg models.UserConfiguration) error {
	data, err := yaml.Marshal(Encode(cfg))
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}

// PostgresRepository keeps the record as JSONB in the user_configuration table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to dsn and creates the table when missing.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS user_configuration (
		id TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Load(ctx context.Context) (*models.UserConfiguration, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, "SELECT data FROM user_configuration WHERE id = $1", models.DefaultConfigurationID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	cfg, err := Decode(rec)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *PostgresRepository) Store(ctx context.Context, cfg models.UserConfiguration) error {
	data, err := json.Marshal(Encode(cfg))
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO user_configuration (id, data, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		models.DefaultConfigurationID, data)
	if err != nil {
		return fmt.Errorf("failed to store preferences: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}
