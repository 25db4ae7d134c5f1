package registry

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists account registrations. Create must be atomic: of two
// concurrent creates for one name exactly one succeeds.
type Repository interface {
	Create(ctx context.Context, reg Registration) error
	Find(ctx context.Context, name string) (Registration, error)
	Exists(ctx context.Context, name string) (bool, error)
}

const schema = `CREATE TABLE IF NOT EXISTS registrations (
    name       TEXT PRIMARY KEY,
    token_id   BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
)`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed registry.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the registrations table when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

// Create inserts a registration, failing with ErrNameInUse on conflict.
func (r *PostgresRepository) Create(ctx context.Context, reg Registration) error {
	cmd, err := r.db.Exec(ctx, `INSERT INTO registrations (name, token_id, created_at)
        VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`, reg.Name, int64(reg.TokenID), reg.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNameInUse
	}
	return nil
}

// Find fetches a registration by name.
func (r *PostgresRepository) Find(ctx context.Context, name string) (Registration, error) {
	row := r.db.QueryRow(ctx, `SELECT name, token_id, created_at FROM registrations WHERE name = $1`, name)
	var (
		reg       Registration
		tokenID   int64
		createdAt time.Time
	)
	if err := row.Scan(&reg.Name, &tokenID, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Registration{}, ErrUnknownAccount
		}
		return Registration{}, err
	}
	reg.TokenID = uint64(tokenID)
	reg.CreatedAt = createdAt.UTC()
	return reg, nil
}

// Exists reports whether name is registered.
func (r *PostgresRepository) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}
