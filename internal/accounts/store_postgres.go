package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const POSTGRES_ACCOUNTS_TABLE = "accounts"

// Querier is the part of *pgxpool.Pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db    Querier
	table string
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db, table: POSTGRES_ACCOUNTS_TABLE}
}

// EnsureSchema creates the accounts table when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
)`, pgx.Identifier{s.table}.Sanitize())

	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create accounts table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, account Account) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (username, password_hash, created_at) VALUES ($1, $2, $3) ON CONFLICT (username) DO NOTHING`,
		pgx.Identifier{s.table}.Sanitize())

	tag, err := s.db.Exec(ctx, query, account.Username, account.PasswordHash, account.CreatedAt)
	if err != nil {
		return fmt.Errorf("store account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountExists
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, username string) (Account, error) {
	query := fmt.Sprintf(
		`SELECT username, password_hash, created_at FROM %s WHERE username = $1`,
		pgx.Identifier{s.table}.Sanitize())

	var account Account
	err := s.db.QueryRow(ctx, query, username).Scan(&account.Username, &account.PasswordHash, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("load account: %w", err)
	}
	return account, nil
}
