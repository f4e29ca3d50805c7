package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuerier keeps rows in a map and answers the three statements the
// store issues.
type fakeQuerier struct {
	rows    map[string]Account
	execErr error
	queries []string
}

type fakeRow struct {
	account Account
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.account.Username
	*dest[1].(*string) = r.account.PasswordHash
	*dest[2].(*time.Time) = r.account.CreatedAt
	return nil
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, sql)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	if strings.HasPrefix(sql, "CREATE") {
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	}

	username := args[0].(string)
	if _, ok := f.rows[username]; ok {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	f.rows[username] = Account{Username: username, PasswordHash: args[1].(string), CreatedAt: args[2].(time.Time)}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, sql)
	account, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{account: account}
}

func TestPostgresStoreWithFakeDB(t *testing.T) {
	ctx := context.Background()
	db := &fakeQuerier{rows: map[string]Account{}}
	store := NewPostgresStore(db)

	require.NoError(t, store.EnsureSchema(ctx))
	assert.Contains(t, db.queries[0], `CREATE TABLE IF NOT EXISTS "accounts"`)

	_, err := store.Get(ctx, "nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	acc := Account{Username: "ivy", PasswordHash: "hash", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, store.Create(ctx, acc))
	assert.ErrorIs(t, store.Create(ctx, acc), ErrAccountExists)

	got, err := store.Get(ctx, "ivy")
	require.NoError(t, err)
	assert.Equal(t, acc, got)
}

func TestPostgresStoreSurfacesDriverErrors(t *testing.T) {
	db := &fakeQuerier{rows: map[string]Account{}, execErr: errors.New("connection reset")}
	store := NewPostgresStore(db)

	err := store.Create(context.Background(), Account{Username: "ivy"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccountExists)
	assert.ErrorContains(t, err, "connection reset")
}

func TestServiceOverPostgresStore(t *testing.T) {
	svc := newTestService(t, NewPostgresStore(&fakeQuerier{rows: map[string]Account{}}))

	_, err := svc.Register(context.Background(), "Ivy", "pw")
	require.NoError(t, err)

	acc, err := svc.Authenticate(context.Background(), "ivy", "pw")
	require.NoError(t, err)
	assert.Equal(t, "ivy", acc.Username)
}
