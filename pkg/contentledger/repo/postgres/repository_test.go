package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/content-ledger/pkg/contentledger"
	"github.com/tendant/content-ledger/pkg/contentledger/repo/repotest"
)

func TestHandlePostgresError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "duplicate transaction hash",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "payment_record_transaction_hash_key"},
			want: contentledger.ErrDuplicateTransaction,
		},
		{
			name: "duplicate primary key",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "content_registration_pkey"},
			want: contentledger.ErrAlreadyExists,
		},
		{
			name: "foreign key",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "payment_record_content_id_fkey"},
			want: contentledger.ErrNotFound,
		},
		{
			name: "check constraint",
			err:  &pgconn.PgError{Code: "23514", ConstraintName: "content_registration_price_check"},
			want: contentledger.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handlePostgresError("op", tt.err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := handlePostgresError("op", cause)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "internal", contentledger.ErrorKind(err))
	})
}

// Runs against a live database when TEST_DATABASE_URL is set. Each subtest
// gets an empty schema.
func TestPostgresRepository(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	repotest.Run(t, func(t *testing.T) contentledger.Repository {
		_, err := pool.Exec(ctx, `DROP TABLE IF EXISTS payment_record; DROP TABLE IF EXISTS content_registration;`)
		require.NoError(t, err)
		require.NoError(t, Migrate(ctx, pool, ""))
		return NewWithPool(pool)
	})
}

func TestMigrateCreatesMissingSchema(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	schema := "ledger_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	defer pool.Close()
	defer pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE")

	require.NoError(t, Migrate(ctx, pool, schema))
	// Running it again is a no-op
	require.NoError(t, Migrate(ctx, pool, schema))

	var tables int
	err = pool.QueryRow(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_schema = $1`, schema).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 2, tables)

	repo := NewWithPool(pool)
	require.NoError(t, repo.CreateContent(ctx, &contentledger.ContentRegistration{ID: "a", Creator: "p1", Title: "A", CreatedAt: 1, IsActive: true}))
	contents, err := repo.ListContents(ctx)
	require.NoError(t, err)
	assert.Len(t, contents, 1)
}
