package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/content-ledger/pkg/contentledger"
)

// Schema creates the journal tables. Counters are not stored; they are
// rebuilt from the payments table on startup.
const Schema = `
CREATE TABLE IF NOT EXISTS content_registration (
	id            TEXT PRIMARY KEY,
	creator       TEXT NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	content_hash  TEXT NOT NULL DEFAULT '',
	price         BIGINT NOT NULL CHECK (price >= 0),
	created_at    BIGINT NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS content_registration_creator_idx ON content_registration (creator, created_at);

CREATE TABLE IF NOT EXISTS payment_record (
	id               TEXT PRIMARY KEY,
	content_id       TEXT NOT NULL REFERENCES content_registration(id),
	buyer            TEXT NOT NULL,
	creator          TEXT NOT NULL,
	amount           BIGINT NOT NULL CHECK (amount >= 0),
	transaction_hash TEXT NOT NULL,
	timestamp        BIGINT NOT NULL,
	CONSTRAINT payment_record_transaction_hash_key UNIQUE (transaction_hash)
);
CREATE INDEX IF NOT EXISTS payment_record_timestamp_idx ON payment_record (timestamp);
`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements contentledger.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) contentledger.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) contentledger.Repository {
	return &Repository{db: pool}
}

// Migrate creates schema when it is not empty, then applies Schema. The
// connection's search_path must already select schema.
func Migrate(ctx context.Context, db DBTX, schema string) error {
	if schema != "" {
		if _, err := db.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", schema, err)
		}
	}
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// handlePostgresError maps constraint violations onto ledger error kinds.
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "transaction_hash") {
				return fmt.Errorf("%s: %w", operation, contentledger.ErrDuplicateTransaction)
			}
			return fmt.Errorf("%s: %w", operation, contentledger.ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: referenced content: %w", operation, contentledger.ErrNotFound)
		case "23514": // check_violation
			return fmt.Errorf("%s: %w: %s", operation, contentledger.ErrInvalidArgument, pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) CreateContent(ctx context.Context, content *contentledger.ContentRegistration) error {
	query := `
		INSERT INTO content_registration (
			id, creator, title, description, content_hash, price, created_at, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		content.ID, string(content.Creator), content.Title, content.Description,
		content.ContentHash, content.Price, int64(content.CreatedAt), content.IsActive)
	if err != nil {
		return handlePostgresError("create content", err)
	}

	return nil
}

func (r *Repository) UpdateContentStatus(ctx context.Context, id string, isActive bool) error {
	query := `UPDATE content_registration SET is_active = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, isActive)
	if err != nil {
		return handlePostgresError("update content status", err)
	}
	if tag.RowsAffected() == 0 {
		return contentledger.ErrNotFound
	}

	return nil
}

func (r *Repository) AppendPayment(ctx context.Context, payment *contentledger.PaymentRecord) error {
	query := `
		INSERT INTO payment_record (
			id, content_id, buyer, creator, amount, transaction_hash, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		payment.ID, payment.ContentID, string(payment.Buyer), string(payment.Creator),
		payment.Amount, payment.TransactionHash, int64(payment.Timestamp))
	if err != nil {
		return handlePostgresError("append payment", err)
	}

	return nil
}

func (r *Repository) ListContents(ctx context.Context) ([]*contentledger.ContentRegistration, error) {
	query := `
		SELECT id, creator, title, description, content_hash, price, created_at, is_active
		FROM content_registration
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, handlePostgresError("list contents", err)
	}
	defer rows.Close()

	var contents []*contentledger.ContentRegistration
	for rows.Next() {
		var (
			content   contentledger.ContentRegistration
			creator   string
			createdAt int64
		)
		if err := rows.Scan(
			&content.ID, &creator, &content.Title, &content.Description,
			&content.ContentHash, &content.Price, &createdAt, &content.IsActive); err != nil {
			return nil, err
		}
		content.Creator = contentledger.Identity(creator)
		content.CreatedAt = uint64(createdAt)
		contents = append(contents, &content)
	}

	return contents, rows.Err()
}

func (r *Repository) ListPayments(ctx context.Context) ([]*contentledger.PaymentRecord, error) {
	query := `
		SELECT id, content_id, buyer, creator, amount, transaction_hash, timestamp
		FROM payment_record
		ORDER BY timestamp ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, handlePostgresError("list payments", err)
	}
	defer rows.Close()

	var payments []*contentledger.PaymentRecord
	for rows.Next() {
		var (
			payment        contentledger.PaymentRecord
			buyer, creator string
			timestamp      int64
		)
		if err := rows.Scan(
			&payment.ID, &payment.ContentID, &buyer, &creator,
			&payment.Amount, &payment.TransactionHash, &timestamp); err != nil {
			return nil, err
		}
		payment.Buyer = contentledger.Identity(buyer)
		payment.Creator = contentledger.Identity(creator)
		payment.Timestamp = uint64(timestamp)
		payments = append(payments, &payment)
	}

	return payments, rows.Err()
}
