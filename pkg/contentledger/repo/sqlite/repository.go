// Package sqlite provides an embedded SQLite journal for the content ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tendant/content-ledger/pkg/contentledger"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS content_registration (
	id           TEXT PRIMARY KEY,
	creator      TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	price        INTEGER NOT NULL CHECK (price >= 0),
	created_at   INTEGER NOT NULL,
	is_active    INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS payment_record (
	id               TEXT PRIMARY KEY,
	content_id       TEXT NOT NULL REFERENCES content_registration(id),
	buyer            TEXT NOT NULL,
	creator          TEXT NOT NULL,
	amount           INTEGER NOT NULL CHECK (amount >= 0),
	transaction_hash TEXT NOT NULL UNIQUE,
	timestamp        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS payment_record_timestamp_idx ON payment_record (timestamp);
`

// Repository implements contentledger.Repository on SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: the ledger has a single writer, and an in-memory
	// database is private to the connection that created it.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close closes the SQLite handle.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func mapError(operation string, err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w", operation, contentledger.ErrAlreadyExists)
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			if strings.Contains(err.Error(), "transaction_hash") {
				return fmt.Errorf("%s: %w", operation, contentledger.ErrDuplicateTransaction)
			}
			return fmt.Errorf("%s: %w", operation, contentledger.ErrAlreadyExists)
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: referenced content: %w", operation, contentledger.ErrNotFound)
		case sqlite3lib.SQLITE_CONSTRAINT_CHECK:
			return fmt.Errorf("%s: %w", operation, contentledger.ErrInvalidArgument)
		}
		// Without extended result codes only the primary code is set.
		if sqliteErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT {
			msg := sqliteErr.Error()
			switch {
			case strings.Contains(msg, "transaction_hash"):
				return fmt.Errorf("%s: %w", operation, contentledger.ErrDuplicateTransaction)
			case strings.Contains(msg, "FOREIGN KEY"):
				return fmt.Errorf("%s: referenced content: %w", operation, contentledger.ErrNotFound)
			case strings.Contains(msg, "CHECK"):
				return fmt.Errorf("%s: %w", operation, contentledger.ErrInvalidArgument)
			case strings.Contains(msg, "UNIQUE"):
				return fmt.Errorf("%s: %w", operation, contentledger.ErrAlreadyExists)
			}
		}
	}
	return fmt.Errorf("sqlite error in %s: %w", operation, err)
}

func (r *Repository) CreateContent(ctx context.Context, content *contentledger.ContentRegistration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO content_registration (
			id, creator, title, description, content_hash, price, created_at, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		content.ID, string(content.Creator), content.Title, content.Description,
		content.ContentHash, content.Price, int64(content.CreatedAt), content.IsActive)
	if err != nil {
		return mapError("create content", err)
	}
	return nil
}

func (r *Repository) UpdateContentStatus(ctx context.Context, id string, isActive bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE content_registration SET is_active = ? WHERE id = ?`, isActive, id)
	if err != nil {
		return mapError("update content status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("update content status", err)
	}
	if n == 0 {
		return contentledger.ErrNotFound
	}
	return nil
}

func (r *Repository) AppendPayment(ctx context.Context, payment *contentledger.PaymentRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_record (
			id, content_id, buyer, creator, amount, transaction_hash, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.ContentID, string(payment.Buyer), string(payment.Creator),
		payment.Amount, payment.TransactionHash, int64(payment.Timestamp))
	if err != nil {
		return mapError("append payment", err)
	}
	return nil
}

func (r *Repository) ListContents(ctx context.Context) ([]*contentledger.ContentRegistration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, creator, title, description, content_hash, price, created_at, is_active
		FROM content_registration
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, mapError("list contents", err)
	}
	defer rows.Close()

	var contents []*contentledger.ContentRegistration
	for rows.Next() {
		var (
			content   contentledger.ContentRegistration
			creator   string
			createdAt int64
		)
		if err := rows.Scan(&content.ID, &creator, &content.Title, &content.Description,
			&content.ContentHash, &content.Price, &createdAt, &content.IsActive); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		content.Creator = contentledger.Identity(creator)
		content.CreatedAt = uint64(createdAt)
		contents = append(contents, &content)
	}
	return contents, rows.Err()
}

func (r *Repository) ListPayments(ctx context.Context) ([]*contentledger.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, content_id, buyer, creator, amount, transaction_hash, timestamp
		FROM payment_record
		ORDER BY timestamp ASC`)
	if err != nil {
		return nil, mapError("list payments", err)
	}
	defer rows.Close()

	var payments []*contentledger.PaymentRecord
	for rows.Next() {
		var (
			payment        contentledger.PaymentRecord
			buyer, creator string
			timestamp      int64
		)
		if err := rows.Scan(&payment.ID, &payment.ContentID, &buyer, &creator,
			&payment.Amount, &payment.TransactionHash, &timestamp); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payment.Buyer = contentledger.Identity(buyer)
		payment.Creator = contentledger.Identity(creator)
		payment.Timestamp = uint64(timestamp)
		payments = append(payments, &payment)
	}
	return payments, rows.Err()
}

var _ contentledger.Repository = (*Repository)(nil)
