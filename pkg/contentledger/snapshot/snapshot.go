// Package snapshot exports the ledger's primary stores to a blob store and
// restores them into an empty repository. Derived views are never written;
// a restored ledger rebuilds them by replay.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/content-ledger/pkg/contentledger"
)

// FormatVersion is written into every document and checked on restore
const FormatVersion = 1

// DefaultPrefix is the key prefix snapshots are stored under
const DefaultPrefix = "snapshots/"

// Document is the serialized form of a ledger snapshot
type Document struct {
	Version  int                                  `json:"version"`
	TakenAt  time.Time                            `json:"taken_at"`
	Stats    contentledger.Stats                  `json:"stats"`
	Contents []*contentledger.ContentRegistration `json:"contents"`
	Payments []*contentledger.PaymentRecord       `json:"payments"`
}

// Export writes the service's primary stores to store and returns the object key.
// An empty key allocates a time-ordered one under DefaultPrefix.
func Export(ctx context.Context, svc contentledger.Service, store contentledger.BlobStore, key string) (string, error) {
	contents, payments, err := svc.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read ledger: %w", err)
	}
	// Stats are derived from the same read so they always match the records.
	stats := contentledger.Stats{
		ContentCount: uint64(len(contents)),
		PaymentCount: uint64(len(payments)),
	}
	for _, p := range payments {
		stats.TotalRevenue += p.Amount
	}

	doc := Document{
		Version:  FormatVersion,
		TakenAt:  time.Now().UTC(),
		Stats:    stats,
		Contents: contents,
		Payments: payments,
	}

	if key == "" {
		key = NewKey(DefaultPrefix, doc.TakenAt)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := store.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	return key, nil
}

// NewKey returns a key under prefix that sorts after every key allocated earlier
func NewKey(prefix string, at time.Time) string {
	return prefix + at.UTC().Format("20060102T150405.000000000Z") + "-" + uuid.NewString()[:8] + ".json"
}

// Latest returns the newest snapshot key under prefix
func Latest(ctx context.Context, store contentledger.BlobStore, prefix string) (string, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return "", err
	}
	for i := len(keys) - 1; i >= 0; i-- {
		if strings.HasSuffix(keys[i], ".json") {
			return keys[i], nil
		}
	}
	return "", contentledger.ErrBlobNotFound
}

// Prune deletes all but the newest keep snapshots under prefix and returns
// the deleted keys. A keep of zero or less deletes nothing.
func Prune(ctx context.Context, store contentledger.BlobStore, prefix string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, key := range keys {
		if strings.HasSuffix(key, ".json") {
			snapshots = append(snapshots, key)
		}
	}
	if len(snapshots) <= keep {
		return nil, nil
	}

	stale := snapshots[:len(snapshots)-keep]
	for i, key := range stale {
		if err := store.Delete(ctx, key); err != nil {
			return stale[:i], fmt.Errorf("failed to delete snapshot %s: %w", key, err)
		}
	}
	return stale, nil
}

// Load downloads and decodes a snapshot document
func Load(ctx context.Context, store contentledger.BlobStore, key string) (*Document, error) {
	reader, err := store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var doc Document
	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", contentledger.ErrInvalidArgument, doc.Version)
	}
	return &doc, nil
}

// Restore writes the snapshot's primary records into repo, which must be
// empty, then rebuilds a service over it. The document is replayed and its
// stats checked before the first write, so a rejected snapshot leaves repo
// untouched.
func Restore(ctx context.Context, store contentledger.BlobStore, key string, repo contentledger.Repository, options ...contentledger.Option) (contentledger.Service, error) {
	doc, err := Load(ctx, store, key)
	if err != nil {
		return nil, err
	}

	existingContents, err := repo.ListContents(ctx)
	if err != nil {
		return nil, err
	}
	existingPayments, err := repo.ListPayments(ctx)
	if err != nil {
		return nil, err
	}
	if len(existingContents) > 0 || len(existingPayments) > 0 {
		return nil, fmt.Errorf("%w: restore target repository is not empty", contentledger.ErrAlreadyExists)
	}

	stats, err := contentledger.ReplayStats(doc.Contents, doc.Payments)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s is inconsistent: %w", key, err)
	}
	if stats != doc.Stats {
		return nil, fmt.Errorf("%w: snapshot %s replays to %+v, recorded %+v", contentledger.ErrLedgerCorrupted, key, stats, doc.Stats)
	}

	for _, c := range doc.Contents {
		if err := repo.CreateContent(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to restore content %s: %w", c.ID, err)
		}
	}
	for _, p := range doc.Payments {
		if err := repo.AppendPayment(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to restore payment %s: %w", p.ID, err)
		}
	}

	svc, err := contentledger.New(ctx, append(options, contentledger.WithRepository(repo))...)
	if err != nil {
		return nil, err
	}

	stats, err = svc.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	if stats != doc.Stats {
		return nil, fmt.Errorf("%w: restored stats %+v differ from snapshot %+v", contentledger.ErrLedgerCorrupted, stats, doc.Stats)
	}

	return svc, nil
}

// IsNotFound reports whether err means the snapshot does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, contentledger.ErrBlobNotFound)
}
