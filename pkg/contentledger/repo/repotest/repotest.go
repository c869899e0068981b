// Package repotest holds the behaviour every contentledger.Repository must share.
package repotest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-ledger/pkg/contentledger"
)

// Run exercises a repository returned fresh from newRepo for each subtest.
func Run(t *testing.T, newRepo func(t *testing.T) contentledger.Repository) {
	ctx := context.Background()

	content := func(id string, createdAt uint64) *contentledger.ContentRegistration {
		return &contentledger.ContentRegistration{
			ID:          id,
			Creator:     "creator",
			Title:       "Title " + id,
			Description: "desc",
			ContentHash: "hash-" + id,
			Price:       100,
			CreatedAt:   createdAt,
			IsActive:    true,
		}
	}
	payment := func(id, contentID, tx string, ts uint64) *contentledger.PaymentRecord {
		return &contentledger.PaymentRecord{
			ID:              id,
			ContentID:       contentID,
			Buyer:           "buyer",
			Creator:         "creator",
			Amount:          100,
			TransactionHash: tx,
			Timestamp:       ts,
		}
	}

	t.Run("CreateAndList", func(t *testing.T) {
		repo := newRepo(t)

		require.NoError(t, repo.CreateContent(ctx, content("b", 20)))
		require.NoError(t, repo.CreateContent(ctx, content("a", 10)))

		contents, err := repo.ListContents(ctx)
		require.NoError(t, err)
		require.Len(t, contents, 2)
		assert.Equal(t, content("a", 10), contents[0])
		assert.Equal(t, content("b", 20), contents[1])
	})

	t.Run("CountersAreNotStored", func(t *testing.T) {
		repo := newRepo(t)

		c := content("a", 10)
		c.TotalSales = 5
		c.TotalRevenue = 500
		require.NoError(t, repo.CreateContent(ctx, c))

		contents, err := repo.ListContents(ctx)
		require.NoError(t, err)
		require.Len(t, contents, 1)
		assert.Zero(t, contents[0].TotalSales)
		assert.Zero(t, contents[0].TotalRevenue)
	})

	t.Run("DuplicateContent", func(t *testing.T) {
		repo := newRepo(t)

		require.NoError(t, repo.CreateContent(ctx, content("a", 10)))
		err := repo.CreateContent(ctx, content("a", 11))
		assert.ErrorIs(t, err, contentledger.ErrAlreadyExists)
	})

	t.Run("UpdateContentStatus", func(t *testing.T) {
		repo := newRepo(t)

		require.NoError(t, repo.CreateContent(ctx, content("a", 10)))
		require.NoError(t, repo.UpdateContentStatus(ctx, "a", false))

		contents, err := repo.ListContents(ctx)
		require.NoError(t, err)
		assert.False(t, contents[0].IsActive)

		err = repo.UpdateContentStatus(ctx, "missing", false)
		assert.ErrorIs(t, err, contentledger.ErrNotFound)
	})

	t.Run("AppendAndListPayments", func(t *testing.T) {
		repo := newRepo(t)

		require.NoError(t, repo.CreateContent(ctx, content("a", 10)))
		require.NoError(t, repo.AppendPayment(ctx, payment("p2", "a", "tx-2", 30)))
		require.NoError(t, repo.AppendPayment(ctx, payment("p1", "a", "tx-1", 20)))

		payments, err := repo.ListPayments(ctx)
		require.NoError(t, err)
		require.Len(t, payments, 2)
		assert.Equal(t, payment("p1", "a", "tx-1", 20), payments[0])
		assert.Equal(t, payment("p2", "a", "tx-2", 30), payments[1])
	})

	t.Run("DuplicateTransaction", func(t *testing.T) {
		repo := newRepo(t)

		require.NoError(t, repo.CreateContent(ctx, content("a", 10)))
		require.NoError(t, repo.AppendPayment(ctx, payment("p1", "a", "tx-1", 20)))

		err := repo.AppendPayment(ctx, payment("p2", "a", "tx-1", 30))
		assert.ErrorIs(t, err, contentledger.ErrDuplicateTransaction)

		payments, err := repo.ListPayments(ctx)
		require.NoError(t, err)
		assert.Len(t, payments, 1)
	})

	t.Run("DuplicatePaymentID", func(t *testing.T) {
		repo := newRepo(t)

		require.NoError(t, repo.CreateContent(ctx, content("a", 10)))
		require.NoError(t, repo.AppendPayment(ctx, payment("p1", "a", "tx-1", 20)))

		err := repo.AppendPayment(ctx, payment("p1", "a", "tx-2", 30))
		assert.ErrorIs(t, err, contentledger.ErrAlreadyExists)
	})

	t.Run("PaymentForUnknownContent", func(t *testing.T) {
		repo := newRepo(t)

		err := repo.AppendPayment(ctx, payment("p1", "ghost", "tx-1", 20))
		assert.ErrorIs(t, err, contentledger.ErrNotFound)
	})

	t.Run("ServiceRoundTrip", func(t *testing.T) {
		repo := newRepo(t)

		svc, err := contentledger.New(ctx, contentledger.WithRepository(repo))
		require.NoError(t, err)

		song, err := svc.RegisterContent(ctx, contentledger.RegisterContentRequest{Creator: "p1", Title: "Song A", Price: 500})
		require.NoError(t, err)
		_, err = svc.RecordPayment(ctx, contentledger.RecordPaymentRequest{ContentID: song.ID, TransactionHash: "tx-1", Amount: 500, Buyer: "p2"})
		require.NoError(t, err)

		rebuilt, err := contentledger.New(ctx, contentledger.WithRepository(repo))
		require.NoError(t, err)

		got, err := rebuilt.GetContent(ctx, song.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.TotalSales)
		assert.Equal(t, int64(500), got.TotalRevenue)

		purchased, err := rebuilt.HasPurchasedContent(ctx, "p2", song.ID)
		require.NoError(t, err)
		assert.True(t, purchased)

		_, err = rebuilt.RecordPayment(ctx, contentledger.RecordPaymentRequest{ContentID: song.ID, TransactionHash: "tx-1", Amount: 500, Buyer: "p2"})
		assert.ErrorIs(t, err, contentledger.ErrDuplicateTransaction)
	})
}
