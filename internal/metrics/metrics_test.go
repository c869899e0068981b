package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-ledger/pkg/contentledger"
	"github.com/tendant/content-ledger/pkg/contentledger/repo/memory"
)

func delta(t *testing.T, collector prometheus.Collector, observe func()) float64 {
	t.Helper()

	before := testutil.ToFloat64(collector)
	observe()
	after := testutil.ToFloat64(collector)
	return after - before
}

func TestLedgerRecords(t *testing.T) {
	m := NewLedger()
	start := time.Now().Add(-time.Millisecond)

	inc := delta(t, ledgerOperationsTotal.WithLabelValues("get_stats", "success"), func() {
		m.ObserveOperation("get_stats", nil, start)
	})
	assert.Equal(t, float64(1), inc)

	inc = delta(t, ledgerOperationsTotal.WithLabelValues("record_payment", "duplicate_transaction"), func() {
		m.ObserveOperation("record_payment", fmt.Errorf("wrapped: %w", contentledger.ErrDuplicateTransaction), start)
	})
	assert.Equal(t, float64(1), inc)

	inc = delta(t, ledgerOperationsTotal.WithLabelValues("unknown", "internal"), func() {
		m.ObserveOperation("", fmt.Errorf("boom"), start)
	})
	assert.Equal(t, float64(1), inc)
}

func TestLedgerObservesService(t *testing.T) {
	ctx := context.Background()
	svc, err := contentledger.New(ctx,
		contentledger.WithRepository(memory.New()),
		contentledger.WithObserver(NewLedger()),
	)
	require.NoError(t, err)

	content, err := svc.RegisterContent(ctx, contentledger.RegisterContentRequest{Creator: "p1", Title: "Song", Price: 5})
	require.NoError(t, err)

	inc := delta(t, ledgerOperationsTotal.WithLabelValues("record_payment", "amount_mismatch"), func() {
		_, err := svc.RecordPayment(ctx, contentledger.RecordPaymentRequest{
			ContentID: content.ID, TransactionHash: "tx-1", Amount: 4, Buyer: "p2",
		})
		require.Error(t, err)
	})
	assert.Equal(t, float64(1), inc)
}

func TestLedgerHaltedGauge(t *testing.T) {
	NewLedger().ObserveOperation("verify", contentledger.ErrLedgerCorrupted, time.Now())
	assert.Equal(t, float64(1), testutil.ToFloat64(ledgerHalted))
}
