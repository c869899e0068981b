package memory_test

import (
	"testing"

	"github.com/tendant/content-ledger/pkg/contentledger"
	"github.com/tendant/content-ledger/pkg/contentledger/repo/memory"
	"github.com/tendant/content-ledger/pkg/contentledger/repo/repotest"
)

func TestMemoryRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) contentledger.Repository {
		return memory.New()
	})
}
