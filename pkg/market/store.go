package market

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/ledger"
)

// storeKey identifies one order on one market contract. Flattening the two
// levels into a composite key removes the missing-outer-map edge case.
type storeKey struct {
	contract  common.Address
	orderHash common.Hash
}

// FilledCancelledStore lazily caches the filled-or-cancelled quantity per
// (contract, order hash). A first read per key queries the ledger and caches
// the answer; later reads are served locally until the entry is explicitly
// invalidated. The cache never self-invalidates on a timer — staleness is the
// caller's responsibility, and the cache is advisory, never a source of
// truth.
//
// The mutex only keeps the map itself safe. Concurrent misses on the same
// key are not deduplicated: each caller issues its own remote query and the
// last write wins.
type FilledCancelledStore struct {
	mtx     sync.Mutex
	qtys    map[storeKey]*big.Int
	querier ledger.FillQuerier
}

// NewFilledCancelledStore creates an empty store backed by querier.
func NewFilledCancelledStore(querier ledger.FillQuerier) *FilledCancelledStore {
	return &FilledCancelledStore{
		qtys:    make(map[storeKey]*big.Int),
		querier: querier,
	}
}

// GetQty returns the filled-or-cancelled quantity for the order, querying
// the ledger only when the key is not cached.
func (s *FilledCancelledStore) GetQty(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error) {
	key := storeKey{contract: contract, orderHash: orderHash}

	s.mtx.Lock()
	cached, ok := s.qtys[key]
	s.mtx.Unlock()
	if ok {
		return new(big.Int).Set(cached), nil
	}

	qty, err := s.querier.FilledOrCancelledQty(ctx, contract, orderHash)
	if err != nil {
		return nil, err
	}
	s.SetQty(contract, orderHash, qty)
	return new(big.Int).Set(qty), nil
}

// SetQty creates or overwrites the cached quantity for the order. Values are
// not checked for monotonicity so callers can force a refresh in either
// direction.
func (s *FilledCancelledStore) SetQty(contract common.Address, orderHash common.Hash, qty *big.Int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.qtys[storeKey{contract: contract, orderHash: orderHash}] = new(big.Int).Set(qty)
}

// DeleteQty removes a single cached entry. Deleting an absent entry is a
// silent no-op.
func (s *FilledCancelledStore) DeleteQty(contract common.Address, orderHash common.Hash) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	delete(s.qtys, storeKey{contract: contract, orderHash: orderHash})
}

// DeleteAll drops every cached entry, e.g. after a provider change.
func (s *FilledCancelledStore) DeleteAll() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.qtys = make(map[storeKey]*big.Int)
}
