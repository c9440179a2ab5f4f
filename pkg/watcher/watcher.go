// Package watcher tracks outstanding order hashes and reports each one
// exactly once, in ascending expiration order, once its expiration time has
// passed. Detection is poll-based: a recurring tick prunes every due entry,
// so no per-order timer or on-chain query is needed.
package watcher

import (
	"bytes"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huandu/skiplist"
	"go.uber.org/zap"

	"github.com/rsercano/market-go/pkg/types"
	"github.com/rsercano/market-go/pkg/util"
)

const (
	DefaultCheckInterval    = 50 * time.Millisecond
	DefaultExpirationMargin = 0
)

// expiryKey orders the index by (expiration, orderHash). Keeping the
// expiration inside the key means a changed expiration is a different key,
// so AddOrder must remove the old entry before reinserting.
type expiryKey struct {
	ms   int64
	hash common.Hash
}

// expiryComparable is a skiplist.Comparable over expiryKey.
type expiryComparable struct{}

var _ skiplist.Comparable = expiryComparable{}

func (expiryComparable) Compare(lhs, rhs interface{}) int {
	l, r := lhs.(expiryKey), rhs.(expiryKey)
	if l.ms != r.ms {
		if l.ms < r.ms {
			return -1
		}
		return 1
	}
	return bytes.Compare(l.hash[:], r.hash[:])
}

func (expiryComparable) CalcScore(key interface{}) float64 {
	return float64(key.(expiryKey).ms)
}

// Callback receives the hash of an order whose expiration has passed.
type Callback func(orderHash common.Hash)

// ExpirationWatcher maintains a skiplist of outstanding order hashes keyed by
// expiration time (milliseconds) plus a direct-access expiration map, and
// fires a callback for every expired order while subscribed. Min extraction
// and removal are O(log n); expiration lookup is O(1).
type ExpirationWatcher struct {
	mtx         sync.Mutex
	index       *skiplist.SkipList
	expirations map[common.Hash]int64

	checkInterval time.Duration
	margin        time.Duration
	clock         util.Clock
	log           *zap.Logger

	ticker util.Ticker
	quit   chan struct{}
}

// New creates an ExpirationWatcher polling every checkInterval. margin shifts
// the "now" comparison forward so callers can treat orders as expired
// slightly early, e.g. to front-run clock skew. A non-positive checkInterval
// falls back to the default; a negative margin is treated as zero.
func New(clock util.Clock, log *zap.Logger, checkInterval, margin time.Duration) *ExpirationWatcher {
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}
	if margin < 0 {
		margin = DefaultExpirationMargin
	}
	return &ExpirationWatcher{
		index:         skiplist.New(expiryComparable{}),
		expirations:   make(map[common.Hash]int64),
		checkInterval: checkInterval,
		margin:        margin,
		clock:         clock,
		log:           log,
	}
}

// Subscribe starts the recurring expiration check and delivers expired order
// hashes to callback. It fails with types.ErrSubscriptionAlreadyPresent if a
// subscription is already active. Callback panics are recovered and logged;
// a misbehaving callback never stops the watcher.
func (w *ExpirationWatcher) Subscribe(callback Callback) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if w.ticker != nil {
		return types.ErrSubscriptionAlreadyPresent
	}
	w.ticker = w.clock.NewTicker(w.checkInterval)
	w.quit = make(chan struct{})
	go w.run(w.ticker, w.quit, callback)
	return nil
}

// Unsubscribe stops the recurring check. It fails with
// types.ErrSubscriptionNotFound if no subscription is active. Orders remain
// tracked and removable while unsubscribed.
func (w *ExpirationWatcher) Unsubscribe() error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if w.ticker == nil {
		return types.ErrSubscriptionNotFound
	}
	w.ticker.Stop()
	close(w.quit)
	w.ticker = nil
	w.quit = nil
	return nil
}

// AddOrder starts monitoring orderHash, expiring at expirationMs (unix
// milliseconds). Re-adding a tracked hash overwrites its expiration: the old
// index entry is removed first so ordering stays consistent with the map.
func (w *ExpirationWatcher) AddOrder(orderHash common.Hash, expirationMs int64) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if old, ok := w.expirations[orderHash]; ok {
		w.index.Remove(expiryKey{ms: old, hash: orderHash})
	}
	w.expirations[orderHash] = expirationMs
	w.index.Set(expiryKey{ms: expirationMs, hash: orderHash}, orderHash)
}

// RemoveOrder stops monitoring orderHash. Removing an untracked hash is a
// silent no-op.
func (w *ExpirationWatcher) RemoveOrder(orderHash common.Hash) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	ms, ok := w.expirations[orderHash]
	if !ok {
		return
	}
	w.index.Remove(expiryKey{ms: ms, hash: orderHash})
	delete(w.expirations, orderHash)
}

// Len reports how many orders are currently tracked.
func (w *ExpirationWatcher) Len() int {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	return len(w.expirations)
}

// run drains ticks until the subscription ends. Reading the ticker from a
// single goroutine keeps prune runs non-overlapping: a tick's prune loop
// always completes before the next tick is handled.
func (w *ExpirationWatcher) run(ticker util.Ticker, quit chan struct{}, callback Callback) {
	for {
		select {
		case <-quit:
			return
		case <-ticker.Chan():
			w.pruneExpiredOrders(callback)
		}
	}
}

// pruneExpiredOrders pops and fires every entry whose expiration is at or
// before now+margin, in ascending expiration order, all within the same
// tick. It stops early if the subscription was torn down mid-loop.
func (w *ExpirationWatcher) pruneExpiredOrders(callback Callback) {
	deadline := w.clock.Now().Add(w.margin).UnixMilli()
	for {
		w.mtx.Lock()
		front := w.index.Front()
		if front == nil || w.ticker == nil {
			w.mtx.Unlock()
			return
		}
		key := front.Key().(expiryKey)
		if key.ms > deadline {
			w.mtx.Unlock()
			return
		}
		w.index.Remove(key)
		delete(w.expirations, key.hash)
		w.mtx.Unlock()

		// Fired outside the lock so the callback may add or remove orders.
		w.fire(callback, key.hash)
	}
}

func (w *ExpirationWatcher) fire(callback Callback, orderHash common.Hash) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Warn("expiration callback panicked",
				zap.Stringer("orderHash", orderHash),
				zap.Any("panic", r))
		}
	}()
	callback(orderHash)
}
