package watcher

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/rsercano/market-go/pkg/types"
	"github.com/rsercano/market-go/pkg/util"
)

// fakeClock drives the watcher with virtual time. advanceAndTick moves the
// clock forward and delivers two synchronous ticks: the second send cannot
// complete until the watcher finished pruning the first, so once it returns
// every due callback has fired.
type fakeClock struct {
	mtx     sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) util.Ticker {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	t := &fakeTicker{c: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) advanceAndTick(d time.Duration) {
	c.mtx.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mtx.Unlock()

	for _, t := range tickers {
		if t.stopped() {
			continue
		}
		t.c <- now
		t.c <- now
	}
}

type fakeTicker struct {
	mtx  sync.Mutex
	c    chan time.Time
	done bool
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.mtx.Lock()
	t.done = true
	t.mtx.Unlock()
}

func (t *fakeTicker) stopped() bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.done
}

func hashN(n byte) common.Hash {
	return common.Hash{31: n}
}

func drain(fired chan common.Hash) []common.Hash {
	var out []common.Hash
	for {
		select {
		case h := <-fired:
			out = append(out, h)
		default:
			return out
		}
	}
}

func newTestWatcher(t *testing.T, margin time.Duration) (*ExpirationWatcher, *fakeClock, chan common.Hash) {
	t.Helper()
	clock := newFakeClock()
	w := New(clock, zap.NewNop(), DefaultCheckInterval, margin)
	fired := make(chan common.Hash, 16)
	if err := w.Subscribe(func(h common.Hash) { fired <- h }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(func() { _ = w.Unsubscribe() })
	return w, clock, fired
}

func TestFiresInAscendingExpirationOrder(t *testing.T) {
	w, clock, fired := newTestWatcher(t, 0)
	now := clock.Now()

	// Added in reverse expiration order.
	w.AddOrder(hashN(2), now.Add(120*time.Second).UnixMilli())
	w.AddOrder(hashN(1), now.Add(60*time.Second).UnixMilli())

	clock.advanceAndTick(121 * time.Second)

	got := drain(fired)
	if len(got) != 2 {
		t.Fatalf("fired %d callbacks, want 2", len(got))
	}
	if got[0] != hashN(1) || got[1] != hashN(2) {
		t.Errorf("fired order = %v, want [order expiring first, order expiring second]", got)
	}
}

func TestDoesNotFireBeforeExpiration(t *testing.T) {
	w, clock, fired := newTestWatcher(t, 0)
	w.AddOrder(hashN(1), clock.Now().Add(60*time.Second).UnixMilli())

	clock.advanceAndTick(59 * time.Second)
	if got := drain(fired); len(got) != 0 {
		t.Fatalf("fired %d callbacks before expiration", len(got))
	}

	clock.advanceAndTick(2 * time.Second)
	if got := drain(fired); len(got) != 1 {
		t.Fatalf("fired %d callbacks after expiration, want 1", len(got))
	}
	if w.Len() != 0 {
		t.Errorf("watcher still tracks %d orders after firing", w.Len())
	}
}

func TestFiresExactlyOnce(t *testing.T) {
	w, clock, fired := newTestWatcher(t, 0)
	w.AddOrder(hashN(1), clock.Now().Add(time.Second).UnixMilli())

	clock.advanceAndTick(2 * time.Second)
	clock.advanceAndTick(2 * time.Second)

	if got := drain(fired); len(got) != 1 {
		t.Errorf("fired %d callbacks, want exactly 1", len(got))
	}
}

func TestSimultaneousExpirationsFireInOneTick(t *testing.T) {
	w, clock, fired := newTestWatcher(t, 0)
	now := clock.Now()
	w.AddOrder(hashN(3), now.Add(30*time.Second).UnixMilli())
	w.AddOrder(hashN(1), now.Add(10*time.Second).UnixMilli())
	w.AddOrder(hashN(2), now.Add(20*time.Second).UnixMilli())

	clock.advanceAndTick(31 * time.Second)

	got := drain(fired)
	if len(got) != 3 {
		t.Fatalf("fired %d callbacks, want 3 in one tick", len(got))
	}
	for i, want := range []common.Hash{hashN(1), hashN(2), hashN(3)} {
		if got[i] != want {
			t.Errorf("fired[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestExpirationMargin(t *testing.T) {
	w, clock, fired := newTestWatcher(t, 10*time.Second)
	w.AddOrder(hashN(1), clock.Now().Add(60*time.Second).UnixMilli())

	// 55s elapsed + 10s margin covers the 60s expiration.
	clock.advanceAndTick(55 * time.Second)
	if got := drain(fired); len(got) != 1 {
		t.Errorf("fired %d callbacks with margin, want 1", len(got))
	}
}

func TestSubscribeTwice(t *testing.T) {
	w, _, _ := newTestWatcher(t, 0)
	if err := w.Subscribe(func(common.Hash) {}); !errors.Is(err, types.ErrSubscriptionAlreadyPresent) {
		t.Errorf("second Subscribe err = %v, want ErrSubscriptionAlreadyPresent", err)
	}
}

func TestUnsubscribeTwice(t *testing.T) {
	clock := newFakeClock()
	w := New(clock, zap.NewNop(), 0, 0)
	if err := w.Subscribe(func(common.Hash) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := w.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if err := w.Unsubscribe(); !errors.Is(err, types.ErrSubscriptionNotFound) {
		t.Errorf("second Unsubscribe err = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestRemoveOrder(t *testing.T) {
	w, clock, fired := newTestWatcher(t, 0)
	w.AddOrder(hashN(1), clock.Now().Add(10*time.Second).UnixMilli())
	w.RemoveOrder(hashN(1))

	// Removing an untracked hash is a silent no-op.
	w.RemoveOrder(hashN(9))

	clock.advanceAndTick(11 * time.Second)
	if got := drain(fired); len(got) != 0 {
		t.Errorf("removed order still fired %d callbacks", len(got))
	}
}

func TestReAddReordersEntry(t *testing.T) {
	w, clock, fired := newTestWatcher(t, 0)
	now := clock.Now()
	w.AddOrder(hashN(1), now.Add(100*time.Second).UnixMilli())
	w.AddOrder(hashN(2), now.Add(50*time.Second).UnixMilli())

	// Move the first order ahead of the second.
	w.AddOrder(hashN(1), now.Add(10*time.Second).UnixMilli())
	if w.Len() != 2 {
		t.Fatalf("Len() = %d after re-add, want 2", w.Len())
	}

	clock.advanceAndTick(20 * time.Second)
	got := drain(fired)
	if len(got) != 1 || got[0] != hashN(1) {
		t.Fatalf("fired = %v, want only the re-added order", got)
	}

	clock.advanceAndTick(40 * time.Second)
	got = drain(fired)
	if len(got) != 1 || got[0] != hashN(2) {
		t.Errorf("fired = %v, want the second order", got)
	}
}

func TestCallbackPanicDoesNotStopWatcher(t *testing.T) {
	clock := newFakeClock()
	w := New(clock, zap.NewNop(), DefaultCheckInterval, 0)
	fired := make(chan common.Hash, 16)
	err := w.Subscribe(func(h common.Hash) {
		if h == hashN(1) {
			panic("bad callback")
		}
		fired <- h
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(func() { _ = w.Unsubscribe() })

	now := clock.Now()
	w.AddOrder(hashN(1), now.Add(10*time.Second).UnixMilli())
	w.AddOrder(hashN(2), now.Add(20*time.Second).UnixMilli())

	clock.advanceAndTick(30 * time.Second)
	got := drain(fired)
	if len(got) != 1 || got[0] != hashN(2) {
		t.Errorf("fired = %v, want the second order despite the first panicking", got)
	}
}

func TestOrdersRemainManageableWhileUnsubscribed(t *testing.T) {
	clock := newFakeClock()
	w := New(clock, zap.NewNop(), 0, 0)

	w.AddOrder(hashN(1), clock.Now().Add(time.Second).UnixMilli())
	if w.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", w.Len())
	}
	w.RemoveOrder(hashN(1))
	if w.Len() != 0 {
		t.Errorf("Len() = %d after remove, want 0", w.Len())
	}
}
