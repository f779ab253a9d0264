package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoSignalEngine/config"
	"CryptoSignalEngine/internal/models"
)

func testReconcileConfig() config.ReconcileConfig {
	return config.ReconcileConfig{
		Interval:         time.Minute,
		StalenessBound:   5 * time.Minute,
		FetchTimeout:     50 * time.Millisecond,
		MaxRetries:       3,
		RetryBackoff:     time.Millisecond,
		BreakerThreshold: 5,
		BreakerCooldown:  time.Second,
		RateLimit:        100,
		RateBurst:        10,
	}
}

// fakeStore is an in-memory ledger honoring the Store transaction contract:
// ApplyCycle mutates a copy and commits only on full success.
type fakeStore struct {
	mu         sync.Mutex
	positions  map[uint]models.Position
	nextID     uint
	applyCalls int
	failApply  error
	failFind   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{positions: make(map[uint]models.Position), nextID: 1}
}

func (s *fakeStore) add(pos models.Position) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos.ID = s.nextID
	s.nextID++
	s.positions[pos.ID] = pos
	return pos.ID
}

func (s *fakeStore) get(id uint) models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[id]
}

func (s *fakeStore) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.positions {
		if p.Status == models.PositionStatusOpen {
			n++
		}
	}
	return n
}

func (s *fakeStore) openBySlot(symbol, side string) *models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.positions {
		if p.Symbol == symbol && p.Side == side && p.Status == models.PositionStatusOpen {
			pos := p
			return &pos
		}
	}
	return nil
}

func (s *fakeStore) FindOpenPositions(context.Context) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind != nil {
		return nil, s.failFind
	}
	var out []models.Position
	for _, p := range s.positions {
		if p.Status == models.PositionStatusOpen {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) FindOpenBySymbol(_ context.Context, symbol string) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Position
	for _, p := range s.positions {
		if p.Symbol == symbol && p.Status == models.PositionStatusOpen {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) ApplyCycle(_ context.Context, plan *CyclePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCalls++
	if s.failApply != nil {
		return s.failApply
	}

	staged := make(map[uint]models.Position, len(s.positions))
	for id, p := range s.positions {
		staged[id] = p
	}
	nextID := s.nextID

	for _, c := range plan.Closes {
		pos, ok := staged[c.PositionID]
		if !ok || pos.Status != models.PositionStatusOpen {
			return models.ErrPositionClosed
		}
		pos.Status = models.PositionStatusClosed
		pos.CloseReason = c.Reason
		pos.CurrentPrice = c.ClosePrice
		pos.RealizedPnL = c.PnL
		pos.CloseTime = c.At
		staged[c.PositionID] = pos
	}
	for _, imp := range plan.Imports {
		for _, p := range staged {
			if p.Symbol == imp.Symbol && p.Side == imp.Side && p.Status == models.PositionStatusOpen {
				return models.ErrDuplicateOpenPosition
			}
		}
		imp.ID = nextID
		nextID++
		staged[imp.ID] = imp
	}
	for _, ref := range plan.Refreshes {
		pos, ok := staged[ref.PositionID]
		if !ok || pos.Status != models.PositionStatusOpen {
			continue
		}
		pos.CurrentPrice = ref.Price
		pos.UnrealizedPnL = ref.UnrealizedPnL
		pos.PriceUpdatedAt = ref.At
		staged[ref.PositionID] = pos
	}

	s.positions = staged
	s.nextID = nextID
	return nil
}

func (s *fakeStore) UpdateMark(_ context.Context, id uint, price, pnl float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[id]
	if !ok || pos.Status != models.PositionStatusOpen {
		return nil
	}
	pos.CurrentPrice = price
	pos.UnrealizedPnL = pnl
	pos.PriceUpdatedAt = at
	s.positions[id] = pos
	return nil
}

type fakeFeed struct {
	mu        sync.Mutex
	snapshots []models.ExchangePosition
	err       error
	block     bool
	calls     int
}

func (f *fakeFeed) FetchPositions(ctx context.Context) ([]models.ExchangePosition, error) {
	f.mu.Lock()
	f.calls++
	snapshots, err, block := f.snapshots, f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func openLong(store *fakeStore, symbol string, entry, current, qty float64, priceAge time.Duration) uint {
	now := time.Now()
	return store.add(models.Position{
		Symbol:         symbol,
		Side:           models.PositionSideLong,
		Quantity:       qty,
		EntryPrice:     entry,
		CurrentPrice:   current,
		PriceUpdatedAt: now.Add(-priceAge),
		Status:         models.PositionStatusOpen,
		Source:         models.PositionSourceSignal,
		OpenTime:       now.Add(-time.Hour),
	})
}

// Ledger has an open long the exchange no longer shows: one cycle closes it
// with the manual-close reason and a PnL priced from the last known mark.
func TestCycleClosesExternallyClosedPosition(t *testing.T) {
	store := newFakeStore()
	id := openLong(store, "BTCUSDT", 100, 105, 2, time.Minute)
	feed := &fakeFeed{}
	r := NewReconciler(store, feed, testReconcileConfig())

	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Closed)
	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 0, summary.StaleCloses)

	pos := store.get(id)
	assert.Equal(t, models.PositionStatusClosed, pos.Status)
	assert.Equal(t, models.CloseReasonManualDetected, pos.CloseReason)
	assert.InDelta(t, 10.0, pos.RealizedPnL, 1e-9)
	assert.False(t, pos.CloseTime.IsZero())
}

// Exchange shows a short the ledger does not track: one cycle imports it as
// a new open position carrying the exchange's entry price.
func TestCycleImportsExternallyOpenedPosition(t *testing.T) {
	store := newFakeStore()
	feed := &fakeFeed{snapshots: []models.ExchangePosition{{
		Symbol:        "ETHUSDT",
		Side:          models.PositionSideShort,
		Quantity:      1.5,
		EntryPrice:    2000,
		MarkPrice:     1990,
		UnrealizedPnL: 15,
	}}}
	r := NewReconciler(store, feed, testReconcileConfig())

	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)

	pos := store.openBySlot("ETHUSDT", models.PositionSideShort)
	require.NotNil(t, pos)
	assert.Equal(t, 2000.0, pos.EntryPrice)
	assert.Equal(t, 1.5, pos.Quantity)
	assert.Equal(t, models.PositionSourceExchange, pos.Source)
	assert.False(t, pos.OpenTime.IsZero())
}

func TestCycleRefreshesMatchedPositions(t *testing.T) {
	store := newFakeStore()
	id := openLong(store, "BTCUSDT", 100, 102, 2, time.Minute)
	feed := &fakeFeed{snapshots: []models.ExchangePosition{{
		Symbol:        "BTCUSDT",
		Side:          models.PositionSideLong,
		Quantity:      2,
		EntryPrice:    100,
		MarkPrice:     108,
		UnrealizedPnL: 16,
	}}}
	r := NewReconciler(store, feed, testReconcileConfig())

	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Synced)
	assert.Equal(t, 0, summary.Closed)

	pos := store.get(id)
	assert.Equal(t, models.PositionStatusOpen, pos.Status)
	assert.Equal(t, 108.0, pos.CurrentPrice)
	assert.Equal(t, 16.0, pos.UnrealizedPnL)
	// Entry and quantity stay immutable on refresh.
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.Equal(t, 2.0, pos.Quantity)
}

// Running the cycle twice against unchanged external state must be a
// ledger no-op the second time.
func TestCycleIsIdempotent(t *testing.T) {
	store := newFakeStore()
	openLong(store, "BTCUSDT", 100, 105, 2, time.Minute)
	feed := &fakeFeed{snapshots: []models.ExchangePosition{{
		Symbol:     "ETHUSDT",
		Side:       models.PositionSideShort,
		Quantity:   1,
		EntryPrice: 2000,
		MarkPrice:  1990,
	}}}
	r := NewReconciler(store, feed, testReconcileConfig())

	first, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Closed)
	assert.Equal(t, 1, first.Imported)

	second, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Closed)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 1, second.Synced)
	assert.Equal(t, 1, store.openCount())
}

func TestCycleAbortsOnFetchFailure(t *testing.T) {
	store := newFakeStore()
	id := openLong(store, "BTCUSDT", 100, 105, 2, time.Minute)
	feed := &fakeFeed{err: errors.New("exchange unavailable")}
	r := NewReconciler(store, feed, testReconcileConfig())

	_, err := r.RunCycle(context.Background())
	require.Error(t, err)

	// The ledger is untouched: no close, no apply call.
	assert.Equal(t, models.PositionStatusOpen, store.get(id).Status)
	assert.Equal(t, 0, store.applyCalls)
}

func TestCycleTreatsFetchTimeoutAsFailure(t *testing.T) {
	store := newFakeStore()
	id := openLong(store, "BTCUSDT", 100, 105, 2, time.Minute)
	feed := &fakeFeed{block: true}
	r := NewReconciler(store, feed, testReconcileConfig())

	_, err := r.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.PositionStatusOpen, store.get(id).Status)
}

func TestCycleAllOrNothingOnApplyFailure(t *testing.T) {
	store := newFakeStore()
	id := openLong(store, "BTCUSDT", 100, 105, 2, time.Minute)
	store.failApply = errors.New("transaction rolled back")
	feed := &fakeFeed{}
	r := NewReconciler(store, feed, testReconcileConfig())

	_, err := r.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.PositionStatusOpen, store.get(id).Status)
}

func TestCycleFlagsStaleCloses(t *testing.T) {
	store := newFakeStore()
	openLong(store, "BTCUSDT", 100, 105, 2, time.Hour)
	feed := &fakeFeed{}
	r := NewReconciler(store, feed, testReconcileConfig())

	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Closed)
	assert.Equal(t, 1, summary.StaleCloses)
}

func TestCycleClosesFlatWhenNoMarkRecorded(t *testing.T) {
	store := newFakeStore()
	id := store.add(models.Position{
		Symbol:     "BTCUSDT",
		Side:       models.PositionSideLong,
		Quantity:   2,
		EntryPrice: 100,
		Status:     models.PositionStatusOpen,
		Source:     models.PositionSourceSignal,
		OpenTime:   time.Now(),
	})
	feed := &fakeFeed{}
	r := NewReconciler(store, feed, testReconcileConfig())

	_, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	pos := store.get(id)
	assert.Equal(t, models.PositionStatusClosed, pos.Status)
	assert.Equal(t, 0.0, pos.RealizedPnL)
}

func TestCycleDeduplicatesSnapshotSlots(t *testing.T) {
	store := newFakeStore()
	snap := models.ExchangePosition{
		Symbol:     "ETHUSDT",
		Side:       models.PositionSideShort,
		Quantity:   1,
		EntryPrice: 2000,
		MarkPrice:  1990,
	}
	feed := &fakeFeed{snapshots: []models.ExchangePosition{snap, snap}}
	r := NewReconciler(store, feed, testReconcileConfig())

	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 1, store.openCount())
}

// A long and a short on the same symbol occupy distinct slots; closing one
// must not disturb the other.
func TestCycleMatchesBySymbolAndSide(t *testing.T) {
	store := newFakeStore()
	longID := openLong(store, "BTCUSDT", 100, 105, 2, time.Minute)
	shortID := store.add(models.Position{
		Symbol:         "BTCUSDT",
		Side:           models.PositionSideShort,
		Quantity:       1,
		EntryPrice:     110,
		CurrentPrice:   105,
		PriceUpdatedAt: time.Now(),
		Status:         models.PositionStatusOpen,
		Source:         models.PositionSourceSignal,
		OpenTime:       time.Now(),
	})
	feed := &fakeFeed{snapshots: []models.ExchangePosition{{
		Symbol:     "BTCUSDT",
		Side:       models.PositionSideShort,
		Quantity:   1,
		EntryPrice: 110,
		MarkPrice:  104,
	}}}
	r := NewReconciler(store, feed, testReconcileConfig())

	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Closed)
	assert.Equal(t, 1, summary.Synced)

	assert.Equal(t, models.PositionStatusClosed, store.get(longID).Status)
	assert.Equal(t, models.PositionStatusOpen, store.get(shortID).Status)
}

func TestRefreshPriceUpdatesOpenMarks(t *testing.T) {
	store := newFakeStore()
	id := openLong(store, "BTCUSDT", 100, 101, 2, time.Minute)
	r := NewReconciler(store, &fakeFeed{}, testReconcileConfig())

	require.NoError(t, r.RefreshPrice(context.Background(), "BTCUSDT", 110))

	pos := store.get(id)
	assert.Equal(t, 110.0, pos.CurrentPrice)
	assert.InDelta(t, 20.0, pos.UnrealizedPnL, 1e-9)
}

func TestRefreshPriceRejectsNonPositivePrice(t *testing.T) {
	r := NewReconciler(newFakeStore(), &fakeFeed{}, testReconcileConfig())
	assert.Error(t, r.RefreshPrice(context.Background(), "BTCUSDT", 0))
}

// hookedStore runs a callback after the cycle's first ledger read, before
// the slot locks are taken.
type hookedStore struct {
	*fakeStore
	hookMu sync.Mutex
	finds  int
	hook   func()
}

func (s *hookedStore) FindOpenPositions(ctx context.Context) ([]models.Position, error) {
	s.hookMu.Lock()
	s.finds++
	first := s.finds == 1
	s.hookMu.Unlock()

	out, err := s.fakeStore.FindOpenPositions(ctx)
	if first && s.hook != nil {
		s.hook()
	}
	return out, err
}

// A tick refresh landing after the cycle's first ledger read carries the
// freshest mark; the close planned in the same cycle must price from it,
// not from the earlier read.
func TestCycleClosePricesFromLatestMark(t *testing.T) {
	store := newFakeStore()
	id := openLong(store, "BTCUSDT", 100, 105, 2, time.Minute)
	hooked := &hookedStore{fakeStore: store}
	feed := &fakeFeed{}
	r := NewReconciler(hooked, feed, testReconcileConfig())
	hooked.hook = func() {
		require.NoError(t, r.RefreshPrice(context.Background(), "BTCUSDT", 107))
	}

	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Closed)

	pos := store.get(id)
	assert.Equal(t, models.PositionStatusClosed, pos.Status)
	assert.Equal(t, 107.0, pos.CurrentPrice)
	assert.InDelta(t, 14.0, pos.RealizedPnL, 1e-9)
}

// A position opened while the cycle is in flight holds a slot the cycle
// never locked; it is left for the next pass instead of being closed
// against a snapshot fetched before it existed.
func TestCycleLeavesMidCycleOpensAlone(t *testing.T) {
	store := newFakeStore()
	hooked := &hookedStore{fakeStore: store}
	feed := &fakeFeed{}
	r := NewReconciler(hooked, feed, testReconcileConfig())

	var newID uint
	hooked.hook = func() {
		newID = openLong(store, "SOLUSDT", 50, 51, 1, time.Minute)
	}

	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Closed)
	assert.Equal(t, models.PositionStatusOpen, store.get(newID).Status)
}

func TestCycleAbortsWhenLedgerReadFails(t *testing.T) {
	store := newFakeStore()
	store.failFind = errors.New("connection refused")
	r := NewReconciler(store, &fakeFeed{}, testReconcileConfig())

	_, err := r.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, store.applyCalls)
}

func TestConcurrentCyclesSerialize(t *testing.T) {
	store := newFakeStore()
	openLong(store, "BTCUSDT", 100, 105, 2, time.Minute)
	feed := &fakeFeed{}
	r := NewReconciler(store, feed, testReconcileConfig())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.RunCycle(context.Background())
		}()
	}
	wg.Wait()

	// Exactly one cycle found work; the rest were no-ops against an
	// already-healed ledger.
	assert.Equal(t, 1, store.applyCalls)
	assert.Equal(t, 0, store.openCount())
}
