package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"CryptoSignalEngine/config"
	"CryptoSignalEngine/internal/models"
)

// Reconciler keeps the position ledger consistent with the exchange's
// ground truth. Each cycle diffs the open ledger slots against a fresh
// snapshot set and heals the drift: ledger-only slots are closed, snapshot-
// only slots are imported, matches are mark-to-market refreshed.
type Reconciler struct {
	store Store
	feed  Feed
	cfg   config.ReconcileConfig

	// cycleMu serializes whole cycles; slots serializes tick refreshes
	// against cycle mutations on the same (symbol, side) slot.
	cycleMu chan struct{}
	slots   *slotLocks

	now func() time.Time
}

func NewReconciler(store Store, feed Feed, cfg config.ReconcileConfig) *Reconciler {
	return &Reconciler{
		store:   store,
		feed:    feed,
		cfg:     cfg,
		cycleMu: make(chan struct{}, 1),
		slots:   newSlotLocks(),
		now:     time.Now,
	}
}

// RunCycle executes one reconciliation pass.
//
// All-or-nothing: a snapshot fetch failure or timeout aborts before any
// ledger mutation, and the plan is applied through a single Store
// transaction. Running the cycle twice with unchanged external state is a
// ledger no-op.
func (r *Reconciler) RunCycle(ctx context.Context) (*CycleSummary, error) {
	select {
	case r.cycleMu <- struct{}{}:
		defer func() { <-r.cycleMu }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	summary := &CycleSummary{StartedAt: r.now()}

	open, err := r.store.FindOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load open positions: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	snapshots, err := r.feed.FetchPositions(fetchCtx)
	if err != nil {
		// A failed or timed-out fetch is never "no positions"; the
		// cycle aborts with the ledger untouched.
		return nil, fmt.Errorf("snapshot fetch failed: %w", err)
	}
	if len(snapshots) == 0 {
		log.Debug().Msg("exchange reports no open positions")
	}

	// Lock every slot this cycle may touch before reading the marks the
	// plan prices closes from. A tick refresh landing between an unlocked
	// read and the apply would write a newer mark only for the close to
	// overwrite it with the older plan price.
	locked := slotKeys(open, snapshots)
	unlock := r.lockSlots(locked)
	defer unlock()

	open, err = r.store.FindOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load open positions: %w", err)
	}

	// Positions opened since the first read hold slots this cycle never
	// locked; they are left for the next cycle.
	open = filterSlots(open, locked)

	plan := r.buildPlan(open, snapshots, summary)
	if plan.Empty() {
		summary.FinishedAt = r.now()
		return summary, nil
	}

	if err := r.store.ApplyCycle(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to apply reconciliation plan: %w", err)
	}

	summary.FinishedAt = r.now()

	log.Info().
		Int("synced", summary.Synced).
		Int("closed", summary.Closed).
		Int("imported", summary.Imported).
		Int("stale_closes", summary.StaleCloses).
		Msg("reconciliation cycle complete")

	return summary, nil
}

func (r *Reconciler) buildPlan(open []models.Position, snapshots []models.ExchangePosition, summary *CycleSummary) *CyclePlan {
	now := r.now()
	plan := &CyclePlan{}

	snapBySlot := make(map[string]models.ExchangePosition, len(snapshots))
	for _, snap := range snapshots {
		snapBySlot[snap.SlotKey()] = snap
	}

	openSlots := make(map[string]bool, len(open))
	for _, pos := range open {
		openSlots[pos.SlotKey()] = true

		snap, matched := snapBySlot[pos.SlotKey()]
		if !matched {
			plan.Closes = append(plan.Closes, r.planClose(pos, now))
			summary.Closed++
			if plan.Closes[len(plan.Closes)-1].Stale {
				summary.StaleCloses++
			}
			continue
		}

		plan.Refreshes = append(plan.Refreshes, Refresh{
			PositionID:    pos.ID,
			Price:         snap.MarkPrice,
			UnrealizedPnL: snap.UnrealizedPnL,
			At:            now,
		})
		summary.Synced++
	}

	imported := make(map[string]bool)
	for _, snap := range snapshots {
		if openSlots[snap.SlotKey()] || imported[snap.SlotKey()] {
			continue
		}
		imported[snap.SlotKey()] = true
		plan.Imports = append(plan.Imports, models.Position{
			Symbol:         snap.Symbol,
			Side:           snap.Side,
			Quantity:       snap.Quantity,
			EntryPrice:     snap.EntryPrice,
			CurrentPrice:   snap.MarkPrice,
			PriceUpdatedAt: now,
			UnrealizedPnL:  snap.UnrealizedPnL,
			Status:         models.PositionStatusOpen,
			Source:         models.PositionSourceExchange,
			OpenTime:       now,
		})
		summary.Imported++
	}

	return plan
}

// planClose prices an externally detected close from the last known mark,
// not a fresh exchange query: the position is already gone on the exchange,
// so the last observed price is the best available data.
func (r *Reconciler) planClose(pos models.Position, now time.Time) Close {
	closePrice := pos.CurrentPrice
	if closePrice == 0 {
		// No tick was ever recorded for this slot; fall back to entry
		// so the realized PnL reads as flat rather than a total loss.
		closePrice = pos.EntryPrice
	}

	stale := pos.PriceUpdatedAt.IsZero() || now.Sub(pos.PriceUpdatedAt) > r.cfg.StalenessBound
	if stale {
		log.Warn().
			Str("symbol", pos.Symbol).
			Str("side", pos.Side).
			Time("price_updated_at", pos.PriceUpdatedAt).
			Msg("closing position on stale mark price")
	}

	return Close{
		PositionID: pos.ID,
		Reason:     models.CloseReasonManualDetected,
		ClosePrice: closePrice,
		PnL:        pos.PnLAt(closePrice),
		At:         now,
		Stale:      stale,
	}
}

// RefreshPrice is the tick path: it updates mark price and unrealized PnL
// for every open slot of the symbol, under the same slot locks the cycle
// uses, so a tick can never interleave with a close on the same slot.
func (r *Reconciler) RefreshPrice(ctx context.Context, symbol string, price float64) error {
	if price <= 0 {
		return fmt.Errorf("non-positive price %f for %s", price, symbol)
	}

	open, err := r.store.FindOpenBySymbol(ctx, symbol)
	if err != nil {
		return fmt.Errorf("failed to load open positions for %s: %w", symbol, err)
	}

	now := r.now()
	for i := range open {
		pos := open[i]
		release := r.slots.lock(pos.SlotKey())
		err := r.store.UpdateMark(ctx, pos.ID, price, pos.PnLAt(price), now)
		release()
		if err != nil {
			return fmt.Errorf("failed to refresh %s %s: %w", pos.Symbol, pos.Side, err)
		}
	}
	return nil
}

// lockSlots acquires the given slots in sorted key order.
func (r *Reconciler) lockSlots(keys []string) func() {
	releases := make([]func(), 0, len(keys))
	for _, key := range keys {
		releases = append(releases, r.slots.lock(key))
	}

	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}

// slotKeys returns the sorted, deduplicated union of the ledger's and the
// snapshot's slot keys.
func slotKeys(open []models.Position, snapshots []models.ExchangePosition) []string {
	seen := make(map[string]bool, len(open)+len(snapshots))
	keys := make([]string, 0, len(open)+len(snapshots))
	for i := range open {
		if key := open[i].SlotKey(); !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for i := range snapshots {
		if key := snapshots[i].SlotKey(); !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func filterSlots(open []models.Position, keys []string) []models.Position {
	allowed := make(map[string]bool, len(keys))
	for _, key := range keys {
		allowed[key] = true
	}
	kept := open[:0]
	for _, pos := range open {
		if allowed[pos.SlotKey()] {
			kept = append(kept, pos)
		}
	}
	return kept
}
