package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"CryptoSignalEngine/internal/models"
	"CryptoSignalEngine/internal/services/reconcile"
)

type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new instance of PositionRepository
func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create opens a new position. The one-open-position-per-(symbol, side)
// invariant is enforced inside the transaction: a duplicate is rejected
// with models.ErrDuplicateOpenPosition, never merged.
func (r *PositionRepository) Create(ctx context.Context, position *models.Position) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	if position.Quantity <= 0 {
		return errors.New("position quantity must be positive")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createOpenPosition(tx, position)
	})
}

// FindByID retrieves a Position record by its ID
func (r *PositionRepository) FindByID(ctx context.Context, id uint) (*models.Position, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var position models.Position
	err := r.db.WithContext(ctx).First(&position, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &position, err
}

// FindOpenPositions retrieves all open Position records
func (r *PositionRepository) FindOpenPositions(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.WithContext(ctx).
		Where("status = ?", models.PositionStatusOpen).
		Find(&positions).Error
	return positions, err
}

// FindOpenBySymbol retrieves open Position records for a specific symbol
func (r *PositionRepository) FindOpenBySymbol(ctx context.Context, symbol string) ([]models.Position, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}
	var positions []models.Position
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND status = ?", symbol, models.PositionStatusOpen).
		Find(&positions).Error
	return positions, err
}

// FindClosedSince retrieves positions closed after the cutoff
func (r *PositionRepository) FindClosedSince(ctx context.Context, cutoff time.Time) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.WithContext(ctx).
		Where("status = ? AND close_time > ?", models.PositionStatusClosed, cutoff).
		Find(&positions).Error
	return positions, err
}

// UpdateMark refreshes the mark price and unrealized PnL for an open
// position. Entry price and quantity are never touched here.
func (r *PositionRepository) UpdateMark(ctx context.Context, id uint, price, pnl float64, at time.Time) error {
	if id == 0 {
		return errors.New("invalid id")
	}
	return r.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("id = ? AND status = ?", id, models.PositionStatusOpen).
		Updates(map[string]interface{}{
			"current_price":    price,
			"unrealized_pn_l":  pnl,
			"price_updated_at": at,
		}).Error
}

// Close transitions a position open→closed exactly once, setting close
// time, reason and realized PnL atomically with the transition. Closing an
// already-closed position returns models.ErrPositionClosed.
func (r *PositionRepository) Close(ctx context.Context, id uint, reason string, closePrice, pnl float64, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return closePosition(tx, id, reason, closePrice, pnl, at)
	})
}

// ApplyCycle applies a reconciliation plan in a single transaction:
// all-or-nothing, so a mid-cycle failure leaves the ledger untouched.
func (r *PositionRepository) ApplyCycle(ctx context.Context, plan *reconcile.CyclePlan) error {
	if plan == nil || plan.Empty() {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range plan.Closes {
			if err := closePosition(tx, c.PositionID, c.Reason, c.ClosePrice, c.PnL, c.At); err != nil {
				return err
			}
		}
		for i := range plan.Imports {
			if err := createOpenPosition(tx, &plan.Imports[i]); err != nil {
				return err
			}
		}
		for _, ref := range plan.Refreshes {
			err := tx.Model(&models.Position{}).
				Where("id = ? AND status = ?", ref.PositionID, models.PositionStatusOpen).
				Updates(map[string]interface{}{
					"current_price":    ref.Price,
					"unrealized_pn_l":  ref.UnrealizedPnL,
					"price_updated_at": ref.At,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// WinRateSince computes the trailing win rate for a symbol from completed
// trades (nonzero realized PnL) closed after the cutoff.
func (r *PositionRepository) WinRateSince(ctx context.Context, symbol string, cutoff time.Time) (rate float64, completed int, err error) {
	if symbol == "" {
		return 0, 0, errors.New("invalid symbol")
	}

	type result struct {
		Completed int
		Winners   int
	}
	var res result
	err = r.db.WithContext(ctx).
		Model(&models.Position{}).
		Select("COUNT(*) as completed, COUNT(*) FILTER (WHERE realized_pn_l > 0) as winners").
		Where("symbol = ? AND status = ? AND close_time > ? AND realized_pn_l <> 0",
			symbol, models.PositionStatusClosed, cutoff).
		Scan(&res).Error
	if err != nil || res.Completed == 0 {
		return 0, 0, err
	}
	return float64(res.Winners) / float64(res.Completed) * 100, res.Completed, nil
}

func createOpenPosition(tx *gorm.DB, position *models.Position) error {
	var count int64
	err := tx.Model(&models.Position{}).
		Where("symbol = ? AND side = ? AND status = ?",
			position.Symbol, position.Side, models.PositionStatusOpen).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return models.ErrDuplicateOpenPosition
	}
	position.Status = models.PositionStatusOpen
	// The count above is only a fast path: under read committed two
	// concurrent transactions can both see zero rows. The partial unique
	// index on open (symbol, side) rows is what actually holds the
	// invariant, surfacing here as a duplicate key error.
	return translateOpenSlotError(tx.Create(position).Error)
}

func translateOpenSlotError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.ErrDuplicateOpenPosition
	}
	return err
}

func closePosition(tx *gorm.DB, id uint, reason string, closePrice, pnl float64, at time.Time) error {
	res := tx.Model(&models.Position{}).
		Where("id = ? AND status = ?", id, models.PositionStatusOpen).
		Updates(map[string]interface{}{
			"status":        models.PositionStatusClosed,
			"close_reason":  reason,
			"current_price": closePrice,
			"realized_pn_l": pnl,
			"close_time":    at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrPositionClosed
	}
	return nil
}
