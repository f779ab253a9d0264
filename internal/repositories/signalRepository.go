package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"CryptoSignalEngine/internal/models"
)

type SignalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a new instance of SignalRepository
func NewSignalRepository(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create persists a scored signal after checking its risk invariants.
func (r *SignalRepository) Create(ctx context.Context, signal *models.Signal) error {
	if signal == nil {
		return errors.New("signal cannot be nil")
	}
	if err := signal.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(signal).Error
}

// FindActiveSince retrieves active signals created after the cutoff,
// newest first.
func (r *SignalRepository) FindActiveSince(ctx context.Context, cutoff time.Time) ([]models.Signal, error) {
	var signals []models.Signal
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND created_at > ?", true, cutoff).
		Order("created_at DESC").
		Find(&signals).Error
	return signals, err
}

// FindSince retrieves all signals created after the cutoff regardless of
// active state, for window aggregation.
func (r *SignalRepository) FindSince(ctx context.Context, cutoff time.Time) ([]models.Signal, error) {
	var signals []models.Signal
	err := r.db.WithContext(ctx).
		Where("created_at > ?", cutoff).
		Order("created_at ASC").
		Find(&signals).Error
	return signals, err
}

// Deactivate marks signals consumed or expired. A signal is never rescored;
// deactivation is the only in-place mutation it supports.
func (r *SignalRepository) Deactivate(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Signal{}).
		Where("id IN ?", ids).
		Update("is_active", false).Error
}

// DeactivateExpired retires active signals older than the cutoff.
func (r *SignalRepository) DeactivateExpired(ctx context.Context, cutoff time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Signal{}).
		Where("is_active = ? AND created_at <= ?", true, cutoff).
		Update("is_active", false).Error
}
