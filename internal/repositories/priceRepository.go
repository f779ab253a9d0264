package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"CryptoSignalEngine/internal/models"
)

type PriceRepository struct {
	db *gorm.DB
}

// NewPriceRepository creates a new instance of PriceRepository
func NewPriceRepository(db *gorm.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// Create adds a new Price record to the database
func (r *PriceRepository) Create(ctx context.Context, price *models.Price) error {
	if price == nil {
		return errors.New("price cannot be nil")
	}
	return r.db.WithContext(ctx).Create(price).Error
}

// CreateBatch inserts a batch of Price records in one statement
func (r *PriceRepository) CreateBatch(ctx context.Context, prices []models.Price) error {
	if len(prices) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&prices).Error
}

// RecentCloses returns the most recent `limit` prices for a symbol and
// timeframe, ordered oldest first so the slice feeds indicators directly.
func (r *PriceRepository) RecentCloses(ctx context.Context, symbol, timeFrame string, limit int) ([]models.Price, error) {
	if symbol == "" || timeFrame == "" {
		return nil, errors.New("invalid symbol or timeframe")
	}

	var prices []models.Price
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND time_frame = ?", symbol, timeFrame).
		Order("open_time DESC").
		Limit(limit).
		Find(&prices).Error
	if err != nil {
		return nil, err
	}

	// Reverse into ascending open-time order.
	for i, j := 0, len(prices)-1; i < j; i, j = i+1, j-1 {
		prices[i], prices[j] = prices[j], prices[i]
	}
	return prices, nil
}

// GetLatestPrice gets the most recent price for a symbol and timeframe
func (r *PriceRepository) GetLatestPrice(ctx context.Context, symbol, timeFrame string) (*models.Price, error) {
	if symbol == "" || timeFrame == "" {
		return nil, errors.New("invalid symbol or timeframe")
	}

	var price models.Price
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND time_frame = ?", symbol, timeFrame).
		Order("open_time DESC").
		First(&price).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &price, err
}
