package repositories

import (
	"context"

	"libraryhub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// PenaltyEventRepository handles the append-only penalty log
type PenaltyEventRepository struct {
	db *gorm.DB
}

// NewPenaltyEventRepository creates a new penalty event repository
func NewPenaltyEventRepository(db *gorm.DB) *PenaltyEventRepository {
	return &PenaltyEventRepository{db: db}
}

// ListByUser lists all penalty events for a user, newest first
func (r *PenaltyEventRepository) ListByUser(ctx context.Context, userID uint) ([]*models.PenaltyEvent, error) {
	var events []*models.PenaltyEvent
	err := r.db.WithContext(ctx).
		Preload("Loan").
		Preload("Loan.Book").
		Where("user_id = ?", userID).
		Order("penalty_date DESC").
		Find(&events).Error
	return events, err
}

// QuarterTotal aggregates penalty events per quarter
type QuarterTotal struct {
	Quarter     string `json:"quarter"`
	TotalPoints int    `json:"total_points"`
	EventCount  int    `json:"event_count"`
}

// BreakdownByQuarter sums a user's penalty points per quarter label
func (r *PenaltyEventRepository) BreakdownByQuarter(ctx context.Context, userID uint) ([]QuarterTotal, error) {
	var totals []QuarterTotal
	err := r.db.WithContext(ctx).
		Model(&models.PenaltyEvent{}).
		Select("quarter, SUM(penalty_points) AS total_points, COUNT(*) AS event_count").
		Where("user_id = ?", userID).
		Group("quarter").
		Order("MAX(penalty_date) DESC").
		Scan(&totals).Error
	return totals, err
}

