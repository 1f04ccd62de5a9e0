package repositories

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoanRepository handles loan data access outside the transactional
// borrow/return paths (those run their reads and writes inside a single
// gorm transaction in the loan service).
type LoanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// GetByID gets a loan by ID with its book and user
func (r *LoanRepository) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// ListActiveByUser lists a user's unreturned loans with book details,
// ordered by due date ascending
func (r *LoanRepository) ListActiveByUser(ctx context.Context, userID uint) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Where("user_id = ? AND returned = ?", userID, false).
		Order("due_date ASC").
		Find(&loans).Error
	return loans, err
}

// CountOverdueActive counts all unreturned loans past due at the given instant
func (r *LoanRepository) CountOverdueActive(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("returned = ? AND due_date < ?", false, now).
		Count(&count).Error
	return count, err
}

// ListAllFilter selects which loans ListAll returns
type ListAllFilter struct {
	Status string // "", "active", "returned", "overdue"
	Search string // free text across title/author/username/email
	Now    time.Time
}

// ListAll lists loans with user and book details for the admin view,
// unreturned first, then overdue first, then most recent borrow first
func (r *LoanRepository) ListAll(ctx context.Context, filter ListAllFilter) ([]*models.Loan, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Preload("Book").
		Preload("User").
		Joins("JOIN books ON books.id = loans.book_id").
		Joins("JOIN users ON users.id = loans.user_id")

	switch filter.Status {
	case "active":
		q = q.Where("loans.returned = ?", false)
	case "returned":
		q = q.Where("loans.returned = ?", true)
	case "overdue":
		q = q.Where("loans.returned = ? AND loans.due_date < ?", false, filter.Now)
	}

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(
			"books.title LIKE ? OR books.author LIKE ? OR users.username LIKE ? OR users.email LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	// The overdue comparison uses the caller's clock, same as the status
	// filter and the IsOverdue annotation.
	var loans []*models.Loan
	err := q.Order(clause.OrderBy{
		Expression: clause.Expr{
			SQL:                "loans.returned ASC, CASE WHEN loans.returned = 0 AND loans.due_date < ? THEN 0 ELSE 1 END, loans.borrow_date DESC",
			Vars:               []interface{}{filter.Now},
			WithoutParentheses: true,
		},
	}).Find(&loans).Error
	return loans, err
}

// Delete hard deletes a loan row. Administrative escape hatch only:
// it does not touch the book quantity.
func (r *LoanRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Loan{}, id).Error
}
