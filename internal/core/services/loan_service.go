package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/policy"
	"libraryhub/internal/pkg/quarter"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoanPeriodDays is the grace period: due date = borrow date + 7 days
const LoanPeriodDays = 7

// LoanService coordinates borrow and return operations. Each runs as a
// single transaction: policy inputs, validation reads, and all writes to
// books, loans, users and penalty_events commit or roll back as one unit.
type LoanService struct {
	db        *gorm.DB
	loans     *repositories.LoanRepository
	penalties *repositories.PenaltyEventRepository
	userRepo  repositories.UserRepository
	policy    *policy.Engine
	now       func() time.Time
}

// NewLoanService creates a new loan service
func NewLoanService(
	db *gorm.DB,
	loans *repositories.LoanRepository,
	penalties *repositories.PenaltyEventRepository,
	userRepo repositories.UserRepository,
	engine *policy.Engine,
) *LoanService {
	return &LoanService{
		db:        db,
		loans:     loans,
		penalties: penalties,
		userRepo:  userRepo,
		policy:    engine,
		now:       time.Now,
	}
}

// SetClock overrides the time source (tests)
func (s *LoanService) SetClock(now func() time.Time) {
	s.now = now
}

// lockForUpdate adds a row-level lock on dialects that support it.
// SQLite allows a single writer per database, so there the transaction
// itself serializes access.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// BorrowInput represents borrow input
type BorrowInput struct {
	UserID uint `json:"userId" validate:"required"`
	BookID uint `json:"bookId" validate:"required"`
}

// BorrowResult is the success payload of a borrow: enough for the caller
// to render the user's state without a follow-up fetch.
type BorrowResult struct {
	LoanID          uint      `json:"loanId"`
	MaxLoansAllowed int       `json:"maxLoansAllowed"`
	CurrentLoans    int       `json:"currentLoans"`
	DueDate         time.Time `json:"dueDate"`
	PenaltyPoints   int       `json:"penaltyPoints"`
	PenaltyLevel    string    `json:"penaltyLevel"`
	Quarter         string    `json:"quarter"`
}

// Borrow lends a book to a user. Precondition order matters: suspension
// short-circuits before the active-loan-count check.
func (s *LoanService) Borrow(ctx context.Context, input *BorrowInput) (*BorrowResult, error) {
	now := s.now()
	q := quarter.Of(now)

	var result *BorrowResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := lockForUpdate(tx).First(&user, input.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}

		points, err := s.resolvePenaltyPoints(tx, &user, q, now)
		if err != nil {
			return err
		}

		limit := s.policy.ComputeLimit(points)
		if limit.Suspended() {
			return domain.ErrBorrowingSuspended
		}

		var active int64
		if err := tx.Model(&models.Loan{}).
			Where("user_id = ? AND returned = ?", user.ID, false).
			Count(&active).Error; err != nil {
			return err
		}
		if active >= int64(limit.MaxLoans) {
			return fmt.Errorf("%w (limit %d). %s",
				domain.ErrLoanLimitReached, limit.MaxLoans, limit.Message)
		}

		var duplicate int64
		if err := tx.Model(&models.Loan{}).
			Where("user_id = ? AND book_id = ? AND returned = ?", user.ID, input.BookID, false).
			Count(&duplicate).Error; err != nil {
			return err
		}
		if duplicate > 0 {
			return domain.ErrDuplicateLoan
		}

		var book models.Book
		if err := lockForUpdate(tx).First(&book, input.BookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrBookNotFound
			}
			return err
		}
		if book.Quantity < 1 {
			return domain.ErrBookNotAvailable
		}

		if err := tx.Model(&models.Book{}).
			Where("id = ?", book.ID).
			UpdateColumn("quantity", gorm.Expr("quantity - 1")).Error; err != nil {
			return err
		}

		loan := &models.Loan{
			UserID:     user.ID,
			BookID:     book.ID,
			BorrowDate: now,
			DueDate:    now.AddDate(0, 0, LoanPeriodDays),
			Quarter:    q.Label(),
		}
		if err := tx.Create(loan).Error; err != nil {
			return err
		}

		result = &BorrowResult{
			LoanID:          loan.ID,
			MaxLoansAllowed: limit.MaxLoans,
			CurrentLoans:    int(active) + 1,
			DueDate:         loan.DueDate,
			PenaltyPoints:   points,
			PenaltyLevel:    limit.Level,
			Quarter:         q.Label(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReturnResult is the success payload of a return
type ReturnResult struct {
	WasOverdue    bool   `json:"wasOverdue"`
	OverdueDays   int    `json:"overdueDays"`
	PenaltyPoints int    `json:"penaltyPoints"`
	Quarter       string `json:"quarter"`
}

// Return takes a book back, computing and recording penalties when overdue.
// Penalties are attributed to the quarter of the return, not of the borrow.
// Returning an already-returned loan fails without any state change.
func (s *LoanService) Return(ctx context.Context, loanID uint) (*ReturnResult, error) {
	now := s.now()
	q := quarter.Of(now)

	var result *ReturnResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loan models.Loan
		if err := lockForUpdate(tx).First(&loan, loanID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrLoanNotFound
			}
			return err
		}
		if loan.Returned {
			return domain.ErrLoanAlreadyReturned
		}

		overdueDays := quarter.OverdueDays(loan.DueDate, now)
		points := s.policy.PointsForReturn(overdueDays)

		if overdueDays > 0 {
			var user models.User
			if err := lockForUpdate(tx).First(&user, loan.UserID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrUserNotFound
				}
				return err
			}

			current := user.PenaltyPoints()
			if current < 0 {
				current = 0
			}
			if err := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Updates(map[string]interface{}{
					"quarterly_penalty_points": current + points,
					"last_penalty_quarter":     q.Label(),
				}).Error; err != nil {
				return err
			}

			event := &models.PenaltyEvent{
				UserID:        user.ID,
				LoanID:        loan.ID,
				OverdueDays:   overdueDays,
				PenaltyPoints: points,
				PenaltyDate:   now,
				Quarter:       q.Label(),
			}
			if err := tx.Create(event).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Loan{}).
			Where("id = ?", loan.ID).
			Updates(map[string]interface{}{
				"returned":    true,
				"return_date": now,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Book{}).
			Where("id = ?", loan.BookID).
			UpdateColumn("quantity", gorm.Expr("quantity + 1")).Error; err != nil {
			return err
		}

		result = &ReturnResult{
			WasOverdue:    overdueDays > 0,
			OverdueDays:   overdueDays,
			PenaltyPoints: points,
			Quarter:       q.Label(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolvePenaltyPoints returns the user's stored quarterly points. When the
// stored value was never initialized it derives points from the user's
// currently-overdue active loans in this quarter and persists the result so
// future calls use the stored value.
func (s *LoanService) resolvePenaltyPoints(tx *gorm.DB, user *models.User, q quarter.Quarter, now time.Time) (int, error) {
	points := user.PenaltyPoints()
	if points >= 0 {
		return points, nil
	}

	var overdue int64
	if err := tx.Model(&models.Loan{}).
		Where("user_id = ? AND returned = ? AND due_date < ? AND borrow_date >= ?",
			user.ID, false, now, q.Start()).
		Count(&overdue).Error; err != nil {
		return 0, err
	}

	points = s.policy.DerivedPoints(int(overdue))
	if err := tx.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("quarterly_penalty_points", points).Error; err != nil {
		return 0, err
	}
	user.QuarterlyPenaltyPoints = &points
	return points, nil
}

// DeleteLoan hard deletes a loan row without touching inventory.
// Administrative escape hatch, not part of the transactional flow.
func (s *LoanService) DeleteLoan(ctx context.Context, loanID uint) error {
	if _, err := s.loans.GetByID(ctx, loanID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrLoanNotFound
		}
		return err
	}
	return s.loans.Delete(ctx, loanID)
}

// ResetQuarterlyPenalties zeroes every user's penalty points. Triggered by
// an admin request or the quarterly cron job, never by quarter rollover.
func (s *LoanService) ResetQuarterlyPenalties(ctx context.Context) (int64, error) {
	return s.userRepo.ResetAllPenaltyPoints(ctx)
}
