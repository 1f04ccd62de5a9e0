package services

import (
	"context"
	"errors"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/quarter"

	"gorm.io/gorm"
)

// Display severities for penalty history. These are read-time labels over
// overdue-day counts and are distinct from the borrowing-limit tiers.
const (
	SeverityMild     = "Mild"
	SeverityModerate = "Moderate"
	SeveritySevere   = "Severe"
)

// UserLoanItem is one active loan in the user view
type UserLoanItem struct {
	ID            uint      `json:"id"`
	BookID        uint      `json:"bookId"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	BorrowDate    time.Time `json:"borrowDate"`
	DueDate       time.Time `json:"dueDate"`
	Quarter       string    `json:"quarter"`
	DaysRemaining int       `json:"daysRemaining"`
	IsOverdue     bool      `json:"isOverdue"`
}

// PenaltyInfo summarizes a user's current borrowing standing
type PenaltyInfo struct {
	CurrentQuarter         string `json:"currentQuarter"`
	MaxLoansAllowed        int    `json:"maxLoansAllowed"`
	CurrentLoans           int    `json:"currentLoans"`
	BorrowingStatus        string `json:"borrowingStatus"`
	PenaltyLevel           string `json:"penaltyLevel"`
	PenaltyMessage         string `json:"penaltyMessage,omitempty"`
	QuarterlyPenaltyPoints int    `json:"quarterlyPenaltyPoints"`
	OverdueBooks           int    `json:"overdueBooks"`
}

// UserLoansOutput is the payload of the user-loans view
type UserLoansOutput struct {
	Loans       []*UserLoanItem `json:"loans"`
	PenaltyInfo *PenaltyInfo    `json:"penaltyInfo"`
}

// GetUserLoans lists a user's active loans with book details plus a
// penalty-info summary derived from the policy engine.
func (s *LoanService) GetUserLoans(ctx context.Context, userID uint) (*UserLoansOutput, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	now := s.now()
	q := quarter.Of(now)

	loans, err := s.loans.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]*UserLoanItem, 0, len(loans))
	overdueCount := 0
	for _, loan := range loans {
		item := &UserLoanItem{
			ID:            loan.ID,
			BookID:        loan.BookID,
			BorrowDate:    loan.BorrowDate,
			DueDate:       loan.DueDate,
			Quarter:       loan.Quarter,
			DaysRemaining: quarter.DaysRemaining(loan.DueDate, now),
			IsOverdue:     loan.DueDate.Before(now),
		}
		if loan.Book != nil {
			item.Title = loan.Book.Title
			item.Author = loan.Book.Author
		}
		if item.IsOverdue {
			overdueCount++
		}
		items = append(items, item)
	}

	points, err := s.resolvePenaltyPoints(s.db.WithContext(ctx), user, q, now)
	if err != nil {
		return nil, err
	}
	limit := s.policy.ComputeLimit(points)

	status := "Can Borrow"
	switch {
	case limit.Suspended():
		status = "Suspended"
	case len(items) >= limit.MaxLoans:
		status = "Limit Reached"
	}

	return &UserLoansOutput{
		Loans: items,
		PenaltyInfo: &PenaltyInfo{
			CurrentQuarter:         q.Label(),
			MaxLoansAllowed:        limit.MaxLoans,
			CurrentLoans:           len(items),
			BorrowingStatus:        status,
			PenaltyLevel:           limit.Level,
			PenaltyMessage:         limit.Message,
			QuarterlyPenaltyPoints: points,
			OverdueBooks:           overdueCount,
		},
	}, nil
}

// PenaltyHistoryItem is one penalty event with its display severity
type PenaltyHistoryItem struct {
	ID            uint      `json:"id"`
	LoanID        uint      `json:"loanId"`
	BookTitle     string    `json:"bookTitle,omitempty"`
	OverdueDays   int       `json:"overdueDays"`
	PenaltyPoints int       `json:"penaltyPoints"`
	PenaltyDate   time.Time `json:"penaltyDate"`
	Quarter       string    `json:"quarter"`
	Severity      string    `json:"severity"`
}

// PenaltyHistoryOutput is the payload of the penalty-history view
type PenaltyHistoryOutput struct {
	CurrentQuarter             string                      `json:"currentQuarter"`
	Events                     []*PenaltyHistoryItem       `json:"events"`
	QuarterlyBreakdown         []repositories.QuarterTotal `json:"quarterlyBreakdown"`
	CurrentQuarterPenaltyPoint int                         `json:"currentQuarterPenaltyPoints"`
}

// severityFor labels an overdue-day count for display
func severityFor(overdueDays int) string {
	switch {
	case overdueDays >= 10:
		return SeveritySevere
	case overdueDays >= 5:
		return SeverityModerate
	default:
		return SeverityMild
	}
}

// GetPenaltyHistory lists all penalty events for a user with a per-quarter
// breakdown
func (s *LoanService) GetPenaltyHistory(ctx context.Context, userID uint) (*PenaltyHistoryOutput, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	now := s.now()
	q := quarter.Of(now)

	events, err := s.penalties.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]*PenaltyHistoryItem, 0, len(events))
	for _, e := range events {
		item := &PenaltyHistoryItem{
			ID:            e.ID,
			LoanID:        e.LoanID,
			OverdueDays:   e.OverdueDays,
			PenaltyPoints: e.PenaltyPoints,
			PenaltyDate:   e.PenaltyDate,
			Quarter:       e.Quarter,
			Severity:      severityFor(e.OverdueDays),
		}
		if e.Loan != nil && e.Loan.Book != nil {
			item.BookTitle = e.Loan.Book.Title
		}
		items = append(items, item)
	}

	breakdown, err := s.penalties.BreakdownByQuarter(ctx, userID)
	if err != nil {
		return nil, err
	}

	points := user.PenaltyPoints()
	if points < 0 {
		points = 0
	}

	return &PenaltyHistoryOutput{
		CurrentQuarter:             q.Label(),
		Events:                     items,
		QuarterlyBreakdown:         breakdown,
		CurrentQuarterPenaltyPoint: points,
	}, nil
}

// AdminLoanItem is one loan in the admin view
type AdminLoanItem struct {
	ID            uint       `json:"id"`
	UserID        uint       `json:"userId"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	BookID        uint       `json:"bookId"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	BorrowDate    time.Time  `json:"borrowDate"`
	DueDate       time.Time  `json:"dueDate"`
	ReturnDate    *time.Time `json:"returnDate,omitempty"`
	Returned      bool       `json:"returned"`
	Quarter       string     `json:"quarter"`
	DaysRemaining int        `json:"daysRemaining"`
	IsOverdue     bool       `json:"isOverdue"`
}

// LoanStats aggregates loan counts for the admin view
type LoanStats struct {
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Overdue int64 `json:"overdue"`
}

// AllLoansInput filters the admin loan list
type AllLoansInput struct {
	Status string // "", "active", "returned", "overdue"
	Search string
}

// AllLoansOutput is the payload of the admin loan list
type AllLoansOutput struct {
	Loans []*AdminLoanItem `json:"loans"`
	Stats *LoanStats       `json:"stats"`
}

// GetAllLoans lists every loan with user and book details for admins
func (s *LoanService) GetAllLoans(ctx context.Context, input *AllLoansInput) (*AllLoansOutput, error) {
	now := s.now()

	loans, err := s.loans.ListAll(ctx, repositories.ListAllFilter{
		Status: input.Status,
		Search: input.Search,
		Now:    now,
	})
	if err != nil {
		return nil, err
	}

	items := make([]*AdminLoanItem, 0, len(loans))
	for _, loan := range loans {
		item := &AdminLoanItem{
			ID:            loan.ID,
			UserID:        loan.UserID,
			BookID:        loan.BookID,
			BorrowDate:    loan.BorrowDate,
			DueDate:       loan.DueDate,
			ReturnDate:    loan.ReturnDate,
			Returned:      loan.Returned,
			Quarter:       loan.Quarter,
			DaysRemaining: quarter.DaysRemaining(loan.DueDate, now),
			IsOverdue:     !loan.Returned && loan.DueDate.Before(now),
		}
		if loan.User != nil {
			item.Username = loan.User.Username
			item.Email = loan.User.Email
		}
		if loan.Book != nil {
			item.Title = loan.Book.Title
			item.Author = loan.Book.Author
		}
		items = append(items, item)
	}

	stats := &LoanStats{}
	if err := s.db.WithContext(ctx).Model(&models.Loan{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Loan{}).
		Where("returned = ?", false).Count(&stats.Active).Error; err != nil {
		return nil, err
	}
	overdue, err := s.loans.CountOverdueActive(ctx, now)
	if err != nil {
		return nil, err
	}
	stats.Overdue = overdue

	return &AllLoansOutput{Loans: items, Stats: stats}, nil
}
