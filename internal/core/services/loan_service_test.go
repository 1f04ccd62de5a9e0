package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/policy"
	"libraryhub/internal/pkg/quarter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testClock is a fixed instant safely inside Q2 2026: due dates and
// overdue windows stay within the same quarter across every scenario.
var testClock = time.Date(2026, time.May, 1, 12, 0, 0, 0, time.Local)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") +
		"?_txlock=immediate&_busy_timeout=10000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func newLoanService(t *testing.T, db *gorm.DB) *LoanService {
	t.Helper()

	svc := NewLoanService(
		db,
		repositories.NewLoanRepository(db),
		repositories.NewPenaltyEventRepository(db),
		repositories.NewUserRepository(db),
		policy.NewEngine(),
	)
	svc.SetClock(func() time.Time { return testClock })
	return svc
}

func intPtr(v int) *int { return &v }

func createUser(t *testing.T, db *gorm.DB, points *int) *models.User {
	t.Helper()

	user := &models.User{
		Username:               "member-" + t.Name(),
		Email:                  t.Name() + "@example.com",
		Password:               "not-a-real-hash",
		Role:                   "user",
		QuarterlyPenaltyPoints: points,
		IsActive:               true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createBook(t *testing.T, db *gorm.DB, title string, quantity int) *models.Book {
	t.Helper()

	book := &models.Book{
		Title:    title,
		Author:   "Test Author",
		ISBN:     "isbn-" + title + "-" + t.Name(),
		Quantity: quantity,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

func bookQuantity(t *testing.T, db *gorm.DB, bookID uint) int {
	t.Helper()

	var book models.Book
	require.NoError(t, db.First(&book, bookID).Error)
	return book.Quantity
}

func TestBorrow(t *testing.T) {
	ctx := context.Background()

	t.Run("success with clean record", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)
		user := createUser(t, db, intPtr(0))
		book := createBook(t, db, "Clean Code", 2)

		result, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
		require.NoError(t, err)

		assert.NotZero(t, result.LoanID)
		assert.Equal(t, 10, result.MaxLoansAllowed)
		assert.Equal(t, 1, result.CurrentLoans)
		assert.Equal(t, testClock.AddDate(0, 0, LoanPeriodDays), result.DueDate)
		assert.Equal(t, 0, result.PenaltyPoints)
		assert.Equal(t, "None", result.PenaltyLevel)
		assert.Equal(t, "Q2 2026", result.Quarter)

		assert.Equal(t, 1, bookQuantity(t, db, book.ID))
	})

	t.Run("user not found", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)
		book := createBook(t, db, "Orphan Borrow", 1)

		_, err := svc.Borrow(ctx, &BorrowInput{UserID: 999, BookID: book.ID})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("book not found", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)
		user := createUser(t, db, intPtr(0))

		_, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: 999})
		assert.ErrorIs(t, err, domain.ErrBookNotFound)
	})

	t.Run("suspended user is blocked before any other check", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)
		// 20 points, zero active loans: the count check would pass,
		// suspension must fire first
		user := createUser(t, db, intPtr(20))
		book := createBook(t, db, "Forbidden Fruit", 5)

		_, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
		assert.ErrorIs(t, err, domain.ErrBorrowingSuspended)

		assert.Equal(t, 5, bookQuantity(t, db, book.ID), "no mutation on rejection")
	})

	t.Run("loan limit reached under mild penalty", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)
		user := createUser(t, db, intPtr(5)) // limit 8

		for i := 0; i < 8; i++ {
			book := createBook(t, db, "Filler "+string(rune('A'+i)), 1)
			_, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
			require.NoError(t, err)
		}

		extra := createBook(t, db, "One Too Many", 1)
		_, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: extra.ID})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrLoanLimitReached)
		assert.Contains(t, err.Error(), "limit 8")
	})

	t.Run("duplicate active loan for same book", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)
		user := createUser(t, db, intPtr(0))
		book := createBook(t, db, "Twice Upon a Time", 3)

		_, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
		require.NoError(t, err)

		_, err = svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
		assert.ErrorIs(t, err, domain.ErrDuplicateLoan)
		assert.Equal(t, 2, bookQuantity(t, db, book.ID))
	})

	t.Run("no copies available", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)
		user := createUser(t, db, intPtr(0))
		book := createBook(t, db, "Out of Stock", 0)

		_, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
		assert.ErrorIs(t, err, domain.ErrBookNotAvailable)

		var loans int64
		require.NoError(t, db.Model(&models.Loan{}).Count(&loans).Error)
		assert.Zero(t, loans, "rejected borrow leaves no loan row")
	})

	t.Run("uninitialized points derived from overdue loans", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)
		user := createUser(t, db, nil)
		book := createBook(t, db, "Fresh Pick", 1)

		// Two overdue active loans borrowed earlier this quarter
		for i := 0; i < 2; i++ {
			overdueBook := createBook(t, db, "Late Book "+string(rune('A'+i)), 1)
			require.NoError(t, db.Create(&models.Loan{
				UserID:     user.ID,
				BookID:     overdueBook.ID,
				BorrowDate: testClock.AddDate(0, 0, -14),
				DueDate:    testClock.AddDate(0, 0, -7),
				Quarter:    quarter.LabelOf(testClock),
			}).Error)
		}

		result, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
		require.NoError(t, err)
		assert.Equal(t, 4, result.PenaltyPoints, "2 overdue loans x 2 points")
		assert.Equal(t, "None", result.PenaltyLevel)

		var stored models.User
		require.NoError(t, db.First(&stored, user.ID).Error)
		require.NotNil(t, stored.QuarterlyPenaltyPoints, "derived points persisted")
		assert.Equal(t, 4, *stored.QuarterlyPenaltyPoints)
	})
}

func TestReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("on-time return", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)
		user := createUser(t, db, intPtr(0))
		book := createBook(t, db, "Prompt Reader", 1)

		borrowed, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
		require.NoError(t, err)
		assert.Equal(t, 0, bookQuantity(t, db, book.ID))

		result, err := svc.Return(ctx, borrowed.LoanID)
		require.NoError(t, err)
		assert.False(t, result.WasOverdue)
		assert.Zero(t, result.OverdueDays)
		assert.Zero(t, result.PenaltyPoints)
		assert.Equal(t, "Q2 2026", result.Quarter)

		assert.Equal(t, 1, bookQuantity(t, db, book.ID), "quantity restored")

		var events int64
		require.NoError(t, db.Model(&models.PenaltyEvent{}).Count(&events).Error)
		assert.Zero(t, events, "no penalty event on time")
	})

	t.Run("overdue return accrues one point per day", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)
		user := createUser(t, db, intPtr(0))
		book := createBook(t, db, "Slow Reader", 1)

		borrowed, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
		require.NoError(t, err)

		// Due after 7 days; return 10 days after borrowing = 3 days late
		svc.SetClock(func() time.Time { return testClock.AddDate(0, 0, 10) })

		result, err := svc.Return(ctx, borrowed.LoanID)
		require.NoError(t, err)
		assert.True(t, result.WasOverdue)
		assert.Equal(t, 3, result.OverdueDays)
		assert.Equal(t, 3, result.PenaltyPoints)
		assert.Equal(t, "Q2 2026", result.Quarter)

		var stored models.User
		require.NoError(t, db.First(&stored, user.ID).Error)
		require.NotNil(t, stored.QuarterlyPenaltyPoints)
		assert.Equal(t, 3, *stored.QuarterlyPenaltyPoints)
		assert.Equal(t, "Q2 2026", stored.LastPenaltyQuarter)

		var events []models.PenaltyEvent
		require.NoError(t, db.Find(&events).Error)
		require.Len(t, events, 1)
		assert.Equal(t, borrowed.LoanID, events[0].LoanID)
		assert.Equal(t, 3, events[0].OverdueDays)
		assert.Equal(t, 3, events[0].PenaltyPoints)
		assert.Equal(t, "Q2 2026", events[0].Quarter)
	})

	t.Run("returning twice fails without state change", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)
		user := createUser(t, db, intPtr(0))
		book := createBook(t, db, "Boomerang", 1)

		borrowed, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
		require.NoError(t, err)

		_, err = svc.Return(ctx, borrowed.LoanID)
		require.NoError(t, err)

		_, err = svc.Return(ctx, borrowed.LoanID)
		assert.ErrorIs(t, err, domain.ErrLoanAlreadyReturned)
		assert.Equal(t, 1, bookQuantity(t, db, book.ID), "quantity not restored twice")
	})

	t.Run("unknown loan", func(t *testing.T) {
		db := openTestDB(t)
		svc := newLoanService(t, db)

		_, err := svc.Return(ctx, 12345)
		assert.ErrorIs(t, err, domain.ErrLoanNotFound)
	})
}

// TestPenaltyEscalation walks a user from a clean record to a reduced
// borrowing limit through a badly late return.
func TestPenaltyEscalation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newLoanService(t, db)
	user := createUser(t, db, intPtr(0))
	late := createBook(t, db, "The Forgotten Tome", 1)
	next := createBook(t, db, "Second Chances", 1)

	borrowed, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: late.ID})
	require.NoError(t, err)
	assert.Equal(t, 10, borrowed.MaxLoansAllowed)

	// Return 17 days after borrowing: 10 days past the 7-day period
	svc.SetClock(func() time.Time { return testClock.AddDate(0, 0, 17) })

	returned, err := svc.Return(ctx, borrowed.LoanID)
	require.NoError(t, err)
	assert.Equal(t, 10, returned.OverdueDays)
	assert.Equal(t, 10, returned.PenaltyPoints)

	// 10 points lands in the Moderate tier: limit drops to 6
	result, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: next.ID})
	require.NoError(t, err)
	assert.Equal(t, 6, result.MaxLoansAllowed)
	assert.Equal(t, "Moderate", result.PenaltyLevel)
	assert.Equal(t, 10, result.PenaltyPoints)

	loans, err := svc.GetUserLoans(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Can Borrow", loans.PenaltyInfo.BorrowingStatus)
	assert.Equal(t, 6, loans.PenaltyInfo.MaxLoansAllowed)
	assert.Equal(t, 1, loans.PenaltyInfo.CurrentLoans)
	assert.Equal(t, 10, loans.PenaltyInfo.QuarterlyPenaltyPoints)

	history, err := svc.GetPenaltyHistory(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history.Events, 1)
	assert.Equal(t, "Severe", history.Events[0].Severity)
	assert.Equal(t, 10, history.CurrentQuarterPenaltyPoint)
	require.Len(t, history.QuarterlyBreakdown, 1)
	assert.Equal(t, "Q2 2026", history.QuarterlyBreakdown[0].Quarter)
	assert.Equal(t, 10, history.QuarterlyBreakdown[0].TotalPoints)
}

func TestResetQuarterlyPenalties(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newLoanService(t, db)

	penalized := createUser(t, db, intPtr(12))
	clean := &models.User{
		Username: "clean-member",
		Email:    "clean@example.com",
		Password: "not-a-real-hash",
		Role:     "user",
		IsActive: true,
	}
	require.NoError(t, db.Create(clean).Error)

	affected, err := svc.ResetQuarterlyPenalties(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected, "never-initialized users are reset too")

	var stored models.User
	require.NoError(t, db.First(&stored, penalized.ID).Error)
	require.NotNil(t, stored.QuarterlyPenaltyPoints)
	assert.Zero(t, *stored.QuarterlyPenaltyPoints)

	var initialized models.User
	require.NoError(t, db.First(&initialized, clean.ID).Error)
	require.NotNil(t, initialized.QuarterlyPenaltyPoints, "reset initializes NULL points")
	assert.Zero(t, *initialized.QuarterlyPenaltyPoints)
}

func TestResetClearsDerivedPenaltyHistory(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newLoanService(t, db)
	user := createUser(t, db, nil)

	// Overdue active loans that would derive 20 points and suspend the user
	for i := 0; i < 10; i++ {
		overdueBook := createBook(t, db, "Forgotten "+string(rune('A'+i)), 1)
		require.NoError(t, db.Create(&models.Loan{
			UserID:     user.ID,
			BookID:     overdueBook.ID,
			BorrowDate: testClock.AddDate(0, 0, -14),
			DueDate:    testClock.AddDate(0, 0, -7),
			Quarter:    quarter.LabelOf(testClock),
		}).Error)
	}

	_, err := svc.ResetQuarterlyPenalties(ctx)
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	require.NotNil(t, stored.QuarterlyPenaltyPoints, "reset must not leave points derivable")
	assert.Zero(t, *stored.QuarterlyPenaltyPoints)

	// With points cleared the fallback never runs, so the overdue history
	// alone cannot suspend the user again. Borrowing is still bounded by
	// the active-loan limit, never by suspension.
	attempt := createBook(t, db, "Still Limited", 1)
	_, err = svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: attempt.ID})
	require.ErrorIs(t, err, domain.ErrLoanLimitReached)

	require.NoError(t, db.Model(&models.Loan{}).
		Where("user_id = ?", user.ID).
		Update("returned", true).Error)
	book := createBook(t, db, "Clean Slate", 1)
	result, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, result.PenaltyPoints)
	assert.Equal(t, "None", result.PenaltyLevel)
}

func TestDeleteLoan(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newLoanService(t, db)
	user := createUser(t, db, intPtr(0))
	book := createBook(t, db, "Disposable", 1)

	borrowed, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLoan(ctx, borrowed.LoanID))

	var count int64
	require.NoError(t, db.Model(&models.Loan{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, svc.DeleteLoan(ctx, borrowed.LoanID), domain.ErrLoanNotFound)
}

// TestBorrowLastCopyRace has two users compete for a single copy. The
// immediate write lock on the transaction serializes them; exactly one
// borrow succeeds and the loser sees the availability error.
func TestBorrowLastCopyRace(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newLoanService(t, db)
	book := createBook(t, db, "The Last Copy", 1)

	alice := createUser(t, db, intPtr(0))
	bob := &models.User{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "not-a-real-hash",
		Role:     "user",
		IsActive: true,
	}
	require.NoError(t, db.Create(bob).Error)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []uint{alice.ID, bob.ID} {
		wg.Add(1)
		go func(slot int, id uint) {
			defer wg.Done()
			_, errs[slot] = svc.Borrow(ctx, &BorrowInput{UserID: id, BookID: book.ID})
		}(i, userID)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			assert.ErrorIs(t, err, domain.ErrBookNotAvailable)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, bookQuantity(t, db, book.ID))

	var loans int64
	require.NoError(t, db.Model(&models.Loan{}).Count(&loans).Error)
	assert.Equal(t, int64(1), loans)
}

func TestGetAllLoans(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newLoanService(t, db)
	user := createUser(t, db, intPtr(0))

	active := createBook(t, db, "Still Out", 1)
	returned := createBook(t, db, "Back Home", 1)
	overdue := createBook(t, db, "Long Gone", 1)

	activeLoan, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: active.ID})
	require.NoError(t, err)
	_ = activeLoan

	returnedLoan, err := svc.Borrow(ctx, &BorrowInput{UserID: user.ID, BookID: returned.ID})
	require.NoError(t, err)
	_, err = svc.Return(ctx, returnedLoan.LoanID)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Loan{
		UserID:     user.ID,
		BookID:     overdue.ID,
		BorrowDate: testClock.AddDate(0, 0, -14),
		DueDate:    testClock.AddDate(0, 0, -7),
		Quarter:    quarter.LabelOf(testClock),
	}).Error)

	t.Run("no filter", func(t *testing.T) {
		out, err := svc.GetAllLoans(ctx, &AllLoansInput{})
		require.NoError(t, err)
		assert.Len(t, out.Loans, 3)
		assert.Equal(t, int64(3), out.Stats.Total)
		assert.Equal(t, int64(2), out.Stats.Active)
		assert.Equal(t, int64(1), out.Stats.Overdue)
	})

	t.Run("status filters", func(t *testing.T) {
		out, err := svc.GetAllLoans(ctx, &AllLoansInput{Status: "active"})
		require.NoError(t, err)
		assert.Len(t, out.Loans, 2)

		out, err = svc.GetAllLoans(ctx, &AllLoansInput{Status: "returned"})
		require.NoError(t, err)
		assert.Len(t, out.Loans, 1)
		assert.True(t, out.Loans[0].Returned)

		out, err = svc.GetAllLoans(ctx, &AllLoansInput{Status: "overdue"})
		require.NoError(t, err)
		require.Len(t, out.Loans, 1)
		assert.True(t, out.Loans[0].IsOverdue)
		assert.Equal(t, "Long Gone", out.Loans[0].Title)
	})

	t.Run("search by title", func(t *testing.T) {
		out, err := svc.GetAllLoans(ctx, &AllLoansInput{Search: "Back Home"})
		require.NoError(t, err)
		require.Len(t, out.Loans, 1)
		assert.Equal(t, "Back Home", out.Loans[0].Title)
	})
}

// TestGetAllLoansOrderingFollowsClock pins the ordering to the injected
// clock: with a clock far ahead of the database wall clock, a loan the
// wall clock would still consider current must sort as overdue.
func TestGetAllLoansOrderingFollowsClock(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newLoanService(t, db)
	user := createUser(t, db, intPtr(0))

	farFuture := time.Now().AddDate(100, 0, 0)
	svc.SetClock(func() time.Time { return farFuture })

	current := createBook(t, db, "Fresh Borrow", 1)
	late := createBook(t, db, "Slipped Past Due", 1)

	// The late loan is overdue only by the injected clock; both due dates
	// sit decades past the wall clock. The current loan's later borrow
	// date would win without the overdue tiebreak.
	require.NoError(t, db.Create(&models.Loan{
		UserID:     user.ID,
		BookID:     late.ID,
		BorrowDate: farFuture.AddDate(0, 0, -14),
		DueDate:    farFuture.AddDate(0, 0, -7),
		Quarter:    quarter.LabelOf(farFuture),
	}).Error)
	require.NoError(t, db.Create(&models.Loan{
		UserID:     user.ID,
		BookID:     current.ID,
		BorrowDate: farFuture.AddDate(0, 0, -1),
		DueDate:    farFuture.AddDate(0, 0, 6),
		Quarter:    quarter.LabelOf(farFuture),
	}).Error)

	out, err := svc.GetAllLoans(ctx, &AllLoansInput{})
	require.NoError(t, err)
	require.Len(t, out.Loans, 2)
	assert.Equal(t, "Slipped Past Due", out.Loans[0].Title)
	assert.True(t, out.Loans[0].IsOverdue)
	assert.Equal(t, "Fresh Borrow", out.Loans[1].Title)
	assert.False(t, out.Loans[1].IsOverdue)
}
