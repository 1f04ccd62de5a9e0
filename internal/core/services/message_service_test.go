package services

import (
	"context"
	"testing"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/quarter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMessageService(t *testing.T, db *gorm.DB) *MessageService {
	t.Helper()

	svc := NewMessageService(db, repositories.NewLoanRepository(db))
	svc.SetClock(func() time.Time { return testClock })
	return svc
}

func createLoanDueIn(t *testing.T, db *gorm.DB, userID uint, title string, daysUntilDue int) *models.Loan {
	t.Helper()

	book := createBook(t, db, title, 1)
	loan := &models.Loan{
		UserID:     userID,
		BookID:     book.ID,
		BorrowDate: testClock.AddDate(0, 0, daysUntilDue-LoanPeriodDays),
		DueDate:    testClock.AddDate(0, 0, daysUntilDue),
		Quarter:    quarter.LabelOf(testClock),
	}
	require.NoError(t, db.Create(loan).Error)
	return loan
}

func TestGetUserMessages(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newMessageService(t, db)
	user := createUser(t, db, intPtr(0))

	overdueLoan := createLoanDueIn(t, db, user.ID, "Way Past Due", -3)
	dueSoonLoan := createLoanDueIn(t, db, user.ID, "Almost Due", 2)
	createLoanDueIn(t, db, user.ID, "Plenty of Time", 6)

	out, err := svc.GetUserMessages(ctx, user.ID)
	require.NoError(t, err)

	// Only the overdue and due-soon loans produce reminders, soonest first
	require.Len(t, out.Messages, 2)
	assert.Equal(t, 2, out.UnreadCount)

	overdueMsg := out.Messages[0]
	assert.Equal(t, models.MessageTypeOverdue, overdueMsg.Type)
	assert.Equal(t, overdueLoan.ID, overdueMsg.LoanID)
	assert.Contains(t, overdueMsg.Title, "Way Past Due")
	assert.Contains(t, overdueMsg.Body, "3 day(s) overdue")
	assert.True(t, overdueMsg.System)
	assert.False(t, overdueMsg.Read)

	dueSoonMsg := out.Messages[1]
	assert.Equal(t, models.MessageTypeDueSoon, dueSoonMsg.Type)
	assert.Equal(t, dueSoonLoan.ID, dueSoonMsg.LoanID)
	assert.Contains(t, dueSoonMsg.Title, "Almost Due")
	assert.False(t, dueSoonMsg.Read)
}

func TestGetUserMessages_NoLoans(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newMessageService(t, db)
	user := createUser(t, db, intPtr(0))

	out, err := svc.GetUserMessages(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, out.Messages)
	assert.Zero(t, out.UnreadCount)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newMessageService(t, db)
	user := createUser(t, db, intPtr(0))

	loan := createLoanDueIn(t, db, user.ID, "Unread Mail", -1)

	out, err := svc.GetUserMessages(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	messageID := out.Messages[0].ID

	require.NoError(t, svc.MarkRead(ctx, user.ID, messageID))

	t.Run("read state survives regeneration", func(t *testing.T) {
		out, err := svc.GetUserMessages(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, out.Messages, 1)
		assert.True(t, out.Messages[0].Read)
		assert.Zero(t, out.UnreadCount)
	})

	t.Run("marking twice is a no-op", func(t *testing.T) {
		require.NoError(t, svc.MarkRead(ctx, user.ID, messageID))

		var dismissals int64
		require.NoError(t, db.Model(&models.DismissedMessage{}).Count(&dismissals).Error)
		assert.Equal(t, int64(1), dismissals)
	})

	t.Run("dismissal is per type", func(t *testing.T) {
		// The due-soon reminder for the same loan is independent of
		// the dismissed overdue one
		require.NoError(t, svc.MarkRead(ctx, user.ID, "due_soon_"+messageID[len("overdue_"):]))

		var dismissals int64
		require.NoError(t, db.Model(&models.DismissedMessage{}).
			Where("loan_id = ?", loan.ID).
			Count(&dismissals).Error)
		assert.Equal(t, int64(2), dismissals)
	})
}

func TestMarkRead_InvalidID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newMessageService(t, db)

	for _, id := range []string{"", "overdue", "bogus_12", "overdue_abc", "12_overdue"} {
		err := svc.MarkRead(ctx, 1, id)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "id=%q", id)
	}
}

func TestGetUserNotifications(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newMessageService(t, db)
	user := createUser(t, db, intPtr(0))

	createLoanDueIn(t, db, user.ID, "Due Today", 0)

	messages, err := svc.GetUserNotifications(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.MessageTypeDueSoon, messages[0].Type)
	assert.Contains(t, messages[0].Title, "due today")
}
