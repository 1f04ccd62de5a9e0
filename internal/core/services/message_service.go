package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/quarter"

	"gorm.io/gorm"
)

// dueSoonWindowDays defines how close to the due date a loan must be
// before a due-soon reminder appears
const dueSoonWindowDays = 2

// Message is a reminder synthesized from loan state at read time. Nothing
// is persisted per message; only dismissals are stored, keyed by
// (user, loan, type).
type Message struct {
	ID        string    `json:"id"` // synthetic: "<type>_<loanId>"
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"message"`
	LoanID    uint      `json:"loanId"`
	System    bool      `json:"system"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageService synthesizes due-soon and overdue reminders from active
// loans. There is no stored message stream.
type MessageService struct {
	db    *gorm.DB
	loans *repositories.LoanRepository
	now   func() time.Time
}

// NewMessageService creates a new message service
func NewMessageService(db *gorm.DB, loans *repositories.LoanRepository) *MessageService {
	return &MessageService{db: db, loans: loans, now: time.Now}
}

// SetClock overrides the time source (tests)
func (s *MessageService) SetClock(now func() time.Time) {
	s.now = now
}

// MessagesOutput is the payload of the messages view
type MessagesOutput struct {
	Messages    []*Message `json:"messages"`
	UnreadCount int        `json:"unreadCount"`
}

// GetUserMessages lists a user's reminders with read-state from the
// dismissed set
func (s *MessageService) GetUserMessages(ctx context.Context, userID uint) (*MessagesOutput, error) {
	messages, err := s.buildReminders(ctx, userID)
	if err != nil {
		return nil, err
	}

	var dismissed []models.DismissedMessage
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&dismissed).Error; err != nil {
		return nil, err
	}

	read := make(map[string]bool, len(dismissed))
	for _, d := range dismissed {
		read[fmt.Sprintf("%s_%d", d.MessageType, d.LoanID)] = true
	}

	unread := 0
	for _, m := range messages {
		m.Read = read[m.ID]
		if !m.Read {
			unread++
		}
	}

	return &MessagesOutput{Messages: messages, UnreadCount: unread}, nil
}

// GetUserNotifications lists a user's reminders without read-state
func (s *MessageService) GetUserNotifications(ctx context.Context, userID uint) ([]*Message, error) {
	return s.buildReminders(ctx, userID)
}

// MarkRead records a reminder as read. Idempotent: marking twice is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, userID uint, messageID string) error {
	msgType, loanID, err := parseMessageID(messageID)
	if err != nil {
		return err
	}

	dismissal := models.DismissedMessage{
		UserID:      userID,
		LoanID:      loanID,
		MessageType: msgType,
	}
	return s.db.WithContext(ctx).
		Where(&dismissal).
		FirstOrCreate(&dismissal).Error
}

// buildReminders synthesizes due-soon and overdue messages from the user's
// active loans, soonest due date first
func (s *MessageService) buildReminders(ctx context.Context, userID uint) ([]*Message, error) {
	now := s.now()

	loans, err := s.loans.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	messages := make([]*Message, 0, len(loans))
	for _, loan := range loans {
		title := ""
		if loan.Book != nil {
			title = loan.Book.Title
		}

		if loan.DueDate.Before(now) {
			days := quarter.OverdueDays(loan.DueDate, now)
			messages = append(messages, &Message{
				ID:        fmt.Sprintf("%s_%d", models.MessageTypeOverdue, loan.ID),
				Type:      models.MessageTypeOverdue,
				Title:     fmt.Sprintf("%q is overdue", title),
				Body:      fmt.Sprintf("This book is %d day(s) overdue. Please return it as soon as possible.", days),
				LoanID:    loan.ID,
				System:    true,
				CreatedAt: now,
			})
			continue
		}

		remaining := quarter.DaysRemaining(loan.DueDate, now)
		if remaining >= 0 && remaining <= dueSoonWindowDays {
			due := "today"
			if remaining > 0 {
				due = fmt.Sprintf("in %d day(s)", remaining)
			}
			messages = append(messages, &Message{
				ID:        fmt.Sprintf("%s_%d", models.MessageTypeDueSoon, loan.ID),
				Type:      models.MessageTypeDueSoon,
				Title:     fmt.Sprintf("%q is due %s", title, due),
				Body:      "Please return or renew the book to avoid overdue penalties.",
				LoanID:    loan.ID,
				System:    true,
				CreatedAt: now,
			})
		}
	}

	return messages, nil
}

// parseMessageID splits a synthetic message id into its type and loan id
func parseMessageID(id string) (string, uint, error) {
	idx := strings.LastIndex(id, "_")
	if idx < 0 {
		return "", 0, domain.ErrInvalidInput
	}

	msgType := id[:idx]
	if msgType != models.MessageTypeDueSoon && msgType != models.MessageTypeOverdue {
		return "", 0, domain.ErrInvalidInput
	}

	loanID, err := strconv.ParseUint(id[idx+1:], 10, 32)
	if err != nil {
		return "", 0, domain.ErrInvalidInput
	}
	return msgType, uint(loanID), nil
}
