package models

import (
	"time"

	"gorm.io/gorm"
)

// ============================================================
// Auth & User Tables
// ============================================================

// User represents users table
type User struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	Username               string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email                  string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Department             string         `gorm:"size:100" json:"department"`
	Password               string         `gorm:"size:255;not null" json:"-"`
	Role                   string         `gorm:"size:20;default:'user'" json:"role"`
	QuarterlyPenaltyPoints *int           `gorm:"column:quarterly_penalty_points" json:"quarterly_penalty_points"`
	LastPenaltyQuarter     string         `gorm:"size:10" json:"last_penalty_quarter"`
	IsActive               bool           `gorm:"default:true" json:"is_active"`
	CreatedAt              time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// PenaltyPoints returns the stored points, or -1 when never initialized.
// The policy engine treats -1 as "derive from overdue loans".
func (u *User) PenaltyPoints() int {
	if u.QuarterlyPenaltyPoints == nil {
		return -1
	}
	return *u.QuarterlyPenaltyPoints
}

// UserResponse DTO
type UserResponse struct {
	ID                     uint      `json:"id"`
	Username               string    `json:"username"`
	Email                  string    `json:"email"`
	Department             string    `json:"department,omitempty"`
	Role                   string    `json:"role"`
	QuarterlyPenaltyPoints int       `json:"quarterly_penalty_points"`
	LastPenaltyQuarter     string    `json:"last_penalty_quarter,omitempty"`
	IsActive               bool      `json:"is_active"`
	CreatedAt              time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	points := 0
	if u.QuarterlyPenaltyPoints != nil {
		points = *u.QuarterlyPenaltyPoints
	}
	return &UserResponse{
		ID:                     u.ID,
		Username:               u.Username,
		Email:                  u.Email,
		Department:             u.Department,
		Role:                   u.Role,
		QuarterlyPenaltyPoints: points,
		LastPenaltyQuarter:     u.LastPenaltyQuarter,
		IsActive:               u.IsActive,
		CreatedAt:              u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Catalog
// ============================================================

// Book represents books table
type Book struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Title         string         `gorm:"size:255;not null;index" json:"title"`
	Author        string         `gorm:"size:255;not null;index" json:"author"`
	ISBN          string         `gorm:"size:20;uniqueIndex" json:"isbn"`
	Genre         string         `gorm:"size:100" json:"genre"`
	Quantity      int            `gorm:"not null;default:0" json:"quantity"`
	CoverImageURL string         `gorm:"size:500" json:"cover_image_url,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

// ============================================================
// Loans & Penalties
// ============================================================

// Loan represents loans table. Rows are created and mutated only by the
// loan service's transactional borrow/return operations.
type Loan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	BookID     uint       `gorm:"not null;index" json:"book_id"`
	BorrowDate time.Time  `gorm:"not null" json:"borrow_date"`
	DueDate    time.Time  `gorm:"not null;index" json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
	Returned   bool       `gorm:"not null;default:false;index" json:"returned"`
	Quarter    string     `gorm:"size:10;not null" json:"quarter"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

func (Loan) TableName() string {
	return "loans"
}

// PenaltyEvent represents penalty_events table (append-only)
type PenaltyEvent struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	LoanID        uint      `gorm:"not null;uniqueIndex" json:"loan_id"`
	OverdueDays   int       `gorm:"not null" json:"overdue_days"`
	PenaltyPoints int       `gorm:"not null" json:"penalty_points"`
	PenaltyDate   time.Time `gorm:"not null" json:"penalty_date"`
	Quarter       string    `gorm:"size:10;not null;index" json:"quarter"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Loan *Loan `gorm:"foreignKey:LoanID" json:"loan,omitempty"`
}

func (PenaltyEvent) TableName() string {
	return "penalty_events"
}

// ============================================================
// Messages (read-state for synthesized reminders)
// ============================================================

// Message types for the synthesized due-soon/overdue reminders
const (
	MessageTypeDueSoon = "due_soon"
	MessageTypeOverdue = "overdue"
)

// DismissedMessage marks a synthesized reminder as read. Reminders
// themselves are computed from loan state at read time and never stored.
type DismissedMessage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_dismissed_msg" json:"user_id"`
	LoanID      uint      `gorm:"not null;uniqueIndex:idx_dismissed_msg" json:"loan_id"`
	MessageType string    `gorm:"size:20;not null;uniqueIndex:idx_dismissed_msg" json:"message_type"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DismissedMessage) TableName() string {
	return "dismissed_messages"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Book{},
		&Loan{},
		&PenaltyEvent{},
		&DismissedMessage{},
	)
}
