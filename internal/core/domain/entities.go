package domain

import "time"

// Role represents user role in the system
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a library member in the domain layer
type User struct {
	ID                     uint
	Username               string
	Email                  string
	Department             string
	Password               string // Hashed
	Role                   Role
	QuarterlyPenaltyPoints *int // nil until first derived or accrued
	LastPenaltyQuarter     string
	IsActive               bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Book represents a catalog entry. Quantity is the number of copies
// currently on the shelf and is the single source of truth for availability.
type Book struct {
	ID            uint
	Title         string
	Author        string
	ISBN          string
	Genre         string
	Quantity      int
	CoverImageURL string
}

// Loan represents one borrow transaction
type Loan struct {
	ID         uint
	UserID     uint
	BookID     uint
	BorrowDate time.Time
	DueDate    time.Time
	ReturnDate *time.Time
	Returned   bool
	Quarter    string // label active at borrow time, e.g. "Q3 2026"
}

// PenaltyEvent is one append-only record of points applied on a late return
type PenaltyEvent struct {
	ID            uint
	UserID        uint
	LoanID        uint
	OverdueDays   int
	PenaltyPoints int
	PenaltyDate   time.Time
	Quarter       string // label active at return time
}

// RefreshToken represents a refresh token in the domain
type RefreshToken struct {
	ID        uint
	UserID    uint
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
