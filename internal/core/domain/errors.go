package domain

import "errors"

// Common domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternalServer     = errors.New("internal server error")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
)

// User errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidPassword   = errors.New("invalid password")
)

// Book errors
var (
	ErrBookNotFound     = errors.New("book not found")
	ErrBookNotAvailable = errors.New("book not available")
	ErrISBNTaken        = errors.New("a book with this ISBN already exists")
)

// Loan errors. The first three are policy violations: the borrow
// transaction is rolled back before any mutation.
var (
	ErrBorrowingSuspended  = errors.New("borrowing suspended due to accumulated penalty points")
	ErrLoanLimitReached    = errors.New("maximum number of borrowed books reached")
	ErrDuplicateLoan       = errors.New("user already has an active loan for this book")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrLoanAlreadyReturned = errors.New("loan has already been returned")
)
