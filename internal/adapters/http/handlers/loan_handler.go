package handlers

import (
	"errors"
	"strings"

	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/response"
	"libraryhub/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

// LoanHandler handles borrow/return and penalty endpoints
type LoanHandler struct {
	loanService *services.LoanService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// Borrow lends a book to a user
// @Summary Borrow a book
// @Description Create a loan after penalty and availability checks pass
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.BorrowInput true "Borrow request"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/borrow [post]
func (h *LoanHandler) Borrow(c *fiber.Ctx) error {
	var req services.BorrowInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	// Non-admins may only borrow for themselves
	if role, _ := c.Locals("role").(string); role != "admin" {
		if userID, ok := c.Locals("userID").(uint); ok {
			req.UserID = userID
		}
	}

	if err := validation.Struct(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}

	result, err := h.loanService.Borrow(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return response.NotFound(c, "User not found")
		case errors.Is(err, domain.ErrBookNotFound):
			return response.NotFound(c, "Book not found")
		case errors.Is(err, domain.ErrBorrowingSuspended),
			errors.Is(err, domain.ErrLoanLimitReached),
			errors.Is(err, domain.ErrDuplicateLoan),
			errors.Is(err, domain.ErrBookNotAvailable):
			return response.BadRequest(c, err.Error())
		default:
			return response.InternalServerError(c, "Failed to borrow book")
		}
	}

	return response.Created(c, "Book borrowed successfully", result)
}

// Return takes a borrowed book back
// @Summary Return a book
// @Description Mark a loan returned, recording penalties when overdue
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/return/{loanId} [put]
func (h *LoanHandler) Return(c *fiber.Ctx) error {
	loanID, err := c.ParamsInt("loanId")
	if err != nil || loanID <= 0 {
		return response.BadRequest(c, "Invalid loan ID")
	}

	result, err := h.loanService.Return(c.Context(), uint(loanID))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLoanNotFound):
			return response.NotFound(c, "Loan not found")
		case errors.Is(err, domain.ErrLoanAlreadyReturned):
			return response.BadRequest(c, "Loan has already been returned")
		default:
			return response.InternalServerError(c, "Failed to return book")
		}
	}

	return response.Success(c, "Book returned successfully", result)
}

// GetUserLoans lists a user's active loans with penalty info
// @Summary Get user loans
// @Description List a user's active loans and current borrowing standing
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/user/{userId} [get]
func (h *LoanHandler) GetUserLoans(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return response.BadRequest(c, "Invalid user ID")
	}

	result, err := h.loanService.GetUserLoans(c.Context(), uint(userID))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to retrieve loans")
	}

	return response.Success(c, "Loans retrieved successfully", result)
}

// GetPenaltyHistory lists a user's penalty events
// @Summary Get penalty history
// @Description List penalty events with a per-quarter breakdown
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/penalties/{userId} [get]
func (h *LoanHandler) GetPenaltyHistory(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return response.BadRequest(c, "Invalid user ID")
	}

	result, err := h.loanService.GetPenaltyHistory(c.Context(), uint(userID))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to retrieve penalty history")
	}

	return response.Success(c, "Penalty history retrieved successfully", result)
}

// GetAllLoans lists every loan for admins
// @Summary Get all loans
// @Description List all loans with user and book details, filter by status or search term
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter: active, returned or overdue"
// @Param search query string false "Match username, book title or author"
// @Success 200 {object} response.Response
// @Router /loans/all [get]
func (h *LoanHandler) GetAllLoans(c *fiber.Ctx) error {
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	switch status {
	case "", "active", "returned", "overdue":
	default:
		return response.BadRequest(c, "Invalid status filter")
	}

	input := &services.AllLoansInput{
		Status: status,
		Search: strings.TrimSpace(c.Query("search")),
	}

	result, err := h.loanService.GetAllLoans(c.Context(), input)
	if err != nil {
		return response.InternalServerError(c, "Failed to retrieve loans")
	}

	return response.Success(c, "Loans retrieved successfully", fiber.Map{
		"loans":  result.Loans,
		"stats":  result.Stats,
		"status": status,
		"search": input.Search,
	})
}

// ResetPenalties zeroes all penalty points (admin)
// @Summary Reset quarterly penalties
// @Description Zero every user's penalty points at quarter rollover
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /loans/reset-penalties [post]
func (h *LoanHandler) ResetPenalties(c *fiber.Ctx) error {
	affected, err := h.loanService.ResetQuarterlyPenalties(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to reset penalties")
	}

	return response.Success(c, "Quarterly penalties reset successfully", fiber.Map{
		"usersAffected": affected,
	})
}

// DeleteLoan hard-deletes a loan record (admin)
// @Summary Delete loan
// @Description Remove a loan record without touching inventory
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{loanId} [delete]
func (h *LoanHandler) DeleteLoan(c *fiber.Ctx) error {
	loanID, err := c.ParamsInt("loanId")
	if err != nil || loanID <= 0 {
		return response.BadRequest(c, "Invalid loan ID")
	}

	if err := h.loanService.DeleteLoan(c.Context(), uint(loanID)); err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return response.NotFound(c, "Loan not found")
		}
		return response.InternalServerError(c, "Failed to delete loan")
	}

	return response.Success(c, "Loan deleted successfully", nil)
}
