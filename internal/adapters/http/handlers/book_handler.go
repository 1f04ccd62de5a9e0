package handlers

import (
	"errors"
	"strings"

	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/response"
	"libraryhub/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

// BookHandler handles catalog endpoints
type BookHandler struct {
	bookService *services.BookService
}

// NewBookHandler creates a new book handler
func NewBookHandler(bookService *services.BookService) *BookHandler {
	return &BookHandler{bookService: bookService}
}

// List returns the catalog with pagination
// @Summary List books
// @Description List all books in the catalog
// @Tags Books
// @Accept json
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /books [get]
func (h *BookHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	books, total, err := h.bookService.List(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list books")
	}

	// Availability changes on every borrow/return; never serve stale copies
	c.Set("Cache-Control", "no-store")

	return response.Success(c, "Books retrieved successfully", fiber.Map{
		"books":      books,
		"pagination": pagination.GetMeta(params, total),
	})
}

// Search finds books by title or author
// @Summary Search books
// @Description Search books by title or author substring
// @Tags Books
// @Accept json
// @Produce json
// @Param term path string true "Search term"
// @Success 200 {object} response.Response
// @Router /books/search/{term} [get]
func (h *BookHandler) Search(c *fiber.Ctx) error {
	term := strings.TrimSpace(c.Params("term"))
	if term == "" {
		return response.BadRequest(c, "Search term is required")
	}

	books, err := h.bookService.Search(c.Context(), term, 50)
	if err != nil {
		return response.InternalServerError(c, "Failed to search books")
	}

	c.Set("Cache-Control", "no-store")

	return response.Success(c, "Books retrieved successfully", fiber.Map{
		"books": books,
	})
}

// GetByID returns one book
// @Summary Get book
// @Description Get a single book by ID
// @Tags Books
// @Accept json
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [get]
func (h *BookHandler) GetByID(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid book ID")
	}

	book, err := h.bookService.GetByID(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			return response.NotFound(c, "Book not found")
		}
		return response.InternalServerError(c, "Failed to retrieve book")
	}

	c.Set("Cache-Control", "no-store")

	return response.Success(c, "Book retrieved successfully", fiber.Map{
		"book": book,
	})
}

// Create adds a book to the catalog (admin)
// @Summary Create book
// @Description Add a new book to the catalog
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.BookInput true "Book data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /books [post]
func (h *BookHandler) Create(c *fiber.Ctx) error {
	var req services.BookInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := validation.Struct(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}

	book, err := h.bookService.Create(c.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrISBNTaken) {
			return response.Conflict(c, "A book with this ISBN already exists")
		}
		return response.InternalServerError(c, "Failed to create book")
	}

	return response.Created(c, "Book created successfully", fiber.Map{
		"book": book,
	})
}

// Update modifies a book (admin)
// @Summary Update book
// @Description Update an existing book
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param body body services.BookInput true "Book data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [put]
func (h *BookHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid book ID")
	}

	var req services.BookInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := validation.Struct(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}

	book, err := h.bookService.Update(c.Context(), uint(id), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookNotFound):
			return response.NotFound(c, "Book not found")
		case errors.Is(err, domain.ErrISBNTaken):
			return response.Conflict(c, "A book with this ISBN already exists")
		default:
			return response.InternalServerError(c, "Failed to update book")
		}
	}

	return response.Success(c, "Book updated successfully", fiber.Map{
		"book": book,
	})
}

// Delete removes a book from the catalog (admin)
// @Summary Delete book
// @Description Remove a book from the catalog
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [delete]
func (h *BookHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid book ID")
	}

	if err := h.bookService.Delete(c.Context(), uint(id)); err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			return response.NotFound(c, "Book not found")
		}
		return response.InternalServerError(c, "Failed to delete book")
	}

	return response.Success(c, "Book deleted successfully", nil)
}
