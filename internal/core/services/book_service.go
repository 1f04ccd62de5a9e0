package services

import (
	"context"
	"errors"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"

	"gorm.io/gorm"
)

// BookService handles catalog business logic
type BookService struct {
	books *repositories.BookRepository
}

// NewBookService creates a new book service
func NewBookService(books *repositories.BookRepository) *BookService {
	return &BookService{books: books}
}

// BookInput represents create/update book input
type BookInput struct {
	Title         string `json:"title" validate:"required,max=255"`
	Author        string `json:"author" validate:"required,max=255"`
	ISBN          string `json:"isbn" validate:"required,max=20"`
	Genre         string `json:"genre,omitempty" validate:"max=100"`
	Quantity      int    `json:"quantity" validate:"gte=0"`
	CoverImageURL string `json:"cover_image_url,omitempty" validate:"max=500"`
}

// Create adds a new book to the catalog
func (s *BookService) Create(ctx context.Context, input *BookInput) (*models.Book, error) {
	taken, err := s.books.ExistsByISBN(ctx, input.ISBN)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrISBNTaken
	}

	book := &models.Book{
		Title:         input.Title,
		Author:        input.Author,
		ISBN:          input.ISBN,
		Genre:         input.Genre,
		Quantity:      input.Quantity,
		CoverImageURL: input.CoverImageURL,
	}
	if err := s.books.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// GetByID gets a book by ID
func (s *BookService) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// List lists books with pagination
func (s *BookService) List(ctx context.Context, offset, limit int) ([]*models.Book, int64, error) {
	return s.books.List(ctx, offset, limit)
}

// Search finds books by title or author
func (s *BookService) Search(ctx context.Context, term string, limit int) ([]*models.Book, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return s.books.Search(ctx, term, limit)
}

// Update updates a book's catalog fields. Quantity set here is the new
// shelf count; loan activity adjusts it independently.
func (s *BookService) Update(ctx context.Context, id uint, input *BookInput) (*models.Book, error) {
	book, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.ISBN != book.ISBN {
		taken, err := s.books.ExistsByISBN(ctx, input.ISBN)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.ErrISBNTaken
		}
	}

	book.Title = input.Title
	book.Author = input.Author
	book.ISBN = input.ISBN
	book.Genre = input.Genre
	book.Quantity = input.Quantity
	book.CoverImageURL = input.CoverImageURL

	if err := s.books.Update(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// Delete removes a book from the catalog
func (s *BookService) Delete(ctx context.Context, id uint) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.books.Delete(ctx, id)
}
