package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/policy"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/jwt"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type loanTestEnv struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

func newLoanTestEnv(t *testing.T) *loanTestEnv {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") +
		"?_txlock=immediate&_busy_timeout=10000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	cfg := &config.Config{
		AppMode: "dev",
		JWT: config.JWTConfig{
			Secret:           "handler-test-secret",
			RefreshSecret:    "handler-test-refresh",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		},
	}

	loanService := services.NewLoanService(
		db,
		repositories.NewLoanRepository(db),
		repositories.NewPenaltyEventRepository(db),
		repositories.NewUserRepository(db),
		policy.NewEngine(),
	)
	h := NewLoanHandler(loanService)

	app := fiber.New()
	loans := app.Group("/api/v1/loans", middleware.AuthMiddleware(cfg))
	loans.Post("/borrow", h.Borrow)
	loans.Put("/return/:loanId", h.Return)
	loans.Get("/all", middleware.AdminOnly(), h.GetAllLoans)

	return &loanTestEnv{app: app, db: db, cfg: cfg}
}

func (e *loanTestEnv) createUser(t *testing.T, username, role string) *models.User {
	t.Helper()

	points := 0
	user := &models.User{
		Username:               username,
		Email:                  username + "@example.com",
		Password:               "not-a-real-hash",
		Role:                   role,
		QuarterlyPenaltyPoints: &points,
		IsActive:               true,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *loanTestEnv) createBook(t *testing.T, title string, quantity int) *models.Book {
	t.Helper()

	book := &models.Book{
		Title:    title,
		Author:   "Author",
		ISBN:     "isbn-" + title,
		Quantity: quantity,
	}
	require.NoError(t, e.db.Create(book).Error)
	return book
}

func (e *loanTestEnv) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()

	token, err := jwt.GenerateAccessToken(
		user.ID, user.Username, user.Role,
		e.cfg.JWT.Secret, e.cfg.JWT.AccessTokenMins,
	)
	require.NoError(t, err)
	return token
}

func (e *loanTestEnv) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, int(5*time.Second/time.Millisecond))
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) *response.Response {
	t.Helper()

	var out response.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return &out
}

func TestBorrowEndpoint(t *testing.T) {
	env := newLoanTestEnv(t)
	user := env.createUser(t, "reader", "user")
	book := env.createBook(t, "Borrowable", 1)
	token := env.tokenFor(t, user)

	t.Run("requires authentication", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/loans/borrow", "",
			fiber.Map{"userId": user.ID, "bookId": book.ID})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("success returns 201 with loan details", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/loans/borrow", token,
			fiber.Map{"userId": user.ID, "bookId": book.ID})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		body := decodeResponse(t, resp)
		assert.True(t, body.Success)

		data, ok := body.Data.(map[string]interface{})
		require.True(t, ok)
		assert.NotZero(t, data["loanId"])
		assert.Equal(t, float64(10), data["maxLoansAllowed"])
		assert.Equal(t, float64(1), data["currentLoans"])
		assert.Equal(t, float64(0), data["penaltyPoints"])
		assert.NotEmpty(t, data["dueDate"])
		assert.NotEmpty(t, data["quarter"])
	})

	t.Run("no copies left returns 400", func(t *testing.T) {
		other := env.createUser(t, "reader2", "user")
		resp := env.request(t, http.MethodPost, "/api/v1/loans/borrow", env.tokenFor(t, other),
			fiber.Map{"userId": other.ID, "bookId": book.ID})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("non-admin cannot borrow on behalf of another user", func(t *testing.T) {
		victim := env.createUser(t, "victim", "user")
		spare := env.createBook(t, "Spare Copy", 1)

		resp := env.request(t, http.MethodPost, "/api/v1/loans/borrow", token,
			fiber.Map{"userId": victim.ID, "bookId": spare.ID})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		// The loan lands on the caller, not the named user
		var loan models.Loan
		require.NoError(t, env.db.Where("book_id = ?", spare.ID).First(&loan).Error)
		assert.Equal(t, user.ID, loan.UserID)
	})
}

func TestReturnEndpoint(t *testing.T) {
	env := newLoanTestEnv(t)
	user := env.createUser(t, "returner", "user")
	book := env.createBook(t, "Returnable", 1)
	token := env.tokenFor(t, user)

	resp := env.request(t, http.MethodPost, "/api/v1/loans/borrow", token,
		fiber.Map{"userId": user.ID, "bookId": book.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := decodeResponse(t, resp).Data.(map[string]interface{})
	loanID := int(data["loanId"].(float64))

	t.Run("return succeeds", func(t *testing.T) {
		resp := env.request(t, http.MethodPut,
			fmt.Sprintf("/api/v1/loans/return/%d", loanID), token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeResponse(t, resp)
		result := body.Data.(map[string]interface{})
		assert.Equal(t, false, result["wasOverdue"])
		assert.Equal(t, float64(0), result["penaltyPoints"])
	})

	t.Run("second return fails with 400", func(t *testing.T) {
		resp := env.request(t, http.MethodPut,
			fmt.Sprintf("/api/v1/loans/return/%d", loanID), token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown loan returns 404", func(t *testing.T) {
		resp := env.request(t, http.MethodPut, "/api/v1/loans/return/99999", token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAdminGate(t *testing.T) {
	env := newLoanTestEnv(t)
	user := env.createUser(t, "plain", "user")
	admin := env.createUser(t, "boss", "admin")

	t.Run("user is forbidden", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/v1/loans/all", env.tokenFor(t, user), nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin passes", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/v1/loans/all", env.tokenFor(t, admin), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
