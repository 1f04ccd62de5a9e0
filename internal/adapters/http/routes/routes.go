package routes

import (
	"libraryhub/internal/adapters/http/handlers"
	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/policy"
	"libraryhub/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application. The loan and auth
// services are returned so the caller can hand them to the scheduler.
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) (*services.LoanService, *services.AuthService) {
	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	penaltyRepo := repositories.NewPenaltyEventRepository(db)

	// Initialize services
	authService := services.NewAuthService(userRepo, refreshTokenRepo, cfg)
	userService := services.NewUserService(userRepo)
	bookService := services.NewBookService(bookRepo)
	loanService := services.NewLoanService(db, loanRepo, penaltyRepo, userRepo, policy.NewEngine())
	messageService := services.NewMessageService(db, loanRepo)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	bookHandler := handlers.NewBookHandler(bookService)
	loanHandler := handlers.NewLoanHandler(loanService)
	messageHandler := handlers.NewMessageHandler(messageService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	setupAuthRoutes(apiV1.Group("/auth"), authHandler, cfg)
	setupBookRoutes(apiV1.Group("/books"), bookHandler, cfg)
	setupUserRoutes(apiV1.Group("/users"), userHandler, cfg)
	setupLoanRoutes(apiV1.Group("/loans"), loanHandler, cfg)
	setupMessageRoutes(apiV1, messageHandler, cfg)

	return loanService, authService
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, h *handlers.AuthHandler, cfg *config.Config) {
	// Public routes with stricter rate limiting
	router.Post("/register", middleware.AuthRateLimiter(), h.Register)
	router.Post("/login", middleware.AuthRateLimiter(), h.Login)
	router.Post("/refresh", h.RefreshToken)
	router.Post("/logout", h.Logout)

	// Protected routes
	router.Post("/logout-all", middleware.AuthMiddleware(cfg), h.LogoutAll)
	router.Get("/me", middleware.AuthMiddleware(cfg), h.Me)
}

// setupBookRoutes configures catalog routes.
// Browsing is public; mutations are admin only.
func setupBookRoutes(router fiber.Router, h *handlers.BookHandler, cfg *config.Config) {
	router.Get("/", h.List)
	router.Get("/search/:term", h.Search)
	router.Get("/:id", h.GetByID)

	router.Post("/", middleware.AuthMiddleware(cfg), middleware.AdminOnly(), h.Create)
	router.Put("/:id", middleware.AuthMiddleware(cfg), middleware.AdminOnly(), h.Update)
	router.Delete("/:id", middleware.AuthMiddleware(cfg), middleware.AdminOnly(), h.Delete)
}

// setupUserRoutes configures user management routes (admin only)
func setupUserRoutes(router fiber.Router, h *handlers.UserHandler, cfg *config.Config) {
	router.Use(middleware.AuthMiddleware(cfg), middleware.AdminOnly())

	router.Get("/", h.List)
	router.Get("/:id", h.GetByID)
	router.Post("/", h.Create)
	router.Put("/:id", h.Update)
	router.Delete("/:id", h.Delete)
}

// setupLoanRoutes configures borrow/return and penalty routes
func setupLoanRoutes(router fiber.Router, h *handlers.LoanHandler, cfg *config.Config) {
	router.Use(middleware.AuthMiddleware(cfg))

	router.Post("/borrow", h.Borrow)
	router.Put("/return/:loanId", h.Return)
	router.Get("/user/:userId", middleware.SelfOrAdmin("userId"), h.GetUserLoans)
	router.Get("/penalties/:userId", middleware.SelfOrAdmin("userId"), h.GetPenaltyHistory)

	// Admin only
	router.Get("/all", middleware.AdminOnly(), h.GetAllLoans)
	router.Post("/reset-penalties", middleware.AdminOnly(), middleware.StrictRateLimiter(), h.ResetPenalties)
	router.Delete("/:loanId", middleware.AdminOnly(), middleware.StrictRateLimiter(), h.DeleteLoan)
}

// setupMessageRoutes configures reminder message routes
func setupMessageRoutes(router fiber.Router, h *handlers.MessageHandler, cfg *config.Config) {
	messages := router.Group("/messages")
	messages.Use(middleware.AuthMiddleware(cfg))
	messages.Get("/:userId", middleware.SelfOrAdmin("userId"), h.GetUserMessages)
	messages.Put("/:userId/read/:messageId", middleware.SelfOrAdmin("userId"), h.MarkRead)

	notifications := router.Group("/notifications")
	notifications.Use(middleware.AuthMiddleware(cfg))
	notifications.Get("/:userId", middleware.SelfOrAdmin("userId"), h.GetUserNotifications)
}
