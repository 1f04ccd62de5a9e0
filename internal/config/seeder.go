package config

import (
	"log"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/pkg/password"

	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedAdminUser(); err != nil {
		log.Printf("⚠️ Admin seeder skipped: %v", err)
	}

	if err := s.seedStarterCatalog(); err != nil {
		log.Printf("⚠️ Catalog seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedAdminUser seeds default admin user
// This is for development/testing only
// In production, create admin through secure process
func (s *Seeder) seedAdminUser() error {
	var count int64
	s.db.Model(&models.User{}).Where("role = ?", "admin").Count(&count)
	if count > 0 {
		return nil // Admin already exists
	}

	hashedPassword, err := password.Hash("admin123456")
	if err != nil {
		return err
	}

	admin := &models.User{
		Username:   "admin",
		Email:      "admin@libraryhub.local",
		Department: "Library Services",
		Password:   hashedPassword,
		Role:       "admin",
		IsActive:   true,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Admin user created: %s", admin.Username)
	return nil
}

// seedStarterCatalog seeds a handful of books so a fresh install
// has something to borrow
func (s *Seeder) seedStarterCatalog() error {
	var count int64
	s.db.Model(&models.Book{}).Count(&count)
	if count > 0 {
		return nil // Catalog already populated
	}

	books := []models.Book{
		{Title: "The Go Programming Language", Author: "Alan A. A. Donovan", ISBN: "9780134190440", Genre: "Technology", Quantity: 3},
		{Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", ISBN: "9781449373320", Genre: "Technology", Quantity: 2},
		{Title: "Clean Architecture", Author: "Robert C. Martin", ISBN: "9780134494166", Genre: "Technology", Quantity: 2},
		{Title: "The Pragmatic Programmer", Author: "Andrew Hunt", ISBN: "9780135957059", Genre: "Technology", Quantity: 4},
		{Title: "Thinking, Fast and Slow", Author: "Daniel Kahneman", ISBN: "9780374533557", Genre: "Psychology", Quantity: 2},
	}

	if err := s.db.Create(&books).Error; err != nil {
		return err
	}

	log.Printf("✅ Starter catalog created: %d books", len(books))
	return nil
}
