package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// CronService runs scheduled jobs: the quarterly penalty reset on the
// first day of each quarter, a daily overdue audit log line, and a
// nightly refresh token cleanup.
type CronService struct {
	cron        *cron.Cron
	loanService *LoanService
	authService *AuthService
}

// NewCronService creates a new cron service
func NewCronService(loanService *LoanService, authService *AuthService) *CronService {
	return &CronService{
		cron:        cron.New(),
		loanService: loanService,
		authService: authService,
	}
}

// Start registers and launches all scheduled jobs
func (s *CronService) Start() {
	// Quarterly penalty reset: 00:00 on Jan 1, Apr 1, Jul 1, Oct 1.
	// Points are only ever reset here or by the admin endpoint.
	s.cron.AddFunc("0 0 1 1,4,7,10 *", s.resetQuarterlyPenalties)

	// Daily overdue audit at 08:30
	s.cron.AddFunc("30 8 * * *", s.auditOverdueLoans)

	// Nightly cleanup of expired refresh tokens at 03:00
	s.cron.AddFunc("0 3 * * *", s.cleanupExpiredTokens)

	s.cron.Start()
	log.Println("🚀 Cron service started")
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 Cron service stopped")
}

func (s *CronService) resetQuarterlyPenalties() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	affected, err := s.loanService.ResetQuarterlyPenalties(ctx)
	if err != nil {
		log.Printf("❌ Quarterly penalty reset failed: %v", err)
		return
	}
	log.Printf("✅ Quarterly penalty reset completed: %d users cleared", affected)
}

func (s *CronService) auditOverdueLoans() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.loanService.loans.CountOverdueActive(ctx, time.Now())
	if err != nil {
		log.Printf("❌ Overdue audit failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("⚠️ Overdue audit: %d active loan(s) past due", count)
	}
}

func (s *CronService) cleanupExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.authService.CleanupExpiredTokens(ctx); err != nil {
		log.Printf("❌ Refresh token cleanup failed: %v", err)
		return
	}
	log.Println("🧹 Expired refresh tokens cleaned up")
}
