package services

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// CronService manages scheduled background jobs
type CronService struct {
	cron         *cron.Cron
	sweepSpec    string
	quoteExpSvc  *QuoteExpirationService
	auditSvc     *AuditService
	rateLimitSvc *RateLimitService
}

// NewCronService creates a new CronService
func NewCronService(sweepSpec string, quoteExpSvc *QuoteExpirationService, auditSvc *AuditService, rateLimitSvc *RateLimitService) *CronService {
	// Seconds precision so the quote sweep can run sub-minute in dev
	c := cron.New(cron.WithSeconds())

	return &CronService{
		cron:         c,
		sweepSpec:    sweepSpec,
		quoteExpSvc:  quoteExpSvc,
		auditSvc:     auditSvc,
		rateLimitSvc: rateLimitSvc,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	log.Println("Starting cron service...")

	// Job 1: Sweep stale quotes (default every 5 minutes)
	// Cron format: second minute hour day month weekday
	_, err := s.cron.AddFunc(s.sweepSpec, s.sweepQuotesJob)
	if err != nil {
		return fmt.Errorf("failed to schedule quote sweep job: %w", err)
	}
	log.Printf("✓ Scheduled: Quote sweep (%s)\n", s.sweepSpec)

	// Job 2: Purge old expired quotes daily at 3 AM
	_, err = s.cron.AddFunc("0 0 3 * * *", s.purgeQuotesJob)
	if err != nil {
		return fmt.Errorf("failed to schedule quote purge job: %w", err)
	}
	log.Println("✓ Scheduled: Purge old quotes (Daily at 3:00 AM)")

	// Job 3: Cleanup old audit logs weekly on Sunday at 4 AM
	_, err = s.cron.AddFunc("0 0 4 * * 0", s.cleanupAuditLogsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule audit cleanup job: %w", err)
	}
	log.Println("✓ Scheduled: Cleanup audit logs (Sundays at 4:00 AM)")

	// Job 4: Cleanup expired rate limit records hourly
	_, err = s.cron.AddFunc("0 30 * * * *", s.cleanupRateLimitsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule rate limit cleanup job: %w", err)
	}
	log.Println("✓ Scheduled: Cleanup rate limits (Hourly at :30)")

	s.cron.Start()
	log.Println("✓ Cron service started successfully")

	return nil
}

// Stop stops all cron jobs
func (s *CronService) Stop() {
	log.Println("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("✓ Cron service stopped")
}

// sweepQuotesJob flips stale active quotes to expired
func (s *CronService) sweepQuotesJob() {
	startTime := time.Now()

	expired, err := s.quoteExpSvc.SweepExpired()
	if err != nil {
		log.Printf("[CRON ERROR] Failed to sweep quotes: %v\n", err)
		return
	}

	if expired > 0 {
		log.Printf("[CRON] ✓ Expired %d quotes in %v\n", expired, time.Since(startTime))
	}
}

// purgeQuotesJob deletes expired quotes past the retention window
func (s *CronService) purgeQuotesJob() {
	log.Println("[CRON] Starting quote purge job...")
	startTime := time.Now()

	purged, err := s.quoteExpSvc.PurgeOld()
	if err != nil {
		log.Printf("[CRON ERROR] Failed to purge quotes: %v\n", err)
		return
	}

	log.Printf("[CRON] ✓ Purged %d quotes in %v\n", purged, time.Since(startTime))
}

// cleanupAuditLogsJob removes audit entries older than 180 days
func (s *CronService) cleanupAuditLogsJob() {
	log.Println("[CRON] Starting audit log cleanup job...")
	startTime := time.Now()

	removed, err := s.auditSvc.CleanupOldAuditLogs(180 * 24 * time.Hour)
	if err != nil {
		log.Printf("[CRON ERROR] Failed to cleanup audit logs: %v\n", err)
		return
	}

	log.Printf("[CRON] ✓ Removed %d audit entries in %v\n", removed, time.Since(startTime))
}

// cleanupRateLimitsJob removes rate limit records past every window
func (s *CronService) cleanupRateLimitsJob() {
	removed, err := s.rateLimitSvc.CleanupExpiredRateLimits()
	if err != nil {
		log.Printf("[CRON ERROR] Failed to cleanup rate limits: %v\n", err)
		return
	}

	if removed > 0 {
		log.Printf("[CRON] ✓ Removed %d rate limit records\n", removed)
	}
}

// RunQuoteSweepNow runs the quote sweep immediately (for testing)
func (s *CronService) RunQuoteSweepNow() error {
	log.Println("[MANUAL] Running quote sweep now...")
	s.sweepQuotesJob()
	return nil
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
