package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"go_trading_automation/repository"
	"go_trading_automation/services/execarchive"
	"go_trading_automation/services/orchestrator"
	"go_trading_automation/services/signals"
)

// Scheduler manages system-level background jobs: crash reconciliation,
// signal expiry, and next-execution refresh. Tenant task dispatch is NOT
// handled here; that belongs to the per-tenant workers and unified loops.
type Scheduler struct {
	cron       *gocron.Scheduler
	manager    *orchestrator.Manager
	lifecycle  *signals.Lifecycle
	statuses   *repository.StatusRepository
	executions *repository.ExecutionRepository
	archive    *execarchive.Archive
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	manager *orchestrator.Manager,
	lifecycle *signals.Lifecycle,
	statuses *repository.StatusRepository,
	executions *repository.ExecutionRepository,
	archive *execarchive.Archive,
) *Scheduler {
	return &Scheduler{
		cron:       gocron.NewScheduler(time.Local),
		manager:    manager,
		lifecycle:  lifecycle,
		statuses:   statuses,
		executions: executions,
		archive:    archive,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting system scheduler...")

	// Reconcile dead task workers every minute.
	s.cron.Every(1).Minute().Do(func() {
		s.sweepDeadWorkers()
	})

	// Refresh stored next-execution times every 5 minutes.
	s.cron.Every(5).Minutes().Do(func() {
		s.refreshNextExecutions()
	})

	// Expire yesterday's signals shortly after midnight.
	s.cron.Every(1).Day().At("00:05").Do(func() {
		s.expireStaleSignals()
	})

	// Archive yesterday's execution records off the hot path.
	s.cron.Every(1).Day().At("00:30").Do(func() {
		s.archiveExecutions()
	})

	s.cron.StartAsync()
	log.Println("System scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("System scheduler stopped")
}

// sweepDeadWorkers marks status rows stopped when their process died without
// reporting.
func (s *Scheduler) sweepDeadWorkers() {
	cleaned, err := s.manager.CleanupStoppedProcesses()
	if err != nil {
		log.Printf("Error sweeping dead workers: %v", err)
		return
	}
	if cleaned > 0 {
		log.Printf("Reconciled %d dead task workers", cleaned)
	}
}

// refreshNextExecutions recomputes next_execution_at for running tasks.
func (s *Scheduler) refreshNextExecutions() {
	if err := s.manager.RefreshNextExecutions(s.statuses.UpdateNextExecution); err != nil {
		log.Printf("Error refreshing next executions: %v", err)
	}
}

// archiveExecutions copies the previous day's finalized executions into the
// long-term archive. Best effort; the archive may be disabled.
func (s *Scheduler) archiveExecutions() {
	since := time.Now().AddDate(0, 0, -1)
	records, err := s.executions.ListCompletedSince(since)
	if err != nil {
		log.Printf("Error listing executions for archive: %v", err)
		return
	}
	for i := range records {
		s.archive.ArchiveExecution(&records[i])
	}
	if len(records) > 0 {
		log.Printf("Archived %d execution records", len(records))
	}
}

// expireStaleSignals expires active signals generated before today.
func (s *Scheduler) expireStaleSignals() {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n, err := s.lifecycle.MarkOldSignalsAsExpired(dayStart)
	if err != nil {
		log.Printf("Error expiring stale signals: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Expired %d stale signals", n)
	}
}
