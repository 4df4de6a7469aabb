package trading

import (
	"log"
	"time"

	"go_trading_automation/models"
)

// runner is the per-tenant loop state. lastRun is only touched from the
// runner's own goroutine (or from tick in tests).
type runner struct {
	tenantID     uint
	tradeMode    string
	artifactPath string
	stopChan     chan struct{}
	done         chan struct{}
	lastRun      map[string]time.Time
	startedAt    time.Time
}

// run is the unified service loop: heartbeat, then dispatch every task whose
// next execution has arrived. Exits when stopChan closes.
func (s *Service) run(r *runner) {
	defer close(r.done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case now := <-ticker.C:
			s.tick(r, now)
		}
	}
}

// tick runs one pass of the loop. Task failures are recorded against the
// status row and never stop the loop.
func (s *Service) tick(r *runner, now time.Time) {
	if err := s.statuses.Heartbeat(r.tenantID); err != nil {
		log.Printf("Heartbeat failed for tenant %d: %v", r.tenantID, err)
	}

	scheds, err := s.schedules.ListEnabledSchedules()
	if err != nil {
		log.Printf("Failed to list schedules for tenant %d: %v", r.tenantID, err)
		if recErr := s.statuses.RecordError(r.tenantID, err.Error()); recErr != nil {
			log.Printf("Failed to record error for tenant %d: %v", r.tenantID, recErr)
		}
		return
	}

	for i := range scheds {
		sched := &scheds[i]
		if !s.taskDue(r, sched, now) {
			continue
		}

		result, err := s.executor.Execute(r.tenantID, sched.TaskName)
		r.lastRun[sched.TaskName] = now
		if err != nil {
			log.Printf("Task %s failed in unified loop for tenant %d: %v", sched.TaskName, r.tenantID, err)
			if recErr := s.statuses.RecordError(r.tenantID, err.Error()); recErr != nil {
				log.Printf("Failed to record error for tenant %d: %v", r.tenantID, recErr)
			}
			continue
		}
		log.Printf("Task %s completed in unified loop for tenant %d: %s", sched.TaskName, r.tenantID, result)
	}
}

// taskDue reports whether the schedule's next execution, computed from the
// task's last run in this loop (or the loop start before any run), has
// arrived.
func (s *Service) taskDue(r *runner, sched *models.TaskSchedule, now time.Time) bool {
	baseline, ok := r.lastRun[sched.TaskName]
	if !ok {
		baseline = r.startedAt
	}
	next := s.scheduler.CalculateNextExecution(sched, baseline)
	return next != nil && !next.After(now)
}
