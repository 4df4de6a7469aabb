package orchestrator

import (
	"fmt"
	"log"
	"sync"
	"time"

	"go_trading_automation/models"
	"go_trading_automation/services/schedule"
	"go_trading_automation/services/tasks"
)

const stopGracePeriod = 30 * time.Second

// ScheduleStore reads task schedules.
type ScheduleStore interface {
	GetSchedule(taskName string) (*models.TaskSchedule, error)
	ListSchedules() ([]models.TaskSchedule, error)
	SeedDefaultsIfEmpty() (bool, error)
}

// StatusStore persists per-task run state.
type StatusStore interface {
	GetStatus(tenantID uint, taskName string) (*models.ServiceStatus, error)
	ListStatuses(tenantID uint) ([]models.ServiceStatus, error)
	ListRunning() ([]models.ServiceStatus, error)
	UpsertStarted(tenantID uint, taskName string, pid int, next *time.Time) error
	MarkStopped(tenantID uint, taskName string) error
	UpdateLastExecution(tenantID uint, taskName string, at time.Time) error
}

// ExecutionStore records task execution history.
type ExecutionStore interface {
	Create(tenantID uint, taskName, executionType string) (*models.TaskExecution, error)
	Finalize(id uint, status, result, errorMessage string) error
	HasRunning(tenantID uint, taskName string) (bool, error)
}

// ConflictChecker guards starts against the unified trading service.
type ConflictChecker interface {
	CanStartIndividualService(tenantID uint) (bool, string)
	IsTaskRunning(tenantID uint, taskName string) bool
}

// Notifier delivers service events to the tenant.
type Notifier interface {
	Notify(tenantID uint, eventType, title, message string)
}

// AuditRecorder appends service events to the local audit trail.
type AuditRecorder interface {
	Record(tenantID uint, taskName, event, detail string)
}

// TaskStatusView is the per-task projection returned by GetStatus.
type TaskStatusView struct {
	TaskName        string     `json:"task_name"`
	Enabled         bool       `json:"enabled"`
	IsRunning       bool       `json:"is_running"`
	ProcessID       int        `json:"process_id,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	LastExecutionAt *time.Time `json:"last_execution_at,omitempty"`
	NextExecutionAt *time.Time `json:"next_execution_at,omitempty"`
}

// Manager controls per-tenant individual task services: dedicated worker
// processes for scheduled tasks plus one-off manual executions.
type Manager struct {
	schedules  ScheduleStore
	statuses   StatusStore
	executions ExecutionStore
	conflicts  ConflictChecker
	scheduler  *schedule.Manager
	executor   tasks.Executor
	procs      ProcessController
	notifier   Notifier
	audit      AuditRecorder

	// Guards inFlight. One run_once per (tenant, task) at a time.
	mu       sync.Mutex
	inFlight map[string]bool

	now func() time.Time
}

func NewManager(
	schedules ScheduleStore,
	statuses StatusStore,
	executions ExecutionStore,
	conflicts ConflictChecker,
	scheduler *schedule.Manager,
	executor tasks.Executor,
	procs ProcessController,
	notifier Notifier,
	audit AuditRecorder,
) *Manager {
	return &Manager{
		schedules:  schedules,
		statuses:   statuses,
		executions: executions,
		conflicts:  conflicts,
		scheduler:  scheduler,
		executor:   executor,
		procs:      procs,
		notifier:   notifier,
		audit:      audit,
		inFlight:   make(map[string]bool),
		now:        time.Now,
	}
}

func flightKey(tenantID uint, taskName string) string {
	return fmt.Sprintf("%d/%s", tenantID, taskName)
}

// StartService launches a dedicated worker process for the task. Fails when
// the unified service is running, the task is already running, or the
// schedule is missing or disabled.
func (m *Manager) StartService(tenantID uint, taskName string) error {
	if !models.IsValidTaskName(taskName) {
		return fmt.Errorf("unknown task %q", taskName)
	}

	if ok, reason := m.conflicts.CanStartIndividualService(tenantID); !ok {
		return fmt.Errorf("cannot start %s: %s", taskName, reason)
	}

	st, err := m.statuses.GetStatus(tenantID, taskName)
	if err != nil {
		return fmt.Errorf("failed to read service status: %w", err)
	}
	if st != nil && st.IsRunning {
		return fmt.Errorf("task %s is already running for tenant %d", taskName, tenantID)
	}

	sched, err := m.schedules.GetSchedule(taskName)
	if err != nil {
		return fmt.Errorf("failed to read schedule: %w", err)
	}
	if sched == nil {
		return fmt.Errorf("no schedule configured for task %s", taskName)
	}
	if !sched.Enabled {
		return fmt.Errorf("task %s is disabled", taskName)
	}

	pid, err := m.procs.Launch(tenantID, taskName)
	if err != nil {
		return fmt.Errorf("failed to launch worker for %s: %w", taskName, err)
	}

	next := m.scheduler.CalculateNextExecution(sched, m.now())
	if err := m.statuses.UpsertStarted(tenantID, taskName, pid, next); err != nil {
		// Worker is up but unrecorded. Kill it so state stays consistent.
		if stopErr := m.procs.Stop(pid, stopGracePeriod); stopErr != nil {
			log.Printf("Failed to stop orphaned worker pid=%d: %v", pid, stopErr)
		}
		return fmt.Errorf("failed to record service start: %w", err)
	}

	log.Printf("Started %s worker for tenant %d (pid=%d)", taskName, tenantID, pid)
	m.audit.Record(tenantID, taskName, "service_started", fmt.Sprintf("pid=%d", pid))
	m.notifier.Notify(tenantID, models.EventServiceStarted,
		"Service started", fmt.Sprintf("Task %s is now running", taskName))
	return nil
}

// StopService terminates the task's worker process. The status row is marked
// stopped even when the process refuses to die.
func (m *Manager) StopService(tenantID uint, taskName string) error {
	st, err := m.statuses.GetStatus(tenantID, taskName)
	if err != nil {
		return fmt.Errorf("failed to read service status: %w", err)
	}
	if st == nil || !st.IsRunning {
		return fmt.Errorf("task %s is not running for tenant %d", taskName, tenantID)
	}

	if err := m.procs.Stop(st.ProcessID, stopGracePeriod); err != nil {
		log.Printf("Error stopping pid=%d for %s tenant=%d: %v", st.ProcessID, taskName, tenantID, err)
	}

	if err := m.statuses.MarkStopped(tenantID, taskName); err != nil {
		return fmt.Errorf("failed to record service stop: %w", err)
	}

	log.Printf("Stopped %s worker for tenant %d (pid=%d)", taskName, tenantID, st.ProcessID)
	m.audit.Record(tenantID, taskName, "service_stopped", fmt.Sprintf("pid=%d", st.ProcessID))
	m.notifier.Notify(tenantID, models.EventServiceStopped,
		"Service stopped", fmt.Sprintf("Task %s has been stopped", taskName))
	return nil
}

// RunOnce executes the task a single time in the background. execType
// distinguishes API-triggered runs (run_once) from operator-forced ones
// (manual). Returns (false, reason) without starting anything when the task
// is unknown or an execution is already in flight. Failures inside the
// worker never surface here; they end up in the execution record.
func (m *Manager) RunOnce(tenantID uint, taskName, execType string) (bool, string) {
	if !models.IsValidTaskName(taskName) {
		return false, fmt.Sprintf("unknown task %q", taskName)
	}
	if execType != models.ExecutionRunOnce && execType != models.ExecutionManual {
		return false, fmt.Sprintf("unknown execution type %q", execType)
	}

	if m.conflicts.IsTaskRunning(tenantID, taskName) {
		return false, fmt.Sprintf("task %s is already running", taskName)
	}

	key := flightKey(tenantID, taskName)
	m.mu.Lock()
	if m.inFlight[key] {
		m.mu.Unlock()
		return false, fmt.Sprintf("task %s is already running", taskName)
	}
	m.inFlight[key] = true
	m.mu.Unlock()

	// The in-flight map only covers this process; an unfinalized record from
	// another worker still blocks the dispatch.
	running, err := m.executions.HasRunning(tenantID, taskName)
	if err != nil {
		m.release(key)
		return false, fmt.Sprintf("failed to check running executions: %v", err)
	}
	if running {
		m.release(key)
		return false, fmt.Sprintf("task %s has an unfinished execution", taskName)
	}

	rec, err := m.executions.Create(tenantID, taskName, execType)
	if err != nil {
		m.release(key)
		return false, fmt.Sprintf("failed to record execution: %v", err)
	}

	go m.runTask(tenantID, taskName, key, rec.ID)
	return true, "execution started"
}

// runTask is the run_once worker body. The deferred block releases the
// in-flight slot and finalizes the record on every exit path, panics included.
func (m *Manager) runTask(tenantID uint, taskName, key string, executionID uint) {
	var (
		result string
		runErr error
	)
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("task panicked: %v", r)
		}
		m.finalize(tenantID, taskName, executionID, result, runErr)
		m.release(key)
	}()

	result, runErr = m.executor.Execute(tenantID, taskName)
}

func (m *Manager) finalize(tenantID uint, taskName string, executionID uint, result string, runErr error) {
	status := models.ExecutionStatusSuccess
	errMsg := ""
	if runErr != nil {
		status = models.ExecutionStatusFailed
		errMsg = runErr.Error()
		log.Printf("Task %s failed for tenant %d: %v", taskName, tenantID, runErr)
	}

	if err := m.executions.Finalize(executionID, status, result, errMsg); err != nil {
		log.Printf("Failed to finalize execution %d: %v", executionID, err)
	}
	if err := m.statuses.UpdateLastExecution(tenantID, taskName, m.now()); err != nil {
		log.Printf("Failed to update last execution for %s tenant=%d: %v", taskName, tenantID, err)
	}

	m.audit.Record(tenantID, taskName, "execution_completed", status)
	m.notifier.Notify(tenantID, models.EventExecutionCompleted,
		"Execution completed", fmt.Sprintf("Task %s finished with status %s", taskName, status))
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	delete(m.inFlight, key)
	m.mu.Unlock()
}

// GetStatus returns one view per known task, seeding default schedules on
// first use. next_execution_at is recomputed and only present for enabled
// tasks.
func (m *Manager) GetStatus(tenantID uint) ([]TaskStatusView, error) {
	if seeded, err := m.schedules.SeedDefaultsIfEmpty(); err != nil {
		return nil, fmt.Errorf("failed to seed default schedules: %w", err)
	} else if seeded {
		log.Printf("Seeded default task schedules")
	}

	scheds, err := m.schedules.ListSchedules()
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	statuses, err := m.statuses.ListStatuses(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}

	byTask := make(map[string]*models.ServiceStatus, len(statuses))
	for i := range statuses {
		byTask[statuses[i].TaskName] = &statuses[i]
	}

	now := m.now()
	views := make([]TaskStatusView, 0, len(scheds))
	for i := range scheds {
		sched := &scheds[i]
		view := TaskStatusView{TaskName: sched.TaskName, Enabled: sched.Enabled}
		if st := byTask[sched.TaskName]; st != nil {
			view.IsRunning = st.IsRunning
			view.ProcessID = st.ProcessID
			view.StartedAt = st.StartedAt
			view.LastExecutionAt = st.LastExecutionAt
		}
		if sched.Enabled {
			view.NextExecutionAt = m.scheduler.CalculateNextExecution(sched, now)
		}
		views = append(views, view)
	}
	return views, nil
}

// CleanupStoppedProcesses reconciles status rows against live processes.
// A row claiming is_running whose PID is dead gets marked stopped. Returns
// the number of rows reconciled.
func (m *Manager) CleanupStoppedProcesses() (int, error) {
	running, err := m.statuses.ListRunning()
	if err != nil {
		return 0, fmt.Errorf("failed to list running services: %w", err)
	}

	var cleaned int
	for _, st := range running {
		if m.procs.Alive(st.ProcessID) {
			continue
		}
		if err := m.statuses.MarkStopped(st.TenantID, st.TaskName); err != nil {
			log.Printf("Failed to mark %s stopped for tenant %d: %v", st.TaskName, st.TenantID, err)
			continue
		}
		cleaned++
		log.Printf("Reconciled dead worker: tenant=%d task=%s pid=%d", st.TenantID, st.TaskName, st.ProcessID)
		m.audit.Record(st.TenantID, st.TaskName, "crash_reconciled", fmt.Sprintf("pid=%d", st.ProcessID))
	}
	return cleaned, nil
}

// RefreshNextExecutions recomputes next_execution_at for every running task
// of every tenant with a running row. Called periodically by the system
// scheduler so the stored value never goes stale.
func (m *Manager) RefreshNextExecutions(update func(tenantID uint, taskName string, next *time.Time) error) error {
	running, err := m.statuses.ListRunning()
	if err != nil {
		return fmt.Errorf("failed to list running services: %w", err)
	}

	now := m.now()
	for _, st := range running {
		sched, err := m.schedules.GetSchedule(st.TaskName)
		if err != nil || sched == nil {
			continue
		}
		next := m.scheduler.CalculateNextExecution(sched, now)
		if err := update(st.TenantID, st.TaskName, next); err != nil {
			log.Printf("Failed to refresh next execution for %s tenant=%d: %v", st.TaskName, st.TenantID, err)
		}
	}
	return nil
}
