package orchestrator

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_trading_automation/models"
	"go_trading_automation/services/schedule"
)

type fakeScheduleStore struct {
	schedules map[string]*models.TaskSchedule
	seeded    bool
}

func (f *fakeScheduleStore) GetSchedule(taskName string) (*models.TaskSchedule, error) {
	s, ok := f.schedules[taskName]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeScheduleStore) ListSchedules() ([]models.TaskSchedule, error) {
	var out []models.TaskSchedule
	for _, name := range models.AllTaskNames() {
		if s, ok := f.schedules[name]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeScheduleStore) SeedDefaultsIfEmpty() (bool, error) {
	if len(f.schedules) > 0 {
		return false, nil
	}
	f.seeded = true
	for _, s := range models.DefaultSchedules() {
		copied := s
		f.schedules[s.TaskName] = &copied
	}
	return true, nil
}

type fakeStatusStore struct {
	mu   sync.Mutex
	rows map[string]*models.ServiceStatus
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{rows: make(map[string]*models.ServiceStatus)}
}

func statusKey(tenantID uint, taskName string) string {
	return fmt.Sprintf("%d/%s", tenantID, taskName)
}

func (f *fakeStatusStore) GetStatus(tenantID uint, taskName string) (*models.ServiceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.rows[statusKey(tenantID, taskName)]
	if !ok {
		return nil, nil
	}
	copied := *st
	return &copied, nil
}

func (f *fakeStatusStore) ListStatuses(tenantID uint) ([]models.ServiceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ServiceStatus
	for _, st := range f.rows {
		if st.TenantID == tenantID {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (f *fakeStatusStore) ListRunning() ([]models.ServiceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ServiceStatus
	for _, st := range f.rows {
		if st.IsRunning {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (f *fakeStatusStore) UpsertStarted(tenantID uint, taskName string, pid int, next *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	f.rows[statusKey(tenantID, taskName)] = &models.ServiceStatus{
		TenantID:        tenantID,
		TaskName:        taskName,
		IsRunning:       true,
		ProcessID:       pid,
		StartedAt:       &now,
		NextExecutionAt: next,
	}
	return nil
}

func (f *fakeStatusStore) MarkStopped(tenantID uint, taskName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.rows[statusKey(tenantID, taskName)]; ok {
		st.IsRunning = false
		st.ProcessID = 0
	}
	return nil
}

func (f *fakeStatusStore) UpdateLastExecution(tenantID uint, taskName string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.rows[statusKey(tenantID, taskName)]; ok {
		st.LastExecutionAt = &at
	}
	return nil
}

type fakeExecutionStore struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.TaskExecution
}

func newFakeExecutionStore() *fakeExecutionStore {
	return &fakeExecutionStore{nextID: 1, rows: make(map[uint]*models.TaskExecution)}
}

func (f *fakeExecutionStore) Create(tenantID uint, taskName, executionType string) (*models.TaskExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := &models.TaskExecution{
		ID:            f.nextID,
		TenantID:      tenantID,
		TaskName:      taskName,
		ExecutionType: executionType,
		Status:        models.ExecutionStatusRunning,
		StartedAt:     time.Now(),
	}
	f.nextID++
	f.rows[rec.ID] = rec
	copied := *rec
	return &copied, nil
}

func (f *fakeExecutionStore) HasRunning(tenantID uint, taskName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.rows {
		if rec.TenantID == tenantID && rec.TaskName == taskName && rec.Status == models.ExecutionStatusRunning {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeExecutionStore) Finalize(id uint, status, result, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[id]
	if !ok || rec.Status != models.ExecutionStatusRunning {
		return errors.New("already finalized")
	}
	rec.Status = status
	rec.Result = result
	rec.ErrorMessage = errorMessage
	return nil
}

func (f *fakeExecutionStore) status(id uint) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.rows[id]; ok {
		return rec.Status
	}
	return ""
}

type fakeConflicts struct {
	unifiedRunning bool
	taskRunning    bool
}

func (f *fakeConflicts) CanStartIndividualService(tenantID uint) (bool, string) {
	if f.unifiedRunning {
		return false, "unified trading service is running for this tenant"
	}
	return true, ""
}

func (f *fakeConflicts) IsTaskRunning(tenantID uint, taskName string) bool {
	return f.taskRunning
}

type fakeProcs struct {
	mu       sync.Mutex
	nextPID  int
	alive    map[int]bool
	launches int
	stops    []int
	failNext bool
}

func newFakeProcs() *fakeProcs {
	return &fakeProcs{nextPID: 1000, alive: make(map[int]bool)}
}

func (f *fakeProcs) Launch(tenantID uint, taskName string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		return 0, errors.New("spawn failed")
	}
	f.nextPID++
	f.alive[f.nextPID] = true
	f.launches++
	return f.nextPID, nil
}

func (f *fakeProcs) Stop(pid int, grace time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, pid)
	delete(f.alive, pid)
	return nil
}

func (f *fakeProcs) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(tenantID uint, eventType, title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAudit) Record(tenantID uint, taskName, event, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

// blockingExecutor holds executions open until released so tests can observe
// in-flight state.
type blockingExecutor struct {
	started chan struct{}
	release chan struct{}
	result  string
	err     error
	panics  bool
}

func (e *blockingExecutor) Execute(tenantID uint, taskName string) (string, error) {
	if e.started != nil {
		close(e.started)
	}
	if e.release != nil {
		<-e.release
	}
	if e.panics {
		panic("boom")
	}
	return e.result, e.err
}

type managerFixture struct {
	manager    *Manager
	schedules  *fakeScheduleStore
	statuses   *fakeStatusStore
	executions *fakeExecutionStore
	conflicts  *fakeConflicts
	procs      *fakeProcs
	notifier   *fakeNotifier
	audit      *fakeAudit
}

func newFixture(executor *blockingExecutor) *managerFixture {
	f := &managerFixture{
		schedules:  &fakeScheduleStore{schedules: make(map[string]*models.TaskSchedule)},
		statuses:   newFakeStatusStore(),
		executions: newFakeExecutionStore(),
		conflicts:  &fakeConflicts{},
		procs:      newFakeProcs(),
		notifier:   &fakeNotifier{},
		audit:      &fakeAudit{},
	}
	_, _ = f.schedules.SeedDefaultsIfEmpty()
	if executor == nil {
		executor = &blockingExecutor{result: "ok"}
	}
	f.manager = NewManager(
		f.schedules, f.statuses, f.executions, f.conflicts,
		schedule.NewManager(), executor, f.procs, f.notifier, f.audit,
	)
	return f
}

func TestStartServiceHappyPath(t *testing.T) {
	f := newFixture(nil)

	err := f.manager.StartService(1, models.TaskBuyOrders)
	require.NoError(t, err)

	st, err := f.statuses.GetStatus(1, models.TaskBuyOrders)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.IsRunning)
	assert.NotZero(t, st.ProcessID)
	assert.NotNil(t, st.NextExecutionAt)
	assert.Contains(t, f.audit.events, "service_started")
	assert.Contains(t, f.notifier.events, models.EventServiceStarted)
}

func TestStartServiceBlockedByUnified(t *testing.T) {
	f := newFixture(nil)
	f.conflicts.unifiedRunning = true

	err := f.manager.StartService(1, models.TaskBuyOrders)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unified trading service")
	assert.Zero(t, f.procs.launches)
}

func TestStartServiceRejectsDoubleStart(t *testing.T) {
	f := newFixture(nil)

	require.NoError(t, f.manager.StartService(1, models.TaskBuyOrders))
	err := f.manager.StartService(1, models.TaskBuyOrders)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
	assert.Equal(t, 1, f.procs.launches)
}

func TestStartServiceRejectsDisabledAndUnknown(t *testing.T) {
	f := newFixture(nil)
	f.schedules.schedules[models.TaskBuyOrders].Enabled = false

	err := f.manager.StartService(1, models.TaskBuyOrders)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")

	err = f.manager.StartService(1, "made_up_task")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}

func TestStopService(t *testing.T) {
	f := newFixture(nil)
	require.NoError(t, f.manager.StartService(1, models.TaskBuyOrders))
	st, _ := f.statuses.GetStatus(1, models.TaskBuyOrders)
	pid := st.ProcessID

	require.NoError(t, f.manager.StopService(1, models.TaskBuyOrders))

	st, _ = f.statuses.GetStatus(1, models.TaskBuyOrders)
	assert.False(t, st.IsRunning)
	assert.Contains(t, f.procs.stops, pid)
	assert.Contains(t, f.audit.events, "service_stopped")

	err := f.manager.StopService(1, models.TaskBuyOrders)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestRunOnceDeduplicates(t *testing.T) {
	executor := &blockingExecutor{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result:  "done",
	}
	f := newFixture(executor)

	ok, msg := f.manager.RunOnce(1, models.TaskAnalysis, models.ExecutionRunOnce)
	require.True(t, ok, msg)

	<-executor.started

	ok, msg = f.manager.RunOnce(1, models.TaskAnalysis, models.ExecutionRunOnce)
	assert.False(t, ok)
	assert.Contains(t, msg, "already running")

	close(executor.release)

	require.Eventually(t, func() bool {
		return f.executions.status(1) == models.ExecutionStatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	// Slot released; a new run may start.
	ok, _ = f.manager.RunOnce(1, models.TaskAnalysis, models.ExecutionRunOnce)
	assert.True(t, ok)
}

func TestRunOnceWorkerFailureFinalizesFailed(t *testing.T) {
	executor := &blockingExecutor{err: errors.New("analysis engine down")}
	f := newFixture(executor)

	ok, _ := f.manager.RunOnce(1, models.TaskAnalysis, models.ExecutionRunOnce)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return f.executions.status(1) == models.ExecutionStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	f.executions.mu.Lock()
	rec := f.executions.rows[1]
	f.executions.mu.Unlock()
	assert.Contains(t, rec.ErrorMessage, "analysis engine down")
}

func TestRunOncePanicFinalizesFailed(t *testing.T) {
	executor := &blockingExecutor{panics: true}
	f := newFixture(executor)

	ok, _ := f.manager.RunOnce(1, models.TaskAnalysis, models.ExecutionRunOnce)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return f.executions.status(1) == models.ExecutionStatusFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunOnceRejectsUnknownTask(t *testing.T) {
	f := newFixture(nil)
	ok, msg := f.manager.RunOnce(1, "made_up_task", models.ExecutionRunOnce)
	assert.False(t, ok)
	assert.Contains(t, msg, "unknown task")
}

func TestRunOnceRejectsUnfinishedExecution(t *testing.T) {
	f := newFixture(nil)

	// A scheduled worker in another process left a running record behind.
	_, err := f.executions.Create(1, models.TaskAnalysis, models.ExecutionScheduled)
	require.NoError(t, err)

	ok, msg := f.manager.RunOnce(1, models.TaskAnalysis, models.ExecutionRunOnce)
	assert.False(t, ok)
	assert.Contains(t, msg, "unfinished execution")
}

func TestRunOnceRejectsUnknownExecutionType(t *testing.T) {
	f := newFixture(nil)
	ok, msg := f.manager.RunOnce(1, models.TaskAnalysis, "cron")
	assert.False(t, ok)
	assert.Contains(t, msg, "unknown execution type")
}

func TestCleanupStoppedProcesses(t *testing.T) {
	f := newFixture(nil)
	require.NoError(t, f.manager.StartService(1, models.TaskBuyOrders))
	require.NoError(t, f.manager.StartService(2, models.TaskAnalysis))

	// Kill tenant 1's worker behind the manager's back.
	st, _ := f.statuses.GetStatus(1, models.TaskBuyOrders)
	f.procs.mu.Lock()
	delete(f.procs.alive, st.ProcessID)
	f.procs.mu.Unlock()

	cleaned, err := f.manager.CleanupStoppedProcesses()
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)

	st, _ = f.statuses.GetStatus(1, models.TaskBuyOrders)
	assert.False(t, st.IsRunning)
	st2, _ := f.statuses.GetStatus(2, models.TaskAnalysis)
	assert.True(t, st2.IsRunning)
	assert.Contains(t, f.audit.events, "crash_reconciled")
}

func TestGetStatusProjectsAllTasks(t *testing.T) {
	f := newFixture(nil)
	f.schedules.schedules[models.TaskEODCleanup].Enabled = false
	require.NoError(t, f.manager.StartService(1, models.TaskBuyOrders))

	views, err := f.manager.GetStatus(1)
	require.NoError(t, err)
	require.Len(t, views, len(models.AllTaskNames()))

	byName := make(map[string]TaskStatusView, len(views))
	for _, v := range views {
		byName[v.TaskName] = v
	}

	assert.True(t, byName[models.TaskBuyOrders].IsRunning)
	assert.NotNil(t, byName[models.TaskBuyOrders].NextExecutionAt)

	// Disabled tasks report no next execution.
	assert.False(t, byName[models.TaskEODCleanup].Enabled)
	assert.Nil(t, byName[models.TaskEODCleanup].NextExecutionAt)

	// Never-started tasks still appear.
	assert.False(t, byName[models.TaskPremarketRetry].IsRunning)
}

func TestGetStatusSeedsDefaults(t *testing.T) {
	f := newFixture(nil)
	f.schedules.schedules = make(map[string]*models.TaskSchedule)
	f.schedules.seeded = false

	views, err := f.manager.GetStatus(1)
	require.NoError(t, err)
	assert.True(t, f.schedules.seeded)
	assert.Len(t, views, len(models.AllTaskNames()))
}
