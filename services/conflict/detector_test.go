package conflict

import (
	"errors"
	"testing"

	"go_trading_automation/models"

	"github.com/stretchr/testify/assert"
)

type fakeUnified struct {
	running map[uint]bool
	err     error
}

func (f *fakeUnified) IsRunning(tenantID uint) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.running[tenantID], nil
}

type fakeTaskStatus struct {
	statuses map[string]*models.ServiceStatus
}

func key(tenantID uint, task string) string {
	return string(rune(tenantID)) + "/" + task
}

func (f *fakeTaskStatus) GetStatus(tenantID uint, taskName string) (*models.ServiceStatus, error) {
	return f.statuses[key(tenantID, taskName)], nil
}

func TestCanStartIndividualService(t *testing.T) {
	unified := &fakeUnified{running: map[uint]bool{1: true}}
	d := NewDetector(unified, &fakeTaskStatus{statuses: map[string]*models.ServiceStatus{}})

	ok, reason := d.CanStartIndividualService(1)
	assert.False(t, ok)
	assert.Contains(t, reason, "unified")

	ok, reason = d.CanStartIndividualService(2)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestCanStartIndividualServiceReadError(t *testing.T) {
	unified := &fakeUnified{err: errors.New("db down")}
	d := NewDetector(unified, &fakeTaskStatus{statuses: map[string]*models.ServiceStatus{}})

	// Fail closed when the unified state cannot be verified
	ok, reason := d.CanStartIndividualService(1)
	assert.False(t, ok)
	assert.Contains(t, reason, "unable to verify")
}

func TestCheckConflict(t *testing.T) {
	tasks := &fakeTaskStatus{statuses: map[string]*models.ServiceStatus{
		key(2, models.TaskBuyOrders): {TenantID: 2, TaskName: models.TaskBuyOrders, IsRunning: true},
	}}
	d := NewDetector(&fakeUnified{running: map[uint]bool{1: true}}, tasks)

	has, reason := d.CheckConflict(1, models.TaskAnalysis)
	assert.True(t, has)
	assert.Contains(t, reason, "unified")

	has, reason = d.CheckConflict(2, models.TaskBuyOrders)
	assert.True(t, has)
	assert.Contains(t, reason, "already running")

	has, _ = d.CheckConflict(2, models.TaskAnalysis)
	assert.False(t, has)
}

func TestIsTaskRunning(t *testing.T) {
	tasks := &fakeTaskStatus{statuses: map[string]*models.ServiceStatus{
		key(1, models.TaskSellMonitor): {IsRunning: true},
		key(1, models.TaskAnalysis):    {IsRunning: false},
	}}
	d := NewDetector(&fakeUnified{running: map[uint]bool{}}, tasks)

	assert.True(t, d.IsTaskRunning(1, models.TaskSellMonitor))
	assert.False(t, d.IsTaskRunning(1, models.TaskAnalysis))
	assert.False(t, d.IsTaskRunning(1, models.TaskEODCleanup))
}
