package conflict

import (
	"fmt"
	"log"

	"go_trading_automation/models"
)

// UnifiedStatusReader reads the tenant's continuous service state
type UnifiedStatusReader interface {
	IsRunning(tenantID uint) (bool, error)
}

// TaskStatusReader reads individual task status rows
type TaskStatusReader interface {
	GetStatus(tenantID uint, taskName string) (*models.ServiceStatus, error)
}

// Detector decides whether an individual task may start given the tenant's
// unified-service state and flags tasks that are already running.
type Detector struct {
	unified UnifiedStatusReader
	tasks   TaskStatusReader
}

// NewDetector creates a conflict detector
func NewDetector(unified UnifiedStatusReader, tasks TaskStatusReader) *Detector {
	return &Detector{unified: unified, tasks: tasks}
}

// CanStartIndividualService returns false when the tenant's unified
// continuous service is running; individual tasks and the unified loop must
// never collide.
func (d *Detector) CanStartIndividualService(tenantID uint) (bool, string) {
	running, err := d.unified.IsRunning(tenantID)
	if err != nil {
		log.Printf("Error checking unified service for tenant %d: %v", tenantID, err)
		return false, fmt.Sprintf("unable to verify unified service state: %v", err)
	}
	if running {
		return false, "unified trading service is running for this tenant"
	}
	return true, ""
}

// CheckConflict reports whether starting the task would conflict. Advisory
// only: callers may still proceed.
func (d *Detector) CheckConflict(tenantID uint, taskName string) (bool, string) {
	if ok, reason := d.CanStartIndividualService(tenantID); !ok {
		return true, reason
	}
	if d.IsTaskRunning(tenantID, taskName) {
		return true, fmt.Sprintf("task %s is already running for this tenant", taskName)
	}
	return false, ""
}

// IsTaskRunning reports whether the status row marks the task as running
func (d *Detector) IsTaskRunning(tenantID uint, taskName string) bool {
	st, err := d.tasks.GetStatus(tenantID, taskName)
	if err != nil {
		log.Printf("Error checking task status for tenant %d task %s: %v", tenantID, taskName, err)
		return false
	}
	return st != nil && st.IsRunning
}
