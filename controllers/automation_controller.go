package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"go_trading_automation/models"
	"go_trading_automation/repository"
	"go_trading_automation/services/audit"
	"go_trading_automation/services/execarchive"
	"go_trading_automation/services/orchestrator"
)

// AutomationController handles individual task service requests
type AutomationController struct {
	manager    *orchestrator.Manager
	executions *repository.ExecutionRepository
	archive    *execarchive.Archive
	audit      *audit.Log
}

// NewAutomationController creates a new automation controller
func NewAutomationController(manager *orchestrator.Manager, executions *repository.ExecutionRepository, archive *execarchive.Archive, auditLog *audit.Log) *AutomationController {
	return &AutomationController{
		manager:    manager,
		executions: executions,
		archive:    archive,
		audit:      auditLog,
	}
}

func tenantParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("tenant_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant id"})
		return 0, false
	}
	return uint(id), true
}

// GetStatus returns per-task status for a tenant
// GET /api/tenants/:tenant_id/tasks
func (ac *AutomationController) GetStatus(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}

	views, err := ac.manager.GetStatus(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch task status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

// StartService starts a dedicated worker for a task
// POST /api/tenants/:tenant_id/tasks/:task/start
func (ac *AutomationController) StartService(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	taskName := c.Param("task")

	if err := ac.manager.StartService(tenantID, taskName); err != nil {
		c.JSON(startErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Service started", "task": taskName})
}

// startErrorStatus maps start failures onto HTTP codes: conflicts are 409,
// bad input is 400, everything else is 500.
func startErrorStatus(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "already running"), strings.Contains(msg, "unified trading service"):
		return http.StatusConflict
	case strings.Contains(msg, "unknown task"), strings.Contains(msg, "disabled"), strings.Contains(msg, "no schedule"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// StopService stops a task's worker
// POST /api/tenants/:tenant_id/tasks/:task/stop
func (ac *AutomationController) StopService(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	taskName := c.Param("task")

	if err := ac.manager.StopService(tenantID, taskName); err != nil {
		if strings.Contains(err.Error(), "not running") {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Service stopped", "task": taskName})
}

// RunOnce triggers a single background execution of a task
// POST /api/tenants/:tenant_id/tasks/:task/run
func (ac *AutomationController) RunOnce(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	taskName := c.Param("task")
	execType := c.DefaultQuery("type", models.ExecutionRunOnce)

	started, reason := ac.manager.RunOnce(tenantID, taskName, execType)
	if !started {
		status := http.StatusConflict
		if strings.Contains(reason, "unknown task") || strings.Contains(reason, "unknown execution type") {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": reason})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": reason, "task": taskName})
}

// ListExecutions returns recent execution records for a tenant
// GET /api/tenants/:tenant_id/executions
func (ac *AutomationController) ListExecutions(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := ac.executions.List(tenantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch executions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

// ListArchivedExecutions returns archived execution records for a tenant
// GET /api/tenants/:tenant_id/executions/archive
func (ac *AutomationController) ListArchivedExecutions(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	if !ac.archive.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Execution archive is not configured"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	docs, err := ac.archive.ListArchived(tenantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch archived executions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": docs})
}

// ListAuditEvents returns recent audit events for a tenant
// GET /api/tenants/:tenant_id/audit
func (ac *AutomationController) ListAuditEvents(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := ac.audit.Recent(tenantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}
