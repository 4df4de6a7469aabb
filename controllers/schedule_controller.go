package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go_trading_automation/middleware"
	"go_trading_automation/models"
	"go_trading_automation/repository"
	"go_trading_automation/services/schedule"
)

// ScheduleController handles task schedule requests
type ScheduleController struct {
	schedules *repository.ScheduleRepository
	manager   *schedule.Manager
}

// NewScheduleController creates a new schedule controller
func NewScheduleController(schedules *repository.ScheduleRepository, manager *schedule.Manager) *ScheduleController {
	return &ScheduleController{schedules: schedules, manager: manager}
}

// ListSchedules returns all task schedules, seeding defaults on first use
// GET /api/schedules
func (sc *ScheduleController) ListSchedules(c *gin.Context) {
	if _, err := sc.schedules.SeedDefaultsIfEmpty(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to seed default schedules"})
		return
	}

	schedules, err := sc.schedules.ListSchedules()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch schedules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": schedules})
}

// UpdateSchedule validates and saves a task schedule
// PUT /api/schedules/:task
func (sc *ScheduleController) UpdateSchedule(c *gin.Context) {
	taskName := c.Param("task")

	var request struct {
		IsHourly     bool    `json:"is_hourly"`
		IsContinuous bool    `json:"is_continuous"`
		StartTime    string  `json:"start_time" binding:"required"`
		EndTime      *string `json:"end_time"`
		Enabled      bool    `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if ok, reason := sc.manager.ValidateSchedule(taskName, request.IsHourly, request.IsContinuous, request.StartTime, request.EndTime); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": reason})
		return
	}

	updatedBy, _ := middleware.GetUsernameFromContext(c)
	s := &models.TaskSchedule{
		TaskName:     taskName,
		IsHourly:     request.IsHourly,
		IsContinuous: request.IsContinuous,
		StartTime:    request.StartTime,
		EndTime:      request.EndTime,
		Enabled:      request.Enabled,
		UpdatedBy:    updatedBy,
	}
	if err := sc.schedules.UpsertSchedule(s); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save schedule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": s})
}

// SetEnabled toggles a task schedule on or off
// POST /api/schedules/:task/enabled
func (sc *ScheduleController) SetEnabled(c *gin.Context) {
	taskName := c.Param("task")
	if !models.IsValidTaskName(taskName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown task"})
		return
	}

	var request struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updatedBy, _ := middleware.GetUsernameFromContext(c)
	if err := sc.schedules.SetEnabled(taskName, request.Enabled, updatedBy); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Schedule updated", "enabled": request.Enabled})
}
