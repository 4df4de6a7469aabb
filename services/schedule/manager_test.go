package schedule

import (
	"testing"
	"time"

	"go_trading_automation/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 16, hour, min, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func TestCalculateNextExecutionOnceDaily(t *testing.T) {
	m := NewManager()
	s := &models.TaskSchedule{TaskName: models.TaskBuyOrders, StartTime: "09:30", Enabled: true}

	next := m.CalculateNextExecution(s, at(8, 0))
	require.NotNil(t, next)
	assert.Equal(t, at(9, 30), *next)

	// At or after the start time the run moves to tomorrow
	next = m.CalculateNextExecution(s, at(9, 30))
	require.NotNil(t, next)
	assert.Equal(t, at(9, 30).AddDate(0, 0, 1), *next)

	next = m.CalculateNextExecution(s, at(14, 0))
	require.NotNil(t, next)
	assert.Equal(t, at(9, 30).AddDate(0, 0, 1), *next)
}

func TestCalculateNextExecutionHourly(t *testing.T) {
	m := NewManager()
	s := &models.TaskSchedule{
		TaskName:  models.TaskPositionMonitor,
		IsHourly:  true,
		StartTime: "09:30",
		Enabled:   true,
	}

	// Before the fixed minute: same hour
	next := m.CalculateNextExecution(s, at(10, 15))
	require.NotNil(t, next)
	assert.Equal(t, at(10, 30), *next)

	// Past the fixed minute: next hour
	next = m.CalculateNextExecution(s, at(10, 31))
	require.NotNil(t, next)
	assert.Equal(t, at(11, 30), *next)

	// Past 23:30 rolls to next day 00:30 when no end time is set
	noEnd := &models.TaskSchedule{TaskName: models.TaskPositionMonitor, IsHourly: true, StartTime: "00:30", Enabled: true}
	next = m.CalculateNextExecution(noEnd, at(23, 31))
	require.NotNil(t, next)
	assert.Equal(t, at(0, 30).AddDate(0, 0, 1), *next)
}

func TestCalculateNextExecutionHourlyWithEndTime(t *testing.T) {
	m := NewManager()
	s := &models.TaskSchedule{
		TaskName:  models.TaskPositionMonitor,
		IsHourly:  true,
		StartTime: "09:30",
		EndTime:   strPtr("15:30"),
		Enabled:   true,
	}

	// Slot past the end hour falls back to tomorrow's start
	next := m.CalculateNextExecution(s, at(15, 31))
	require.NotNil(t, next)
	assert.Equal(t, at(9, 30).AddDate(0, 0, 1), *next)

	// Last slot of the day is still honored
	next = m.CalculateNextExecution(s, at(15, 15))
	require.NotNil(t, next)
	assert.Equal(t, at(15, 30), *next)
}

func TestCalculateNextExecutionContinuous(t *testing.T) {
	m := NewManager()
	s := &models.TaskSchedule{
		TaskName:     models.TaskSellMonitor,
		IsContinuous: true,
		StartTime:    "09:15",
		EndTime:      strPtr("15:30"),
		Enabled:      true,
	}

	next := m.CalculateNextExecution(s, at(8, 0))
	require.NotNil(t, next)
	assert.Equal(t, at(9, 15), *next)

	// Inside the window the task is due immediately
	now := at(10, 0)
	next = m.CalculateNextExecution(s, now)
	require.NotNil(t, next)
	assert.Equal(t, now, *next)

	next = m.CalculateNextExecution(s, at(16, 0))
	require.NotNil(t, next)
	assert.Equal(t, at(9, 15).AddDate(0, 0, 1), *next)
}

func TestCalculateNextExecutionDisabled(t *testing.T) {
	m := NewManager()

	schedules := []*models.TaskSchedule{
		{TaskName: models.TaskBuyOrders, StartTime: "09:30"},
		{TaskName: models.TaskPositionMonitor, IsHourly: true, StartTime: "09:30"},
		{TaskName: models.TaskSellMonitor, IsContinuous: true, StartTime: "09:15", EndTime: strPtr("15:30")},
	}
	for _, s := range schedules {
		s.Enabled = false
		assert.Nil(t, m.CalculateNextExecution(s, at(10, 0)), "disabled %s", s.TaskName)
	}
}

func TestCalculateNextExecutionAnalysisScenario(t *testing.T) {
	m := NewManager()
	s := &models.TaskSchedule{TaskName: models.TaskAnalysis, StartTime: "16:00", Enabled: true}

	next := m.CalculateNextExecution(s, at(15, 0))
	require.NotNil(t, next)
	assert.Equal(t, at(16, 0), *next)

	next = m.CalculateNextExecution(s, at(16, 1))
	require.NotNil(t, next)
	assert.Equal(t, at(16, 0).AddDate(0, 0, 1), *next)
}

func TestValidateScheduleRejectsBadEdits(t *testing.T) {
	m := NewManager()

	// Hourly task on a minute other than its fixed minute
	ok, msg := m.ValidateSchedule(models.TaskPositionMonitor, true, false, "09:15", nil)
	assert.False(t, ok)
	assert.Contains(t, msg, ":30")

	// Continuous task with end <= start
	ok, msg = m.ValidateSchedule(models.TaskSellMonitor, false, true, "15:30", strPtr("09:15"))
	assert.False(t, ok)
	assert.Contains(t, msg, "after start")

	// Daily task combined with an end time
	ok, _ = m.ValidateSchedule(models.TaskBuyOrders, false, false, "09:30", strPtr("10:00"))
	assert.False(t, ok)

	// Unknown task
	ok, msg = m.ValidateSchedule("mystery_task", false, false, "09:30", nil)
	assert.False(t, ok)
	assert.Contains(t, msg, "unknown task")

	// Out-of-range clock value
	ok, _ = m.ValidateSchedule(models.TaskBuyOrders, false, false, "25:00", nil)
	assert.False(t, ok)

	// Trailing garbage after a valid clock value
	ok, msg = m.ValidateSchedule(models.TaskBuyOrders, false, false, "09:30xyz", nil)
	assert.False(t, ok)
	assert.Contains(t, msg, "invalid start_time")

	ok, msg = m.ValidateSchedule(models.TaskSellMonitor, false, true, "09:15", strPtr("15:30pm"))
	assert.False(t, ok)
	assert.Contains(t, msg, "invalid end_time")

	// Hourly and continuous at once
	ok, _ = m.ValidateSchedule(models.TaskPositionMonitor, true, true, "09:30", nil)
	assert.False(t, ok)
}

func TestValidateScheduleBusinessWindow(t *testing.T) {
	m := NewManager()

	ok, _ := m.ValidateSchedule(models.TaskBuyOrders, false, false, "09:30", nil)
	assert.True(t, ok)

	ok, msg := m.ValidateSchedule(models.TaskBuyOrders, false, false, "18:00", nil)
	assert.False(t, ok)
	assert.Contains(t, msg, "08:00")

	ok, _ = m.ValidateSchedule(models.TaskEODCleanup, false, false, "07:00", nil)
	assert.False(t, ok)

	// Boundaries are inclusive
	ok, _ = m.ValidateSchedule(models.TaskPremarketRetry, false, false, "08:00", nil)
	assert.True(t, ok)
	ok, _ = m.ValidateSchedule(models.TaskEODCleanup, false, false, "16:00", nil)
	assert.True(t, ok)
}

func TestValidateScheduleAnalysisWraparoundWindow(t *testing.T) {
	m := NewManager()

	for _, start := range []string{"16:00", "22:00", "02:00", "09:00"} {
		ok, msg := m.ValidateSchedule(models.TaskAnalysis, false, false, start, nil)
		assert.True(t, ok, "start %s: %s", start, msg)
	}

	for _, start := range []string{"09:01", "12:00", "15:59"} {
		ok, _ := m.ValidateSchedule(models.TaskAnalysis, false, false, start, nil)
		assert.False(t, ok, "start %s", start)
	}
}

func TestValidateScheduleHourlyAndContinuousValid(t *testing.T) {
	m := NewManager()

	ok, msg := m.ValidateSchedule(models.TaskPositionMonitor, true, false, "09:30", strPtr("15:30"))
	assert.True(t, ok, msg)

	ok, msg = m.ValidateSchedule(models.TaskSellMonitor, false, true, "09:15", strPtr("15:30"))
	assert.True(t, ok, msg)

	// Only the designated tasks carry those trigger kinds
	ok, _ = m.ValidateSchedule(models.TaskBuyOrders, true, false, "09:30", nil)
	assert.False(t, ok)
	ok, _ = m.ValidateSchedule(models.TaskBuyOrders, false, true, "09:30", strPtr("15:00"))
	assert.False(t, ok)
}
