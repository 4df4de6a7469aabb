package schedule

import (
	"fmt"
	"time"

	"go_trading_automation/models"
)

// Business-hours boundaries for ordinary daily tasks, minutes since midnight.
// The analysis task instead uses the off-hours wraparound window below.
const (
	businessWindowStart = 8 * 60  // 08:00
	businessWindowEnd   = 16 * 60 // 16:00

	offHoursWindowStart = 16 * 60 // 16:00, wraps past midnight
	offHoursWindowEnd   = 9 * 60  // 09:00 next day, inclusive
)

// Fixed minute for the designated hourly task
const positionMonitorMinute = 30

// Manager computes next execution times and validates schedule edits. All
// methods are pure and safe to call from any goroutine.
type Manager struct{}

// NewManager creates a new schedule manager
func NewManager() *Manager {
	return &Manager{}
}

// CalculateNextExecution returns the next time the schedule is due after now,
// or nil when the schedule is disabled or malformed.
func (m *Manager) CalculateNextExecution(s *models.TaskSchedule, now time.Time) *time.Time {
	if s == nil || !s.Enabled {
		return nil
	}

	startMin, err := parseClock(s.StartTime)
	if err != nil {
		return nil
	}

	var endMin = -1
	if s.EndTime != nil {
		if em, err := parseClock(*s.EndTime); err == nil {
			endMin = em
		}
	}

	nowMin := now.Hour()*60 + now.Minute()

	switch {
	case s.IsHourly:
		return m.nextHourly(now, startMin, endMin)

	case s.IsContinuous:
		if nowMin < startMin {
			return timeAt(now, startMin, 0)
		}
		if endMin < 0 || nowMin < endMin {
			// Inside the window the task is perpetually due
			t := now
			return &t
		}
		return timeAt(now, startMin, 1)

	default: // once daily
		if nowMin < startMin {
			return timeAt(now, startMin, 0)
		}
		return timeAt(now, startMin, 1)
	}
}

// nextHourly finds the next fixed-minute slot. The schedule's start minute is
// the fixed minute; when an end time is set, slots past its hour roll over to
// tomorrow's start time.
func (m *Manager) nextHourly(now time.Time, startMin, endMin int) *time.Time {
	fixedMinute := startMin % 60

	hour := now.Hour()
	if now.Minute() >= fixedMinute {
		hour++
	}

	if hour >= 24 {
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, fixedMinute, 0, 0, now.Location()).AddDate(0, 0, 1)
		return &next
	}

	if endMin >= 0 && hour > endMin/60 {
		return timeAt(now, startMin, 1)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, fixedMinute, 0, 0, now.Location())
	return &next
}

// ValidateSchedule checks a schedule edit and returns (ok, message). Failures
// are always returned as a message, never as an error.
func (m *Manager) ValidateSchedule(taskName string, isHourly, isContinuous bool, startTime string, endTime *string) (bool, string) {
	if !models.IsValidTaskName(taskName) {
		return false, fmt.Sprintf("unknown task name: %s", taskName)
	}

	startMin, err := parseClock(startTime)
	if err != nil {
		return false, fmt.Sprintf("invalid start_time %q: must be HH:MM", startTime)
	}

	endMin := -1
	if endTime != nil {
		endMin, err = parseClock(*endTime)
		if err != nil {
			return false, fmt.Sprintf("invalid end_time %q: must be HH:MM", *endTime)
		}
	}

	if isHourly && isContinuous {
		return false, "schedule cannot be both hourly and continuous"
	}

	if isHourly {
		if taskName != models.TaskPositionMonitor {
			return false, fmt.Sprintf("task %s does not support hourly scheduling", taskName)
		}
		if startMin%60 != positionMonitorMinute {
			return false, fmt.Sprintf("%s hourly schedule must use minute :%02d", models.TaskPositionMonitor, positionMonitorMinute)
		}
		return true, ""
	}

	if isContinuous {
		if taskName != models.TaskSellMonitor {
			return false, fmt.Sprintf("task %s does not support continuous scheduling", taskName)
		}
		if endTime == nil {
			return false, fmt.Sprintf("%s continuous schedule requires an end time", models.TaskSellMonitor)
		}
		if endMin <= startMin {
			return false, "continuous schedule end time must be after start time"
		}
		return true, ""
	}

	// Once daily
	if endTime != nil {
		return false, "daily schedule cannot have an end time"
	}

	if taskName == models.TaskAnalysis {
		// Off-hours window wraps midnight, both boundaries inclusive
		if startMin < offHoursWindowStart && startMin > offHoursWindowEnd {
			return false, fmt.Sprintf("%s must be scheduled between 16:00 and 09:00", models.TaskAnalysis)
		}
		return true, ""
	}

	if startMin < businessWindowStart || startMin > businessWindowEnd {
		return false, fmt.Sprintf("task %s must be scheduled between 08:00 and 16:00", taskName)
	}

	return true, ""
}

// parseClock parses "HH:MM" into minutes since midnight. Strict: trailing
// characters and out-of-range fields are rejected.
func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// timeAt builds a concrete time on now's date (plus dayOffset days) at the
// given minutes since midnight
func timeAt(now time.Time, minOfDay int, dayOffset int) *time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), minOfDay/60, minOfDay%60, 0, 0, now.Location())
	if dayOffset != 0 {
		t = t.AddDate(0, 0, dayOffset)
	}
	return &t
}
