package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go_trading_automation/services/signals"
)

// SignalController handles trading signal lifecycle requests
type SignalController struct {
	lifecycle *signals.Lifecycle
}

// NewSignalController creates a new signal controller
func NewSignalController(lifecycle *signals.Lifecycle) *SignalController {
	return &SignalController{lifecycle: lifecycle}
}

// ListActive returns current active signals
// GET /api/signals/active
func (sc *SignalController) ListActive(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	active, err := sc.lifecycle.ListActive(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch signals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": active})
}

func signalParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signal id"})
		return 0, false
	}
	return uint(id), true
}

// MarkTraded transitions an active signal to traded
// POST /api/signals/:id/traded
func (sc *SignalController) MarkTraded(c *gin.Context) {
	id, ok := signalParam(c)
	if !ok {
		return
	}

	changed, err := sc.lifecycle.MarkAsTraded(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update signal"})
		return
	}
	if !changed {
		c.JSON(http.StatusConflict, gin.H{"error": "Signal is not active"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Signal marked as traded"})
}

// MarkRejected transitions an active signal to rejected
// POST /api/signals/:id/rejected
func (sc *SignalController) MarkRejected(c *gin.Context) {
	id, ok := signalParam(c)
	if !ok {
		return
	}

	changed, err := sc.lifecycle.MarkAsRejected(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update signal"})
		return
	}
	if !changed {
		c.JSON(http.StatusConflict, gin.H{"error": "Signal is not active"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Signal marked as rejected"})
}

// Reactivate returns a traded or rejected signal to active within the
// reactivation window
// POST /api/signals/:id/reactivate
func (sc *SignalController) Reactivate(c *gin.Context) {
	id, ok := signalParam(c)
	if !ok {
		return
	}

	changed, err := sc.lifecycle.MarkAsActive(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update signal"})
		return
	}
	if !changed {
		c.JSON(http.StatusConflict, gin.H{"error": "Signal cannot be reactivated"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Signal reactivated"})
}
