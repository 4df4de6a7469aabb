package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go_trading_automation/models"
	"go_trading_automation/repository"
)

// NotificationController handles notification preference and history requests
type NotificationController struct {
	notifications *repository.NotificationRepository
}

// NewNotificationController creates a new notification controller
func NewNotificationController(notifications *repository.NotificationRepository) *NotificationController {
	return &NotificationController{notifications: notifications}
}

// ListNotifications returns recent notifications for a tenant
// GET /api/tenants/:tenant_id/notifications
func (nc *NotificationController) ListNotifications(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	notifications, err := nc.notifications.ListNotifications(tenantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": notifications})
}

// UpdatePreference enables or disables one delivery channel for an event type
// PUT /api/tenants/:tenant_id/notifications/preferences
func (nc *NotificationController) UpdatePreference(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}

	var request struct {
		EventType string `json:"event_type" binding:"required"`
		Channel   string `json:"channel" binding:"required"`
		Enabled   bool   `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch request.Channel {
	case models.ChannelPush, models.ChannelEmail, models.ChannelInApp:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown channel"})
		return
	}

	if err := nc.notifications.UpsertPreference(tenantID, request.EventType, request.Channel, request.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save preference"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Preference updated"})
}
