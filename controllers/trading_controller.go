package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go_trading_automation/models"
	"go_trading_automation/repository"
	"go_trading_automation/services/credentials"
	"go_trading_automation/services/trading"
)

// TradingController handles unified trading service requests
type TradingController struct {
	service *trading.Service
	tenants *repository.TenantRepository
	vault   *credentials.Vault
}

// NewTradingController creates a new trading controller
func NewTradingController(service *trading.Service, tenants *repository.TenantRepository, vault *credentials.Vault) *TradingController {
	return &TradingController{service: service, tenants: tenants, vault: vault}
}

// StartUnified starts the tenant's unified trading service
// POST /api/tenants/:tenant_id/trading/start
func (tc *TradingController) StartUnified(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}

	if err := tc.service.StartService(tenantID); err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "not found"):
			c.JSON(http.StatusNotFound, gin.H{"error": msg})
		case strings.Contains(msg, "inactive"), strings.Contains(msg, "credentials"):
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unified trading service started"})
}

// StopUnified stops the tenant's unified trading service
// POST /api/tenants/:tenant_id/trading/stop
func (tc *TradingController) StopUnified(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}

	if err := tc.service.StopService(tenantID); err != nil {
		if strings.Contains(err.Error(), "not running") {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unified trading service stopped"})
}

// GetUnifiedStatus returns the tenant's unified service status row
// GET /api/tenants/:tenant_id/trading/status
func (tc *TradingController) GetUnifiedStatus(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}

	status, err := tc.service.GetServiceStatus(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch service status"})
		return
	}
	if status == nil {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"tenant_id": tenantID, "is_running": false}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

// ListActiveServices returns tenant IDs with a live unified loop
// GET /api/trading/active
func (tc *TradingController) ListActiveServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": tc.service.ListActiveServices()})
}

// ListTenants returns the active tenants available for automation
// GET /api/tenants
func (tc *TradingController) ListTenants(c *gin.Context) {
	tenants, err := tc.tenants.ListActiveTenants()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tenants"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tenants})
}

// SetCredentials seals and stores a tenant's broker login
// PUT /api/tenants/:tenant_id/credentials
func (tc *TradingController) SetCredentials(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}

	var request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant, err := tc.tenants.GetTenant(tenantID)
	if err != nil || tenant == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		return
	}

	plaintext := []byte(request.Username + ":" + request.Password)
	ciphertext, nonce, salt, err := tc.vault.Seal(plaintext)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to seal credentials"})
		return
	}

	cred := &models.BrokerCredential{
		TenantID:   tenantID,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Salt:       salt,
	}
	if err := tc.tenants.UpsertCredential(cred); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Credentials stored"})
}
