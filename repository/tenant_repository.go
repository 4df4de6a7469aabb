package repository

import (
	"errors"
	"fmt"

	"go_trading_automation/models"

	"gorm.io/gorm"
)

// TenantRepository persists tenants and their sealed broker credentials
type TenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a tenant repository
func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetTenant returns a tenant by ID, or nil when none exists
func (r *TenantRepository) GetTenant(id uint) (*models.Tenant, error) {
	var t models.Tenant
	err := r.db.First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant %d: %w", id, err)
	}
	return &t, nil
}

// ListActiveTenants returns all active tenants
func (r *TenantRepository) ListActiveTenants() ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := r.db.Where("is_active = ?", true).Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	return tenants, nil
}

// GetCredential returns the sealed broker credential for a tenant, or nil
// when none is stored
func (r *TenantRepository) GetCredential(tenantID uint) (*models.BrokerCredential, error) {
	var c models.BrokerCredential
	err := r.db.Where("tenant_id = ?", tenantID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential for tenant %d: %w", tenantID, err)
	}
	return &c, nil
}

// UpsertCredential stores or replaces the sealed broker credential
func (r *TenantRepository) UpsertCredential(c *models.BrokerCredential) error {
	existing, err := r.GetCredential(c.TenantID)
	if err != nil {
		return err
	}
	if existing == nil {
		if err := r.db.Create(c).Error; err != nil {
			return fmt.Errorf("failed to create credential for tenant %d: %w", c.TenantID, err)
		}
		return nil
	}

	updates := map[string]interface{}{
		"ciphertext": c.Ciphertext,
		"nonce":      c.Nonce,
		"salt":       c.Salt,
	}
	if err := r.db.Model(existing).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update credential for tenant %d: %w", c.TenantID, err)
	}
	return nil
}
