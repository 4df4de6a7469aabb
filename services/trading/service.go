package trading

import (
	"fmt"
	"log"
	"sync"
	"time"

	"go_trading_automation/models"
	"go_trading_automation/services/schedule"
	"go_trading_automation/services/tasks"
)

// TenantStore reads tenants and their sealed broker credentials.
type TenantStore interface {
	GetTenant(id uint) (*models.Tenant, error)
	GetCredential(tenantID uint) (*models.BrokerCredential, error)
}

// UnifiedStatusStore persists the per-tenant continuous service state.
type UnifiedStatusStore interface {
	GetStatus(tenantID uint) (*models.UnifiedServiceStatus, error)
	MarkRunning(tenantID uint, tradeMode string) error
	MarkStopped(tenantID uint) error
	RecordError(tenantID uint, message string) error
	Heartbeat(tenantID uint) error
}

// CredentialVault unseals broker credentials and manages their ephemeral
// plaintext artifacts.
type CredentialVault interface {
	Open(ciphertext, nonce, salt []byte) ([]byte, error)
	WriteArtifact(dir string, tenantID uint, plaintext []byte) (string, error)
	RemoveArtifact(path string) error
}

// ScheduleSource lists the schedules the unified loop dispatches.
type ScheduleSource interface {
	ListEnabledSchedules() ([]models.TaskSchedule, error)
}

// AuditRecorder appends service events to the local audit trail.
type AuditRecorder interface {
	Record(tenantID uint, taskName, event, detail string)
}

// Service runs one continuous trading loop per tenant. All task dispatch for
// a tenant happens inside that tenant's single runner goroutine, so tasks
// never overlap within a tenant while tenants stay fully independent.
type Service struct {
	tenants   TenantStore
	statuses  UnifiedStatusStore
	vault     CredentialVault
	schedules ScheduleSource
	scheduler *schedule.Manager
	executor  tasks.Executor
	audit     AuditRecorder

	artifactDir  string
	tickInterval time.Duration

	// Guards tenantMu and runners.
	mu       sync.Mutex
	tenantMu map[uint]*sync.Mutex
	runners  map[uint]*runner

	now func() time.Time
}

func NewService(
	tenants TenantStore,
	statuses UnifiedStatusStore,
	vault CredentialVault,
	schedules ScheduleSource,
	scheduler *schedule.Manager,
	executor tasks.Executor,
	audit AuditRecorder,
	artifactDir string,
) *Service {
	return &Service{
		tenants:      tenants,
		statuses:     statuses,
		vault:        vault,
		schedules:    schedules,
		scheduler:    scheduler,
		executor:     executor,
		audit:        audit,
		artifactDir:  artifactDir,
		tickInterval: 30 * time.Second,
		tenantMu:     make(map[uint]*sync.Mutex),
		runners:      make(map[uint]*runner),
		now:          time.Now,
	}
}

// lockTenant serializes start/stop per tenant without blocking other tenants.
func (s *Service) lockTenant(tenantID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.tenantMu[tenantID]
	if !ok {
		mu = &sync.Mutex{}
		s.tenantMu[tenantID] = mu
	}
	return mu
}

// StartService brings up the tenant's unified loop. Starting an already
// running service is a no-op. In broker mode the sealed credentials must
// decrypt before anything else happens; any failure aborts the start with no
// state left behind.
func (s *Service) StartService(tenantID uint) error {
	mu := s.lockTenant(tenantID)
	mu.Lock()
	defer mu.Unlock()

	s.mu.Lock()
	_, running := s.runners[tenantID]
	s.mu.Unlock()
	if running {
		log.Printf("Unified service already running for tenant %d", tenantID)
		return nil
	}

	tenant, err := s.tenants.GetTenant(tenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant %d: %w", tenantID, err)
	}
	if tenant == nil {
		return fmt.Errorf("tenant %d not found", tenantID)
	}
	if !tenant.IsActive {
		return fmt.Errorf("tenant %d is inactive", tenantID)
	}

	artifactPath := ""
	if tenant.TradeMode == models.TradeModeBroker {
		artifactPath, err = s.prepareCredentials(tenantID)
		if err != nil {
			return s.failStart(tenantID, err)
		}
	}

	if err := s.statuses.MarkRunning(tenantID, tenant.TradeMode); err != nil {
		s.cleanupArtifact(tenantID, artifactPath)
		return s.failStart(tenantID, fmt.Errorf("failed to record service start: %w", err))
	}

	r := &runner{
		tenantID:     tenantID,
		tradeMode:    tenant.TradeMode,
		artifactPath: artifactPath,
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
		lastRun:      make(map[string]time.Time),
		startedAt:    s.now(),
	}
	s.mu.Lock()
	s.runners[tenantID] = r
	s.mu.Unlock()

	go s.run(r)

	log.Printf("Started unified trading service for tenant %d (mode=%s)", tenantID, tenant.TradeMode)
	s.audit.Record(tenantID, "", "service_started", fmt.Sprintf("mode=%s", tenant.TradeMode))
	return nil
}

// failStart records a start failure against the status row and makes sure the
// row does not claim the service is running.
func (s *Service) failStart(tenantID uint, err error) error {
	if stopErr := s.statuses.MarkStopped(tenantID); stopErr != nil {
		log.Printf("Failed to roll back status for tenant %d: %v", tenantID, stopErr)
	}
	if recErr := s.statuses.RecordError(tenantID, err.Error()); recErr != nil {
		log.Printf("Failed to record start failure for tenant %d: %v", tenantID, recErr)
	}
	return err
}

// prepareCredentials unseals the tenant's broker login and writes the
// ephemeral artifact the broker session reads. Fails fast when credentials
// are missing or will not decrypt.
func (s *Service) prepareCredentials(tenantID uint) (string, error) {
	cred, err := s.tenants.GetCredential(tenantID)
	if err != nil {
		return "", fmt.Errorf("failed to load broker credentials: %w", err)
	}
	if cred == nil {
		return "", fmt.Errorf("tenant %d has no broker credentials configured", tenantID)
	}

	plaintext, err := s.vault.Open(cred.Ciphertext, cred.Nonce, cred.Salt)
	if err != nil {
		return "", fmt.Errorf("failed to unseal broker credentials: %w", err)
	}

	path, err := s.vault.WriteArtifact(s.artifactDir, tenantID, plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to write credential artifact: %w", err)
	}
	s.audit.Record(tenantID, "", "credential_sealed", "artifact written")
	return path, nil
}

func (s *Service) cleanupArtifact(tenantID uint, path string) {
	if path == "" {
		return
	}
	if err := s.vault.RemoveArtifact(path); err != nil {
		log.Printf("Failed to remove credential artifact for tenant %d: %v", tenantID, err)
		return
	}
	s.audit.Record(tenantID, "", "credential_cleanup", "artifact removed")
}

// StopService shuts the tenant's loop down cooperatively, removes the
// credential artifact, and marks the status row stopped.
func (s *Service) StopService(tenantID uint) error {
	mu := s.lockTenant(tenantID)
	mu.Lock()
	defer mu.Unlock()

	s.mu.Lock()
	r, ok := s.runners[tenantID]
	if ok {
		delete(s.runners, tenantID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unified service is not running for tenant %d", tenantID)
	}

	close(r.stopChan)
	<-r.done

	s.cleanupArtifact(tenantID, r.artifactPath)

	if err := s.statuses.MarkStopped(tenantID); err != nil {
		return fmt.Errorf("failed to record service stop: %w", err)
	}

	log.Printf("Stopped unified trading service for tenant %d", tenantID)
	s.audit.Record(tenantID, "", "service_stopped", "")
	return nil
}

// StopAll stops every running tenant loop. Used during shutdown.
func (s *Service) StopAll() {
	s.mu.Lock()
	ids := make([]uint, 0, len(s.runners))
	for id := range s.runners {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.StopService(id); err != nil {
			log.Printf("Error stopping unified service for tenant %d: %v", id, err)
		}
	}
}

// IsServiceRunning reports whether this instance holds a live runner for the
// tenant.
func (s *Service) IsServiceRunning(tenantID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runners[tenantID]
	return ok
}

// ListActiveServices returns the tenant IDs with a live runner.
func (s *Service) ListActiveServices() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint, 0, len(s.runners))
	for id := range s.runners {
		ids = append(ids, id)
	}
	return ids
}

// GetServiceStatus returns the persisted status row for the tenant.
func (s *Service) GetServiceStatus(tenantID uint) (*models.UnifiedServiceStatus, error) {
	return s.statuses.GetStatus(tenantID)
}
