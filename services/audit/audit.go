package audit

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Service event kinds recorded in the local audit log
const (
	EventServiceStarted    = "service_started"
	EventServiceStopped    = "service_stopped"
	EventCrashReconciled   = "crash_reconciled"
	EventCredentialSealed  = "credential_sealed"
	EventCredentialCleanup = "credential_cleanup"
)

// Entry is one recorded service event
type Entry struct {
	ID        int64     `json:"id"`
	TenantID  uint      `json:"tenant_id"`
	TaskName  string    `json:"task_name"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Log is an append-only local event log backed by SQLite. It is a best-effort
// operational trail: write failures are logged and never propagated to the
// orchestration path.
type Log struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the local audit database
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	l := &Log{db: db}
	if err := l.createTable(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS service_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL,
		task_name TEXT NOT NULL DEFAULT '',
		event TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_service_events_tenant ON service_events(tenant_id, created_at);
	`
	if _, err := l.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}
	return nil
}

// Record appends one event. Failures are logged, never returned.
func (l *Log) Record(tenantID uint, taskName, event, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		"INSERT INTO service_events (tenant_id, task_name, event, detail) VALUES (?, ?, ?, ?)",
		tenantID, taskName, event, detail,
	)
	if err != nil {
		log.Printf("Error writing audit event %s for tenant %d: %v", event, tenantID, err)
	}
}

// Recent returns the newest events for a tenant
func (l *Log) Recent(tenantID uint, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(
		"SELECT id, tenant_id, task_name, event, detail, created_at FROM service_events WHERE tenant_id = ? ORDER BY id DESC LIMIT ?",
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.TaskName, &e.Event, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database
func (l *Log) Close() error {
	return l.db.Close()
}
