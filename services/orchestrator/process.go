package orchestrator

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// ProcessController launches and stops task worker processes. The manager only
// sees PIDs so tests can substitute a fake.
type ProcessController interface {
	Launch(tenantID uint, taskName string) (int, error)
	Stop(pid int, grace time.Duration) error
	Alive(pid int) bool
}

// ExecController re-executes the current binary in run-task mode. Each task
// worker is an OS process so a crash cannot take the API server down.
type ExecController struct{}

func NewExecController() *ExecController {
	return &ExecController{}
}

// Launch starts a detached worker process and returns its PID. The child is
// reaped in the background so it never becomes a zombie.
func (c *ExecController) Launch(tenantID uint, taskName string) (int, error) {
	bin, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve executable path: %w", err)
	}

	cmd := exec.Command(bin, "run-task",
		"--tenant", strconv.FormatUint(uint64(tenantID), 10),
		"--task", taskName)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start worker process: %w", err)
	}

	pid := cmd.Process.Pid
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("Task worker pid=%d (%s tenant=%d) exited: %v", pid, taskName, tenantID, err)
		}
	}()
	return pid, nil
}

// Stop sends SIGTERM and escalates to SIGKILL when the process is still alive
// after the grace period.
func (c *ExecController) Stop(pid int, grace time.Duration) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		return nil
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !c.Alive(pid) {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}

	log.Printf("Process %d did not exit within %s, sending SIGKILL", pid, grace)
	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return nil
	}
	return nil
}

// Alive reports whether the PID still maps to a live process.
func (c *ExecController) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
