package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/tmzdev/tmz/internal/lock"
)

// stopPoll is how the stop sequence waits for a clean exit: up to
// stopPollAttempts checks, stopPollInterval apart, before escalating.
const (
	stopPollAttempts = 20
	stopPollInterval = 100 * time.Millisecond
)

// IsRunning reports whether a live daemon holds the PID marker. The pid is
// returned even for a stale marker so callers can report or clean it.
func IsRunning(pidPath string) (bool, int) {
	pid := lock.ReadPID(pidPath)
	if pid == 0 {
		return false, 0
	}
	return lock.Alive(pid), pid
}

// StartDetached spawns the current executable with the given args as a
// detached session leader, with stdout/stderr appended to logPath. Returns
// the child pid.
func StartDetached(pidPath, logPath string, args []string) (int, error) {
	running, pid := IsRunning(pidPath)
	if running {
		return 0, fmt.Errorf("daemon already running (pid %d)", pid)
	}
	if pid != 0 {
		// stale marker from a dead process
		_ = os.Remove(pidPath)
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locating executable: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return 0, fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	cmd := exec.Command(exe, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting daemon: %w", err)
	}
	return cmd.Process.Pid, nil
}

// Stop signals the running daemon with SIGTERM, waits briefly for a clean
// exit, then escalates to SIGKILL. The marker is removed either way.
func Stop(pidPath string) error {
	running, pid := IsRunning(pidPath)
	if !running {
		if pid != 0 {
			_ = os.Remove(pidPath)
			return fmt.Errorf("daemon not running (removed stale marker for pid %d)", pid)
		}
		return fmt.Errorf("daemon not running")
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signalling pid %d: %w", pid, err)
	}

	for i := 0; i < stopPollAttempts; i++ {
		time.Sleep(stopPollInterval)
		if !lock.Alive(pid) {
			_ = os.Remove(pidPath)
			return nil
		}
	}

	_ = syscall.Kill(pid, syscall.SIGKILL)
	time.Sleep(2 * stopPollInterval)
	_ = os.Remove(pidPath)
	return nil
}
