package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tmzdev/tmz/internal/lock"
)

func TestIsRunningNoMarker(t *testing.T) {
	running, pid := IsRunning(filepath.Join(t.TempDir(), "tmzd.pid"))
	if running || pid != 0 {
		t.Errorf("got %v/%d, want false/0", running, pid)
	}
}

func TestIsRunningLiveMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmzd.pid")
	m, err := lock.Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Release() }()

	running, pid := IsRunning(path)
	if !running || pid != os.Getpid() {
		t.Errorf("got %v/%d, want true/%d", running, pid, os.Getpid())
	}
}

func TestIsRunningStaleMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmzd.pid")
	// A pid beyond the default pid_max can't belong to a live process.
	content := fmt.Sprintf("pid=%d\n", 1<<22)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	running, pid := IsRunning(path)
	if running {
		t.Error("stale marker reported as running")
	}
	if pid != 1<<22 {
		t.Errorf("pid = %d, want the stale pid for cleanup", pid)
	}
}

func TestStopNotRunning(t *testing.T) {
	if err := Stop(filepath.Join(t.TempDir(), "tmzd.pid")); err == nil {
		t.Fatal("Stop with no daemon succeeded, want error")
	}
}

func TestStopRemovesStaleMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmzd.pid")
	if err := os.WriteFile(path, []byte(fmt.Sprintf("pid=%d\n", 1<<22)), 0600); err != nil {
		t.Fatal(err)
	}

	if err := Stop(path); err == nil {
		t.Fatal("Stop on stale marker succeeded, want error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("stale marker not removed")
	}
}
