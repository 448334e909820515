package lock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireWritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmzd.pid")

	m, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Release() }()

	if pid := ReadPID(path); pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireTwiceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmzd.pid")

	m, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Release() }()

	// Within one process flock is re-entrant per fd, but the second open
	// gets a fresh fd, so LOCK_NB must refuse it.
	if _, err := Acquire(path); err == nil {
		t.Fatal("second Acquire succeeded, want HeldError")
	}
}

func TestReleaseRemovesMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmzd.pid")

	m, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Release(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("marker file survived release")
	}

	// The marker is reacquirable afterwards.
	m2, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = m2.Release()
}

func TestReadPIDFormats(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
		want    int
	}{
		{"structured", "pid=4242\nstarted=2026-01-01T00:00:00Z\n", 4242},
		{"bare", "4242\n", 4242},
		{"garbage", "not a pid", 0},
		{"empty", "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name)
			if err := os.WriteFile(path, []byte(tc.content), 0600); err != nil {
				t.Fatal(err)
			}
			if got := ReadPID(path); got != tc.want {
				t.Errorf("ReadPID = %d, want %d", got, tc.want)
			}
		})
	}

	if got := ReadPID(filepath.Join(dir, "missing")); got != 0 {
		t.Errorf("ReadPID(missing) = %d, want 0", got)
	}
}

func TestAlive(t *testing.T) {
	if !Alive(os.Getpid()) {
		t.Error("Alive(self) = false")
	}
	if Alive(0) {
		t.Error("Alive(0) = true")
	}
	// PID beyond the default pid_max is never alive.
	if Alive(1 << 22) {
		t.Error("Alive(huge) = true")
	}
}
