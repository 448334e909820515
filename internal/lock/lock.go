// Package lock implements the daemon's single-instance PID marker: a file
// held under an exclusive flock for the lifetime of the process, whose
// content records the holder's pid for other processes to inspect.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// HeldError means another live process holds the marker.
type HeldError struct {
	PID  int
	Path string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("marker %s is held by pid %d", e.Path, e.PID)
}

// Marker is an acquired PID marker. Release it when the process exits.
type Marker struct {
	file *os.File
	path string
}

// Acquire takes the marker at path exclusively and records the current
// pid in it. Returns a HeldError when another process has it locked.
func Acquire(path string) (*Marker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating marker directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening marker file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		pid := readPIDFromFile(f)
		_ = f.Close()
		return nil, &HeldError{PID: pid, Path: path}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("truncating marker file: %w", err)
	}
	content := fmt.Sprintf("pid=%d\nstarted=%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	if _, err := f.WriteAt([]byte(content), 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("writing marker file: %w", err)
	}

	return &Marker{file: f, path: path}, nil
}

// Release removes the marker file and drops the flock.
func (m *Marker) Release() error {
	if m.file == nil {
		return nil
	}
	_ = os.Remove(m.path)
	err := m.file.Close()
	m.file = nil
	return err
}

// Path returns the marker file path.
func (m *Marker) Path() string {
	return m.path
}

// ReadPID reads the pid recorded in the marker at path. Returns 0 when the
// marker is absent or unparseable.
func ReadPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	return parsePID(string(data))
}

// Alive reports whether the process with the given pid exists. A pid we
// lack permission to signal still counts as alive.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

func readPIDFromFile(f *os.File) int {
	buf := make([]byte, 256)
	n, err := f.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return 0
	}
	return parsePID(string(buf[:n]))
}

func parsePID(content string) int {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "pid="); ok {
			pid, err := strconv.Atoi(v)
			if err != nil {
				return 0
			}
			return pid
		}
	}
	// legacy markers held a bare pid
	pid, err := strconv.Atoi(strings.TrimSpace(content))
	if err != nil {
		return 0
	}
	return pid
}
