package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ScriptLogin runs the external browser login script. The script opens the
// chat service's web client (headless or visible), lets the user complete
// SSO/MFA when interactive, and prints the resulting localStorage token map
// as JSON on stdout. Progress goes to stderr.
type ScriptLogin struct {
	// ScriptPath overrides script discovery when non-empty.
	ScriptPath string
	logger     *zap.Logger
}

// NewScriptLogin creates the exec-based login collaborator.
func NewScriptLogin(logger *zap.Logger) *ScriptLogin {
	return &ScriptLogin{logger: logger}
}

// Login invokes the login script and parses its output into a Bundle.
func (s *ScriptLogin) Login(ctx context.Context, headless bool, timeout time.Duration) (*Bundle, error) {
	script, err := s.findScript()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	args := []string{script, "--timeout", strconv.Itoa(int(timeout.Seconds()))}
	if headless {
		args = append(args, "--headless")
	}

	cmd := exec.CommandContext(ctx, "node", args...)
	cmd.Stderr = os.Stderr

	s.logger.Debug("running login script",
		zap.String("script", script), zap.Bool("headless", headless))

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("login script timed out after %s", timeout)
		}
		return nil, fmt.Errorf("login script: %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("parsing login script output: %w", err)
	}

	return BundleFromLocalStorage(entries)
}

// findScript locates the login script: $TMZ_AUTH_SCRIPT, then scripts/ next
// to the executable's ancestors (dev layout), then share/tmz/ (installed).
func (s *ScriptLogin) findScript() (string, error) {
	if s.ScriptPath != "" {
		return s.ScriptPath, nil
	}
	if p := os.Getenv("TMZ_AUTH_SCRIPT"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	exe, err := os.Executable()
	if err == nil {
		dir := filepath.Dir(exe)
		for i := 0; i < 6; i++ {
			candidate := filepath.Join(dir, "scripts", "teams-auth.mjs")
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
		installed := filepath.Join(filepath.Dir(filepath.Dir(exe)), "share", "tmz", "teams-auth.mjs")
		if _, err := os.Stat(installed); err == nil {
			return installed, nil
		}
	}

	return "", fmt.Errorf("login script not found: set TMZ_AUTH_SCRIPT or install the scripts directory")
}
