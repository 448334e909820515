package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const systemdUnit = `[Unit]
Description=tmz background sync daemon
After=network-online.target

[Service]
Type=simple
ExecStart=%s daemon run
Restart=on-failure
RestartSec=30

[Install]
WantedBy=default.target
`

const launchdPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>dev.tmz.daemon</string>
	<key>ProgramArguments</key>
	<array>
		<string>%s</string>
		<string>daemon</string>
		<string>run</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>%s</string>
	<key>StandardErrorPath</key>
	<string>%s</string>
</dict>
</plist>
`

// ServiceFilePath returns where the user service definition lives on this
// platform (systemd user unit on Linux, launchd agent on macOS).
func ServiceFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "LaunchAgents", "dev.tmz.daemon.plist"), nil
	}
	return filepath.Join(home, ".config", "systemd", "user", "tmz.service"), nil
}

// InstallService writes a user service definition that runs the daemon at
// login, using the current executable path. Returns the file written.
func InstallService(logPath string) (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}
	path, err := ServiceFilePath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	var content string
	if runtime.GOOS == "darwin" {
		content = fmt.Sprintf(launchdPlist, exe, logPath, logPath)
	} else {
		content = fmt.Sprintf(systemdUnit, exe)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// UninstallService removes the user service definition. Removing an absent
// definition is not an error.
func UninstallService() (string, error) {
	path, err := ServiceFilePath()
	if err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	return path, nil
}
