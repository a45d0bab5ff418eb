package utils

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// SystemInfo holds information about the current system
type SystemInfo struct {
	OS            string
	Architecture  string
	ChromePresent bool
	ChromePath    string
}

// DetectSystem returns information about the current operating system and architecture
func DetectSystem() SystemInfo {
	info := SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}
	info.ChromePresent, info.ChromePath = CheckChrome()
	return info
}

// --------------------------------------
// CHROME CHECK
// --------------------------------------

var chromeBinaries = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
}

// CheckChrome checks if google-chrome or chromium is installed
func CheckChrome() (bool, string) {
	for _, bin := range chromeBinaries {
		if path, err := exec.LookPath(bin); err == nil {
			return true, path
		}
	}
	for _, path := range commonChromePaths(runtime.GOOS) {
		if _, err := os.Stat(path); err == nil {
			return true, path
		}
	}
	return false, ""
}

func commonChromePaths(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Chromium\Application\chromium.exe`,
			`C:\Program Files (x86)\Chromium\Application\chromium.exe`,
		}
	default:
		return nil
	}
}

// ChromeVersion runs the binary with --version.
func ChromeVersion(path string) string {
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

// --------------------------------------
// INSTALLATION INSTRUCTIONS
// --------------------------------------

// ChromeInstallHint tells the operator how to get a browser for manual printing.
func ChromeInstallHint(goos string) string {
	switch goos {
	case "linux":
		return "sudo apt install chromium-browser (Debian/Ubuntu), sudo dnf install chromium (Fedora) or sudo pacman -S chromium (Arch)"
	case "darwin":
		return "brew install --cask google-chrome or brew install chromium"
	case "windows":
		return "download Google Chrome from https://www.google.com/chrome/"
	default:
		return "install Chrome or Chromium for your OS"
	}
}

// ErrChromeMissing is returned by ValidateChrome when no browser binary is found.
var ErrChromeMissing = errors.New("chrome/chromium is required for manual print documents but is not installed")

// ValidateChrome returns the browser path, or ErrChromeMissing.
func ValidateChrome(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured chrome path %q: %w", configured, err)
		}
		return configured, nil
	}
	if ok, path := CheckChrome(); ok {
		return path, nil
	}
	return "", ErrChromeMissing
}
