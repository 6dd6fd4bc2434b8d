package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	CurrentVersion = "v0.3.0" // Overwritten by ldflags during build
	githubAPI      = "https://api.github.com/repos/chukul/awsx/releases/latest"
	checkInterval  = 24 * time.Hour
)

type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

type versionCheck struct {
	LastChecked   time.Time `json:"last_checked"`
	LatestVersion string    `json:"latest_version"`
}

// CheckForUpdates prints a hint on stderr when a newer release exists.
// Non-blocking and silent on any failure.
func CheckForUpdates() {
	if !shouldCheck() {
		return
	}

	go func() {
		latest, url, err := FetchLatestVersion()
		if err != nil {
			return
		}
		if IsNewer(latest, CurrentVersion) {
			fmt.Fprintf(os.Stderr, "Update available: %s -> %s (%s)\n", CurrentVersion, latest, url)
		}
		saveLastCheck(latest)
	}()
}

func stampPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".awsx", "version_check.json")
}

func shouldCheck() bool {
	data, err := os.ReadFile(stampPath())
	if err != nil {
		return true
	}
	var check versionCheck
	if err := json.Unmarshal(data, &check); err != nil {
		return true
	}
	return time.Since(check.LastChecked) > checkInterval
}

func FetchLatestVersion() (string, string, error) {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(githubAPI)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var release githubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", "", err
	}
	return release.TagName, release.HTMLURL, nil
}

// IsNewer does a simple semver-ish comparison.
func IsNewer(latest, current string) bool {
	latest = strings.TrimPrefix(latest, "v")
	current = strings.TrimPrefix(current, "v")
	return latest > current
}

func saveLastCheck(version string) {
	path := stampPath()
	if path == "" {
		return
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o700)
	data, _ := json.Marshal(versionCheck{LastChecked: time.Now(), LatestVersion: version})
	_ = os.WriteFile(path, data, 0o600)
}
