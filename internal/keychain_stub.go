//go:build !darwin

package internal

import (
	"fmt"
	"os"
)

// CachePassphrase on non-macOS platforms knows only the explicit value and
// the environment; there is no keychain fall-through.
func CachePassphrase(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv("AWSX_CACHE_SECRET"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no cache passphrase found (set AWSX_CACHE_SECRET)")
}

// SetupKeychain is macOS-only.
func SetupKeychain() (string, error) {
	return "", fmt.Errorf("keychain integration is only supported on macOS")
}
