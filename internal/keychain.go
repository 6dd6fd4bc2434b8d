//go:build darwin

package internal

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/keybase/go-keychain"
)

const (
	keychainService = "awsx"
	keychainAccount = "cache-passphrase"
)

// CachePassphrase retrieves the session-cache passphrase from one of three
// sources, in priority order: explicit value, AWSX_CACHE_SECRET, macOS
// Keychain.
func CachePassphrase(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv("AWSX_CACHE_SECRET"); env != "" {
		return env, nil
	}
	secret, err := keychainPassphrase()
	if err == nil && secret != "" {
		return secret, nil
	}
	return "", fmt.Errorf("no cache passphrase found")
}

// SetupKeychain generates a random passphrase and stores it in the macOS
// Keychain so later invocations can cache without prompting.
func SetupKeychain() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(key)

	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(keychainService)
	item.SetAccount(keychainAccount)
	item.SetLabel("awsx session cache passphrase")
	item.SetData([]byte(secret))
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlocked)

	keychain.DeleteItem(item)

	if err := keychain.AddItem(item); err != nil {
		return "", fmt.Errorf("failed to save to keychain: %w", err)
	}
	return secret, nil
}

func keychainPassphrase() (string, error) {
	query := keychain.NewItem()
	query.SetSecClass(keychain.SecClassGenericPassword)
	query.SetService(keychainService)
	query.SetAccount(keychainAccount)
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := keychain.QueryItem(query)
	if err != nil {
		return "", err
	}
	if len(results) != 1 {
		return "", fmt.Errorf("passphrase not found in keychain")
	}
	return string(results[0].Data), nil
}
