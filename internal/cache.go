package internal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/zalando/go-keyring"
)

const keyringService = "awsx-cache"

// CacheEntry wraps a resolved credential set for persistence, keyed by
// profile name.
type CacheEntry struct {
	Profile     string        `json:"profile"`
	Credentials CredentialSet `json:"credentials"`
	StoredAt    time.Time     `json:"stored_at"`
}

// Cache persists resolved credentials per profile. Two backends: the platform
// keyring first, then an encrypted file per profile under dir. The file
// backend stays disabled without a passphrase, so nothing is ever written
// unencrypted. The cache is advisory: reads always re-check expiry, and
// concurrent invocations for the same profile are last-writer-wins.
type Cache struct {
	dir        string
	passphrase string
	skipStatic bool
	now        func() time.Time
}

// OpenCache prepares a cache rooted at dir. An empty passphrase disables the
// encrypted-file fallback.
func OpenCache(dir, passphrase string, skipStatic bool) *Cache {
	return &Cache{
		dir:        dir,
		passphrase: passphrase,
		skipStatic: skipStatic,
		now:        time.Now,
	}
}

// DefaultCacheDir is ~/.awsx/cache.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".awsx", "cache")
}

// Load returns the cached credentials for a profile when a valid,
// non-expired entry exists in either backend. Corrupt or expired entries are
// discarded and reported as a miss.
func (c *Cache) Load(profile string) (*CredentialSet, bool) {
	if creds, ok := c.loadKeyring(profile); ok {
		return creds, true
	}
	return c.loadFile(profile)
}

func (c *Cache) loadKeyring(profile string) (*CredentialSet, bool) {
	payload, err := keyring.Get(keyringService, profile)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			Log.Debug("keyring unavailable", "err", err)
		}
		return nil, false
	}
	var entry CacheEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		cerr := &CacheCorruptionError{Profile: profile, Backend: "keyring", Err: err}
		Log.Info("discarding corrupt cache entry", "profile", profile, "err", cerr)
		_ = keyring.Delete(keyringService, profile)
		return nil, false
	}
	if !entry.Credentials.ValidAt(c.now()) {
		_ = keyring.Delete(keyringService, profile)
		return nil, false
	}
	return &entry.Credentials, true
}

func (c *Cache) loadFile(profile string) (*CredentialSet, bool) {
	if c.passphrase == "" {
		return nil, false
	}
	path := c.filePath(profile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	entry, err := c.decodeFile(data)
	if err != nil {
		cerr := &CacheCorruptionError{Profile: profile, Backend: "file", Err: err}
		Log.Info("discarding corrupt cache entry", "profile", profile, "err", cerr)
		_ = os.Remove(path)
		return nil, false
	}
	if !entry.Credentials.ValidAt(c.now()) {
		_ = os.Remove(path)
		return nil, false
	}
	return &entry.Credentials, true
}

func (c *Cache) decodeFile(data []byte) (*CacheEntry, error) {
	if len(data) <= saltLen {
		return nil, errors.New("cache file too short")
	}
	salt, sealed := data[:saltLen], data[saltLen:]
	key, err := DeriveKey(c.passphrase, salt)
	if err != nil {
		return nil, err
	}
	plain, err := Decrypt(sealed, key)
	if err != nil {
		return nil, err
	}
	var entry CacheEntry
	if err := json.Unmarshal(plain, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Store writes a fresh resolution back. Non-expiring credentials are stored
// like any other entry unless skip-static was requested. A keyring failure
// falls through to the encrypted file; with no backend available the write is
// skipped rather than stored unprotected.
func (c *Cache) Store(profile string, creds *CredentialSet) error {
	if !creds.Temporary() && c.skipStatic {
		Log.Debug("skipping cache write for non-expiring credentials", "profile", profile)
		return nil
	}

	entry := CacheEntry{Profile: profile, Credentials: *creds, StoredAt: c.now()}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := keyring.Set(keyringService, profile, string(payload)); err == nil {
		c.indexAdd(profile)
		return nil
	} else if !errors.Is(err, keyring.ErrUnsupportedPlatform) {
		Log.Debug("keyring write failed, trying file backend", "err", err)
	}

	if c.passphrase == "" {
		Log.Debug("no cache passphrase, skipping cache write", "profile", profile)
		return nil
	}

	salt, err := NewSalt()
	if err != nil {
		return err
	}
	key, err := DeriveKey(c.passphrase, salt)
	if err != nil {
		return err
	}
	sealed, err := Encrypt(payload, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(c.filePath(profile), append(salt, sealed...), 0o600); err != nil {
		return err
	}
	c.indexAdd(profile)
	return nil
}

// Clear removes entries from both backends. Target is a profile name or
// "all".
func (c *Cache) Clear(target string) error {
	if target == "all" {
		for _, name := range c.indexNames() {
			_ = keyring.Delete(keyringService, name)
		}
		matches, _ := filepath.Glob(filepath.Join(c.dir, "*.cred"))
		for _, m := range matches {
			_ = os.Remove(m)
		}
		_ = os.Remove(c.indexPath())
		return nil
	}

	_ = keyring.Delete(keyringService, target)
	_ = os.Remove(c.filePath(target))
	c.indexRemove(target)
	return nil
}

func (c *Cache) filePath(profile string) string {
	return filepath.Join(c.dir, profile+".cred")
}

// The index records which profiles have ever been cached (names only, no
// secrets) so "clear all" can sweep keyring entries it cannot enumerate.
func (c *Cache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *Cache) indexNames() []string {
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil
	}
	return names
}

func (c *Cache) indexAdd(profile string) {
	names := c.indexNames()
	if slices.Contains(names, profile) {
		return
	}
	names = append(names, profile)
	c.writeIndex(names)
}

func (c *Cache) indexRemove(profile string) {
	names := c.indexNames()
	i := slices.Index(names, profile)
	if i < 0 {
		return
	}
	names = slices.Delete(names, i, i+1)
	c.writeIndex(names)
}

func (c *Cache) writeIndex(names []string) {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return
	}
	data, _ := json.Marshal(names)
	_ = os.WriteFile(c.indexPath(), data, 0o600)
}
