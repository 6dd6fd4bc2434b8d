package internal

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newTestCache(t *testing.T, passphrase string) *Cache {
	t.Helper()
	c := OpenCache(t.TempDir(), passphrase, false)
	return c
}

var testCreds = CredentialSet{
	AccessKeyID:     "AKIATEST1234",
	SecretAccessKey: "SecretKey1234",
	SessionToken:    "Token1234",
	Expiration:      time.Now().Add(1 * time.Hour).UTC().Truncate(time.Second),
	Region:          "us-west-2",
}

func TestCacheRoundTripKeyring(t *testing.T) {
	keyring.MockInit()
	c := newTestCache(t, "")

	creds := testCreds
	require.NoError(t, c.Store("dev", &creds))

	loaded, ok := c.Load("dev")
	require.True(t, ok)
	assert.Equal(t, creds.AccessKeyID, loaded.AccessKeyID)
	assert.Equal(t, creds.SecretAccessKey, loaded.SecretAccessKey)
	assert.Equal(t, creds.SessionToken, loaded.SessionToken)
	assert.True(t, creds.Expiration.Equal(loaded.Expiration))
}

func TestCacheExpiredEntryIsMiss(t *testing.T) {
	keyring.MockInit()
	c := newTestCache(t, "")

	creds := testCreds
	require.NoError(t, c.Store("dev", &creds))

	// Force "now" past the expiry. Expiry equal to now must also miss.
	for _, offset := range []time.Duration{0, time.Minute, 24 * time.Hour} {
		c.now = func() time.Time { return creds.Expiration.Add(offset) }
		_, ok := c.Load("dev")
		assert.False(t, ok, "entry with expiry <= now must be a miss (offset %v)", offset)
	}
}

func TestCacheJustBeforeExpiryIsHit(t *testing.T) {
	keyring.MockInit()
	c := newTestCache(t, "")

	creds := testCreds
	require.NoError(t, c.Store("dev", &creds))

	c.now = func() time.Time { return creds.Expiration.Add(-time.Second) }
	_, ok := c.Load("dev")
	assert.True(t, ok)
}

func TestCacheStaticEntryNeverExpires(t *testing.T) {
	keyring.MockInit()
	c := newTestCache(t, "")

	static := CredentialSet{AccessKeyID: "AKIA", SecretAccessKey: "SECRET"}
	require.NoError(t, c.Store("static", &static))

	c.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }
	loaded, ok := c.Load("static")
	require.True(t, ok)
	assert.Equal(t, "AKIA", loaded.AccessKeyID)
}

func TestCacheSkipStatic(t *testing.T) {
	keyring.MockInit()
	c := OpenCache(t.TempDir(), "", true)

	static := CredentialSet{AccessKeyID: "AKIA", SecretAccessKey: "SECRET"}
	require.NoError(t, c.Store("static", &static))

	_, ok := c.Load("static")
	assert.False(t, ok, "static entry must not be stored when skip-static is set")
}

func TestCacheFileBackendRoundTrip(t *testing.T) {
	keyring.MockInitWithError(errors.New("keyring unavailable"))
	c := newTestCache(t, "correct horse battery staple")

	creds := testCreds
	require.NoError(t, c.Store("dev", &creds))

	// The entry must live in an encrypted file, not the keyring.
	path := c.filePath("dev")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), creds.SecretAccessKey, "cache file must not hold plaintext secrets")

	loaded, ok := c.Load("dev")
	require.True(t, ok)
	assert.Equal(t, creds.AccessKeyID, loaded.AccessKeyID)
	assert.Equal(t, creds.SecretAccessKey, loaded.SecretAccessKey)
}

func TestCacheFileBackendDisabledWithoutPassphrase(t *testing.T) {
	keyring.MockInitWithError(errors.New("keyring unavailable"))
	c := newTestCache(t, "")

	creds := testCreds
	require.NoError(t, c.Store("dev", &creds))

	_, err := os.Stat(c.filePath("dev"))
	assert.True(t, os.IsNotExist(err), "nothing may be written without a passphrase")

	_, ok := c.Load("dev")
	assert.False(t, ok)
}

func TestCacheCorruptFileDiscarded(t *testing.T) {
	keyring.MockInitWithError(errors.New("keyring unavailable"))
	c := newTestCache(t, "pass")

	require.NoError(t, os.MkdirAll(c.dir, 0o700))
	require.NoError(t, os.WriteFile(c.filePath("dev"), []byte("not an encrypted entry"), 0o600))

	_, ok := c.Load("dev")
	assert.False(t, ok)

	_, err := os.Stat(c.filePath("dev"))
	assert.True(t, os.IsNotExist(err), "corrupt entry must be removed")
}

func TestCacheWrongPassphraseIsMiss(t *testing.T) {
	keyring.MockInitWithError(errors.New("keyring unavailable"))
	c := newTestCache(t, "right")

	creds := testCreds
	require.NoError(t, c.Store("dev", &creds))

	c.passphrase = "wrong"
	_, ok := c.Load("dev")
	assert.False(t, ok)
}

func TestCacheClearSingleProfile(t *testing.T) {
	keyring.MockInit()
	c := newTestCache(t, "")

	creds := testCreds
	require.NoError(t, c.Store("one", &creds))
	require.NoError(t, c.Store("two", &creds))

	require.NoError(t, c.Clear("one"))

	_, ok := c.Load("one")
	assert.False(t, ok)
	_, ok = c.Load("two")
	assert.True(t, ok)
}

func TestCacheClearAll(t *testing.T) {
	keyring.MockInit()
	c := newTestCache(t, "")

	creds := testCreds
	require.NoError(t, c.Store("one", &creds))
	require.NoError(t, c.Store("two", &creds))

	require.NoError(t, c.Clear("all"))

	_, ok := c.Load("one")
	assert.False(t, ok)
	_, ok = c.Load("two")
	assert.False(t, ok)
}
