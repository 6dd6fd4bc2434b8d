package internal

import "time"

// CredentialSet is the resolved output of an authentication flow. A zero
// Expiration marks static, non-expiring credentials.
type CredentialSet struct {
	AccessKeyID     string    `json:"access_key_id"`
	SecretAccessKey string    `json:"secret_access_key"`
	SessionToken    string    `json:"session_token,omitempty"`
	Expiration      time.Time `json:"expiration,omitzero"`
	Region          string    `json:"region,omitempty"`
}

// Temporary reports whether the credentials carry an expiry.
func (c *CredentialSet) Temporary() bool {
	return !c.Expiration.IsZero()
}

// ValidAt reports whether the credentials may still be used at the given
// instant. Expiry is compared strictly: an expiration equal to now is invalid.
func (c *CredentialSet) ValidAt(now time.Time) bool {
	if !c.Temporary() {
		return true
	}
	return c.Expiration.After(now)
}
