package internal

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes surfaced by the wrapper itself. Anything else mirrors the child.
const (
	ExitOK            = 0
	ExitInternal      = 1
	ExitAuthRequired  = 2
	ExitMFAExhausted  = 3
	ExitBinaryMissing = 127
)

// ConfigError means the AWS config/credentials source could not be read or
// parsed at all. Individual broken profiles are skipped with a warning instead.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// MissingSourceProfileError is raised when a role profile references a
// source_profile that does not exist.
type MissingSourceProfileError struct {
	Profile string
	Source  string
}

func (e *MissingSourceProfileError) Error() string {
	return fmt.Sprintf("profile %q references source_profile %q which does not exist", e.Profile, e.Source)
}

// CircularReferenceError is raised when source_profile links form a cycle.
type CircularReferenceError struct {
	Profile string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular source_profile reference involving profile %q", e.Profile)
}

// AuthRequiredError means an interactive authentication step was needed while
// prompts are disabled. Remediation holds the exact command to run manually.
type AuthRequiredError struct {
	Profile     string
	Remediation string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("authentication required for profile %q. Run: %s", e.Profile, e.Remediation)
}

// MfaExhaustedError means all MFA attempts were consumed without success.
type MfaExhaustedError struct {
	Serial   string
	Attempts int
}

func (e *MfaExhaustedError) Error() string {
	return fmt.Sprintf("MFA verification failed after %d attempts (device %s)", e.Attempts, MaskARN(e.Serial))
}

// IncompleteProfileError means a profile lacks the attributes needed for any
// authentication path.
type IncompleteProfileError struct {
	Profile string
	Missing string
}

func (e *IncompleteProfileError) Error() string {
	return fmt.Sprintf("profile %q is incomplete: missing %s", e.Profile, e.Missing)
}

// TransientNetworkError wraps a network-class failure that survived the retry
// budget. It is the only error class the resolver retries internally.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s failed after retries: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// CacheCorruptionError marks an unreadable or undecryptable cache entry. It is
// always recovered locally: the entry is discarded and treated as a miss.
type CacheCorruptionError struct {
	Profile string
	Backend string
	Err     error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("cache entry for %q (%s) is corrupt: %v", e.Profile, e.Backend, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// ExecutableNotFoundError means the wrapped CLI binary is not on PATH.
type ExecutableNotFoundError struct {
	Binary string
}

func (e *ExecutableNotFoundError) Error() string {
	return fmt.Sprintf("%q not found. Please install AWS CLI v2 and ensure %q is on PATH", e.Binary, e.Binary)
}

// ErrPromptCancelled is returned when the user aborts an interactive prompt.
// It maps to the internal exit code, distinct from a SIGINT forwarded to a
// running child (which mirrors as 130).
var ErrPromptCancelled = errors.New("cancelled")

func errProfileNotFound(name string) error {
	return fmt.Errorf("profile %q not found", name)
}

// ExitCode maps any wrapper error onto the stable exit code contract.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		missingSrc *MissingSourceProfileError
		circular   *CircularReferenceError
		authReq    *AuthRequiredError
		incomplete *IncompleteProfileError
		mfaOut     *MfaExhaustedError
		noBinary   *ExecutableNotFoundError
	)
	switch {
	case errors.As(err, &noBinary):
		return ExitBinaryMissing
	case errors.As(err, &mfaOut):
		return ExitMFAExhausted
	case errors.As(err, &missingSrc), errors.As(err, &circular),
		errors.As(err, &authReq), errors.As(err, &incomplete):
		return ExitAuthRequired
	default:
		return ExitInternal
	}
}

// MaskARN hides the account id in an ARN so device and role identifiers can
// appear in error messages without leaking account numbers.
func MaskARN(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) < 6 {
		return arn
	}
	parts[4] = maskAccount(parts[4])
	return strings.Join(parts, ":")
}

func maskAccount(account string) string {
	if len(account) <= 4 {
		return account
	}
	return strings.Repeat("*", len(account)-4) + account[len(account)-4:]
}
