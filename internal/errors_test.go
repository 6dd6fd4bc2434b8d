package internal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"missing source", &MissingSourceProfileError{Profile: "a", Source: "b"}, ExitAuthRequired},
		{"circular reference", &CircularReferenceError{Profile: "a"}, ExitAuthRequired},
		{"auth required", &AuthRequiredError{Profile: "a", Remediation: "aws sso login"}, ExitAuthRequired},
		{"incomplete profile", &IncompleteProfileError{Profile: "a", Missing: "keys"}, ExitAuthRequired},
		{"mfa exhausted", &MfaExhaustedError{Serial: "arn", Attempts: 3}, ExitMFAExhausted},
		{"binary missing", &ExecutableNotFoundError{Binary: "aws"}, ExitBinaryMissing},
		{"config error", &ConfigError{Err: errors.New("bad ini")}, ExitInternal},
		{"transient", &TransientNetworkError{Op: "sts", Err: errors.New("timeout")}, ExitInternal},
		{"prompt cancelled", ErrPromptCancelled, ExitInternal},
		{"plain error", errors.New("boom"), ExitInternal},
		{"wrapped auth required", fmt.Errorf("resolving: %w", &AuthRequiredError{Profile: "a"}), ExitAuthRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestMaskARN(t *testing.T) {
	assert.Equal(t, "arn:aws:iam::********3333:mfa/dev",
		MaskARN("arn:aws:iam::111122223333:mfa/dev"))
	assert.Equal(t, "not-an-arn", MaskARN("not-an-arn"))
	assert.Equal(t, "arn:aws:iam::33:mfa/dev", MaskARN("arn:aws:iam::33:mfa/dev"))
}

func TestAuthRequiredErrorMessage(t *testing.T) {
	err := &AuthRequiredError{Profile: "sso-prod", Remediation: "aws sso login --profile sso-prod"}
	assert.Contains(t, err.Error(), `profile "sso-prod"`)
	assert.Contains(t, err.Error(), "aws sso login --profile sso-prod")
}

func TestMfaExhaustedErrorMasksSerial(t *testing.T) {
	err := &MfaExhaustedError{Serial: "arn:aws:iam::111122223333:mfa/dev", Attempts: 3}
	assert.NotContains(t, err.Error(), "111122223333")
	assert.Contains(t, err.Error(), "3333")
}
