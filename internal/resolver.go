package internal

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

const mfaMaxAttempts = 3

// Prompter is the interactivity capability injected into the resolver, so
// flows never touch real terminal state directly.
type Prompter interface {
	// MFACode asks for a one-time code for the given device. Input must not
	// be echoed. ErrPromptCancelled aborts the whole resolution.
	MFACode(serial string) (string, error)
	// Spin runs a blocking task behind a progress indicator.
	Spin(text string, task func() (any, error)) (any, error)
}

// Resolver drives the authentication state machine:
// Start -> Classify -> {SSO | MFA | AssumeRole | Static} -> Resolved | Failed.
type Resolver struct {
	Store       *Store
	Ops         Ops
	Cache       *Cache // nil disables persistence; entries then live only in-process
	Prompter    Prompter
	Interactive bool
	// RegionOverride is the command-level region, highest precedence.
	RegionOverride string
	// Binary names the wrapped CLI in remediation messages.
	Binary string

	now func() time.Time
}

func NewResolver(store *Store, ops Ops, cache *Cache, prompter Prompter, interactive bool) *Resolver {
	return &Resolver{
		Store:       store,
		Ops:         ops,
		Cache:       cache,
		Prompter:    prompter,
		Interactive: interactive,
		Binary:      "aws",
		now:         time.Now,
	}
}

// Resolve produces credentials for the named profile, consulting the cache
// first and writing fresh resolutions back when caching is enabled.
func (r *Resolver) Resolve(ctx context.Context, name string) (*CredentialSet, error) {
	profile, ok := r.Store.Get(name)
	if !ok {
		return nil, &ConfigError{Err: errProfileNotFound(name)}
	}

	if r.Cache != nil {
		if creds, hit := r.Cache.Load(name); hit {
			Log.Debug("cache hit", "profile", name)
			creds.Region = r.regionFor(profile)
			return creds, nil
		}
	}

	creds, err := r.resolveProfile(ctx, profile, map[string]bool{})
	if err != nil {
		return nil, err
	}
	creds.Region = r.regionFor(profile)

	if r.Cache != nil {
		if err := r.Cache.Store(name, creds); err != nil {
			Log.Warn("cache write failed", "profile", name, "err", err)
		}
	}
	return creds, nil
}

func (r *Resolver) resolveProfile(ctx context.Context, p *Profile, visited map[string]bool) (*CredentialSet, error) {
	if visited[p.Name] {
		return nil, &CircularReferenceError{Profile: p.Name}
	}
	visited[p.Name] = true

	switch {
	case p.IsRole():
		return r.assumeRoleFlow(ctx, p, visited)
	case p.IsSSO():
		return r.ssoFlow(ctx, p)
	case p.RequiresMFA():
		return r.mfaFlow(ctx, p)
	case p.IsStatic():
		return r.staticFlow(p)
	default:
		return nil, &IncompleteProfileError{Profile: p.Name, Missing: "sso, role, mfa, or static key attributes"}
	}
}

// ssoFlow probes the existing SSO session and, interactively, drives the
// external login once before re-probing. Token storage stays with the CLI.
func (r *Resolver) ssoFlow(ctx context.Context, p *Profile) (*CredentialSet, error) {
	loginCmd := fmt.Sprintf("%s sso login --profile %s", r.Binary, p.Name)

	valid := r.probeIdentity(ctx, p.Name)
	if !valid {
		if !r.Interactive {
			return nil, &AuthRequiredError{Profile: p.Name, Remediation: loginCmd}
		}
		fmt.Fprintf(os.Stderr, "SSO token is not valid. Running: %s\n", loginCmd)
		if err := r.Ops.SSOLogin(ctx, p.Name); err != nil {
			return nil, err
		}
		if !r.probeIdentity(ctx, p.Name) {
			return nil, &AuthRequiredError{Profile: p.Name, Remediation: loginCmd}
		}
		fmt.Fprintln(os.Stderr, "SSO login completed.")
	}

	var creds *CredentialSet
	err := WithRetry(ctx, "session-credentials", func() error {
		var err error
		creds, err = r.Ops.SessionCredentials(ctx, p.Name, r.regionFor(p))
		return err
	})
	if err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *Resolver) probeIdentity(ctx context.Context, profile string) bool {
	res, err := r.spin("Checking session...", func() (any, error) {
		ok, err := r.Ops.CheckIdentity(ctx, profile)
		return ok, err
	})
	if err != nil {
		// Probe trouble (timeout, network) is treated as "not logged in".
		Log.Debug("identity probe failed", "profile", profile, "err", err)
		return false
	}
	ok, _ := res.(bool)
	return ok
}

// mfaFlow prompts for a code and exchanges the profile's long-lived keys for
// session-token credentials.
func (r *Resolver) mfaFlow(ctx context.Context, p *Profile) (*CredentialSet, error) {
	if !p.IsStatic() {
		return nil, &IncompleteProfileError{Profile: p.Name, Missing: "static keys to pair with mfa_serial"}
	}
	if !r.Interactive {
		remediation := fmt.Sprintf("%s sts get-session-token --serial-number %s --token-code <code> --profile %s",
			r.Binary, p.MFASerial, p.Name)
		return nil, &AuthRequiredError{Profile: p.Name, Remediation: remediation}
	}

	if err := r.verifyMFAAccount(ctx, p); err != nil {
		return nil, err
	}

	return r.withMFAAttempts(p.MFASerial, func(code string) (*CredentialSet, error) {
		var creds *CredentialSet
		err := WithRetry(ctx, "get-session-token", func() error {
			res, err := r.spin("Verifying MFA token...", func() (any, error) {
				return r.Ops.GetSessionToken(ctx, p.Name, p.MFASerial, code, r.regionFor(p))
			})
			if err != nil {
				return err
			}
			creds = res.(*CredentialSet)
			return nil
		})
		return creds, err
	})
}

// verifyMFAAccount cross-checks the account id embedded in the MFA serial
// against the profile's caller identity before burning a code on a mismatch.
// A confirmed mismatch is fatal before the first prompt; a failed probe only
// warns, since the exchange itself will surface any real problem.
func (r *Resolver) verifyMFAAccount(ctx context.Context, p *Profile) error {
	serialAccount := accountFromARN(p.MFASerial)
	if serialAccount == "" {
		return nil
	}
	profileAccount, err := r.Ops.CallerAccount(ctx, p.Name)
	if err != nil {
		Log.Warn("could not determine profile account", "profile", p.Name, "err", err)
		return nil
	}
	if profileAccount != serialAccount {
		return fmt.Errorf("mfa_serial account %s does not match the account of profile %q (%s); fix mfa_serial in ~/.aws/config",
			maskAccount(serialAccount), p.Name, maskAccount(profileAccount))
	}
	return nil
}

func (r *Resolver) withMFAAttempts(serial string, call func(code string) (*CredentialSet, error)) (*CredentialSet, error) {
	for attempt := 1; attempt <= mfaMaxAttempts; attempt++ {
		code, err := r.Prompter.MFACode(serial)
		if err != nil {
			return nil, err
		}
		code = strings.TrimSpace(code)
		if !validMFACode(code) {
			fmt.Fprintln(os.Stderr, "Invalid code format (expected 6 digits)")
			continue
		}
		creds, err := call(code)
		if err == nil {
			return creds, nil
		}
		fmt.Fprintf(os.Stderr, "MFA attempt %d failed: %v\n", attempt, err)
	}
	return nil, &MfaExhaustedError{Serial: serial, Attempts: mfaMaxAttempts}
}

func validMFACode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// assumeRoleFlow resolves the source profile first (recursively, including
// its own authentication step) and then exchanges its credentials for the
// role session.
func (r *Resolver) assumeRoleFlow(ctx context.Context, p *Profile, visited map[string]bool) (*CredentialSet, error) {
	// Validate the whole reference chain up front so cycles and missing
	// sources fail before any prompt or network call.
	if _, err := r.Store.ResolveChain(p.Name); err != nil {
		return nil, err
	}

	source, _ := r.Store.Get(p.SourceProfile)
	base, err := r.resolveProfile(ctx, source, visited)
	if err != nil {
		return nil, err
	}

	req := AssumeRoleRequest{
		RoleARN:     p.RoleARN,
		SessionName: fmt.Sprintf("awsx-%d", r.now().Unix()),
		Region:      r.regionFor(p),
	}

	if p.RequiresMFA() {
		if !r.Interactive {
			remediation := fmt.Sprintf("%s sts assume-role --role-arn %s --serial-number %s --token-code <code> --profile %s",
				r.Binary, p.RoleARN, p.MFASerial, p.SourceProfile)
			return nil, &AuthRequiredError{Profile: p.Name, Remediation: remediation}
		}
		req.MFASerial = p.MFASerial
		return r.withMFAAttempts(p.MFASerial, func(code string) (*CredentialSet, error) {
			req.MFACode = code
			return r.callAssumeRole(ctx, base, req)
		})
	}

	return r.callAssumeRole(ctx, base, req)
}

func (r *Resolver) callAssumeRole(ctx context.Context, base *CredentialSet, req AssumeRoleRequest) (*CredentialSet, error) {
	var creds *CredentialSet
	err := WithRetry(ctx, "assume-role", func() error {
		res, err := r.spin("Assuming role...", func() (any, error) {
			return r.Ops.AssumeRole(ctx, base, req)
		})
		if err != nil {
			return err
		}
		creds = res.(*CredentialSet)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return creds, nil
}

// staticFlow hands back the profile's long-lived keys unchanged.
func (r *Resolver) staticFlow(p *Profile) (*CredentialSet, error) {
	if !p.IsStatic() {
		return nil, &IncompleteProfileError{Profile: p.Name, Missing: "aws_access_key_id and aws_secret_access_key"}
	}
	return &CredentialSet{
		AccessKeyID:     p.AccessKeyID,
		SecretAccessKey: p.SecretAccessKey,
		SessionToken:    p.SessionToken,
	}, nil
}

// regionFor applies the precedence: command-level override > environment >
// profile configuration > unset.
func (r *Resolver) regionFor(p *Profile) string {
	if r.RegionOverride != "" {
		return r.RegionOverride
	}
	if env := os.Getenv("AWS_REGION"); env != "" {
		return env
	}
	if env := os.Getenv("AWS_DEFAULT_REGION"); env != "" {
		return env
	}
	return p.Region
}

func (r *Resolver) spin(text string, task func() (any, error)) (any, error) {
	if !r.Interactive || r.Prompter == nil {
		return task()
	}
	return r.Prompter.Spin(text, task)
}

func accountFromARN(arn string) string {
	// arn:partition:service:region:account-id:resource
	parts := strings.Split(arn, ":")
	if len(parts) < 5 {
		return ""
	}
	return parts[4]
}
