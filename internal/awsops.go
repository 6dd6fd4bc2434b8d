package internal

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
)

const stsSessionSeconds = int32(3600)

// AssumeRoleRequest carries everything one assume-role call needs beyond the
// base credentials.
type AssumeRoleRequest struct {
	RoleARN     string
	SessionName string
	Region      string
	MFASerial   string
	MFACode     string
}

// Ops is the boundary to the cloud provider. The engine consumes these as
// opaque operations; tests substitute fakes.
type Ops interface {
	// CheckIdentity probes whether the profile currently resolves to a valid
	// session. A false result with nil error means "not logged in"; an error
	// means the probe itself failed (network, timeout).
	CheckIdentity(ctx context.Context, profile string) (bool, error)
	// CallerAccount returns the account id the profile authenticates into.
	CallerAccount(ctx context.Context, profile string) (string, error)
	// SSOLogin runs the external browser-delegated login for the profile.
	SSOLogin(ctx context.Context, profile string) error
	// SessionCredentials extracts the profile's current session as concrete
	// credentials, delegating token storage to the external CLI's own cache.
	SessionCredentials(ctx context.Context, profile, region string) (*CredentialSet, error)
	// GetSessionToken exchanges static keys plus an MFA code for temporary
	// base credentials.
	GetSessionToken(ctx context.Context, profile, serial, code, region string) (*CredentialSet, error)
	// AssumeRole exchanges base credentials for role-scoped ones.
	AssumeRole(ctx context.Context, base *CredentialSet, req AssumeRoleRequest) (*CredentialSet, error)
}

// AWSOps is the production Ops implementation: STS through the SDK (which
// shares the CLI's config and SSO token cache) and a shell-out for the login
// flow the CLI owns.
type AWSOps struct {
	Binary         string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

func NewAWSOps(binary string, connectTimeout, requestTimeout time.Duration) *AWSOps {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &AWSOps{Binary: binary, ConnectTimeout: connectTimeout, RequestTimeout: requestTimeout}
}

func (o *AWSOps) profileConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithSharedConfigProfile(profile),
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

func (o *AWSOps) CheckIdentity(ctx context.Context, profile string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()

	cfg, err := o.profileConfig(ctx, profile, "")
	if err != nil {
		return false, nil
	}
	_, err = sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		if IsTransient(err) {
			return false, err
		}
		// Rejected by the provider: session invalid or expired.
		return false, nil
	}
	return true, nil
}

func (o *AWSOps) CallerAccount(ctx context.Context, profile string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()

	cfg, err := o.profileConfig(ctx, profile, "")
	if err != nil {
		return "", err
	}
	out, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.Account), nil
}

func (o *AWSOps) SSOLogin(ctx context.Context, profile string) error {
	cmd := exec.CommandContext(ctx, o.Binary, "sso", "login", "--profile", profile)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s sso login failed: %w", o.Binary, err)
	}
	return nil
}

func (o *AWSOps) SessionCredentials(ctx context.Context, profile, region string) (*CredentialSet, error) {
	ctx, cancel := context.WithTimeout(ctx, o.RequestTimeout)
	defer cancel()

	cfg, err := o.profileConfig(ctx, profile, region)
	if err != nil {
		return nil, err
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieving session credentials for %q: %w", profile, err)
	}
	set := &CredentialSet{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
	}
	if creds.CanExpire {
		set.Expiration = creds.Expires
	}
	return set, nil
}

func (o *AWSOps) GetSessionToken(ctx context.Context, profile, serial, code, region string) (*CredentialSet, error) {
	ctx, cancel := context.WithTimeout(ctx, o.RequestTimeout)
	defer cancel()

	cfg, err := o.profileConfig(ctx, profile, region)
	if err != nil {
		return nil, err
	}
	out, err := sts.NewFromConfig(cfg).GetSessionToken(ctx, &sts.GetSessionTokenInput{
		DurationSeconds: aws.Int32(stsSessionSeconds),
		SerialNumber:    aws.String(serial),
		TokenCode:       aws.String(code),
	})
	if err != nil {
		return nil, err
	}
	return fromSTSCredentials(out.Credentials), nil
}

func (o *AWSOps) AssumeRole(ctx context.Context, base *CredentialSet, req AssumeRoleRequest) (*CredentialSet, error) {
	ctx, cancel := context.WithTimeout(ctx, o.RequestTimeout)
	defer cancel()

	opts := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			base.AccessKeyID, base.SecretAccessKey, base.SessionToken,
		)),
	}
	if req.Region != "" {
		opts = append(opts, config.WithRegion(req.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(req.RoleARN),
		RoleSessionName: aws.String(req.SessionName),
		DurationSeconds: aws.Int32(stsSessionSeconds),
	}
	if req.MFASerial != "" {
		input.SerialNumber = aws.String(req.MFASerial)
		input.TokenCode = aws.String(req.MFACode)
	}

	out, err := sts.NewFromConfig(cfg).AssumeRole(ctx, input)
	if err != nil {
		return nil, err
	}
	return fromSTSCredentials(out.Credentials), nil
}

func fromSTSCredentials(c *ststypes.Credentials) *CredentialSet {
	return &CredentialSet{
		AccessKeyID:     aws.ToString(c.AccessKeyId),
		SecretAccessKey: aws.ToString(c.SecretAccessKey),
		SessionToken:    aws.ToString(c.SessionToken),
		Expiration:      aws.ToTime(c.Expiration),
	}
}
