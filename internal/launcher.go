package internal

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
)

// LaunchSpec describes one child invocation: the wrapped CLI arguments, the
// resolved credentials (nil when the CLI should authenticate itself, e.g.
// plain SSO profiles), and the selected profile for env fallbacks.
type LaunchSpec struct {
	Args        []string
	Credentials *CredentialSet
	Profile     *Profile
	// RegionFlag is a command-level region override; it always wins.
	RegionFlag string
	// Env is the base environment. Nil means the parent's environment.
	Env []string
}

// Launcher spawns the wrapped CLI with credentials applied to the child's
// environment only; the parent environment is never mutated. Stdio is passed
// through and termination signals are forwarded.
type Launcher struct {
	Binary string
}

// Run executes the child and returns the exit code to mirror: the child's own
// code, or 128+N when it died from signal N.
func (l *Launcher) Run(ctx context.Context, spec LaunchSpec) (int, error) {
	path, err := exec.LookPath(l.Binary)
	if err != nil {
		return 0, &ExecutableNotFoundError{Binary: l.Binary}
	}

	cmd := exec.CommandContext(ctx, path, spec.Args...)
	cmd.Env = l.childEnv(spec)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	// Forward SIGINT/SIGTERM so the child can shut down on its own terms.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				Log.Debug("forwarding signal to child", "signal", sig)
				_ = cmd.Process.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	signal.Stop(sigCh)

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return 0, waitErr
		}
	}

	state := cmd.ProcessState
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), nil
	}
	return state.ExitCode(), nil
}

// childEnv assembles the child environment: resolved credentials win over
// inherited values, but a region or profile the user supplied via the command
// line or environment is never overridden.
func (l *Launcher) childEnv(spec LaunchSpec) []string {
	env := spec.Env
	if env == nil {
		env = os.Environ()
	}
	env = append([]string(nil), env...)

	creds := spec.Credentials
	if creds != nil {
		env = setEnv(env, "AWS_ACCESS_KEY_ID", creds.AccessKeyID)
		env = setEnv(env, "AWS_SECRET_ACCESS_KEY", creds.SecretAccessKey)
		if creds.SessionToken != "" {
			env = setEnv(env, "AWS_SESSION_TOKEN", creds.SessionToken)
		} else {
			env = unsetEnv(env, "AWS_SESSION_TOKEN")
		}
	} else if spec.Profile != nil && spec.Profile.IsStatic() && lookupEnv(env, "AWS_ACCESS_KEY_ID") == "" {
		// No resolution happened; fall back to the profile's own keys unless
		// the environment already provides some.
		env = setEnv(env, "AWS_ACCESS_KEY_ID", spec.Profile.AccessKeyID)
		env = setEnv(env, "AWS_SECRET_ACCESS_KEY", spec.Profile.SecretAccessKey)
		if spec.Profile.SessionToken != "" {
			env = setEnv(env, "AWS_SESSION_TOKEN", spec.Profile.SessionToken)
		}
	}

	argsHaveRegion := hasFlag(spec.Args, "--region")
	switch {
	case argsHaveRegion:
		// User said it on the command line; leave everything alone.
	case spec.RegionFlag != "":
		env = setEnv(env, "AWS_REGION", spec.RegionFlag)
		env = setEnv(env, "AWS_DEFAULT_REGION", spec.RegionFlag)
	case lookupEnv(env, "AWS_REGION") == "" && lookupEnv(env, "AWS_DEFAULT_REGION") == "":
		region := ""
		if creds != nil {
			region = creds.Region
		}
		if region == "" && spec.Profile != nil {
			region = spec.Profile.Region
		}
		if region != "" {
			env = setEnv(env, "AWS_DEFAULT_REGION", region)
		}
	}

	if spec.Profile != nil && !hasFlag(spec.Args, "--profile") {
		env = setEnv(env, "AWS_PROFILE", spec.Profile.Name)
	}

	return env
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag || strings.HasPrefix(a, flag+"=") {
			return true
		}
	}
	return false
}

func lookupEnv(env []string, key string) string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):]
		}
	}
	return ""
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

func unsetEnv(env []string, key string) []string {
	prefix := key + "="
	out := env[:0]
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return out
}
