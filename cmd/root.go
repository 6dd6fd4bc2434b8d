package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/chukul/awsx/internal"
	"github.com/chukul/awsx/internal/ui"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// wrappedBinary is the CLI this tool fronts.
const wrappedBinary = "aws"

var (
	flagProfile       string
	flagConfig        bool
	flagNoInteractive bool
	flagClearCache    string
	flagRegion        string
	flagVerbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "awsx [flags] -- <aws command>...",
	Short: "awsx resolves AWS credentials for a profile and runs the aws CLI with them",
	Long: `awsx classifies the requested profile (SSO, MFA, AssumeRole, static),
performs the matching authentication flow, and runs the aws CLI with the
resolved short-lived credentials injected into its environment.`,
	Example: `  # run a command with the prod profile
  awsx -p prod -- s3 ls

  # CI mode: never prompt, fail fast when auth is needed
  awsx -n -p deploy -- sts get-caller-identity

  # show discovered profiles with capability badges
  awsx -c`,
	Version:       internal.CurrentVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(flagVerbose)
		internal.CheckForUpdates()
	},
	RunE: runRoot,
}

// childExit carries the wrapped command's exit code out of RunE.
var childExit int

func init() {
	rootCmd.Flags().SetInterspersed(false)
	rootCmd.Flags().StringVarP(&flagProfile, "profile", "p", "", "select profile (overrides AWS_PROFILE)")
	rootCmd.Flags().BoolVarP(&flagConfig, "config", "c", false, "print discovered profiles with capability badges")
	rootCmd.Flags().BoolVarP(&flagNoInteractive, "no-interactive", "n", false, "disable all prompts; fail fast if auth is needed")
	rootCmd.Flags().StringVar(&flagClearCache, "clear-cache", "", "clear cached sessions for a profile, or 'all'")
	rootCmd.Flags().Lookup("clear-cache").NoOptDefVal = "all"
	rootCmd.Flags().StringVar(&flagRegion, "region", "", "region override for the wrapped command")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	rootCmd.Flags().BoolP("version", "V", false, "print version")
}

// Execute runs the CLI and exits with the contract's status codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, ui.ErrCancelled) || errors.Is(err, internal.ErrPromptCancelled) {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			os.Exit(internal.ExitInternal)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(internal.ExitCode(err))
	}
	os.Exit(childExit)
}

func runRoot(cmd *cobra.Command, args []string) error {
	interactive := !flagNoInteractive && os.Getenv("AWSX_NO_INTERACTIVE") == ""

	if cmd.Flags().Changed("clear-cache") {
		return clearCache(flagClearCache)
	}

	store, err := internal.LoadDefaultStore()
	if err != nil {
		return err
	}
	if store.Len() == 0 {
		return &internal.ConfigError{Err: errors.New("no AWS profiles found in ~/.aws/config or ~/.aws/credentials")}
	}

	if flagConfig {
		printConfig(store)
		return nil
	}

	// Fail on a missing aws binary before any authentication work.
	if _, err := exec.LookPath(wrappedBinary); err != nil {
		return &internal.ExecutableNotFoundError{Binary: wrappedBinary}
	}

	name, err := selectProfileName(store, interactive)
	if err != nil {
		return err
	}
	profile, ok := store.Get(name)
	if !ok {
		return &internal.ConfigError{Err: fmt.Errorf("profile %q not found", name)}
	}

	if len(args) == 0 {
		fmt.Println("No AWS command specified. Use -- to pass AWS CLI arguments.")
		return nil
	}

	ops := internal.NewAWSOps(wrappedBinary, envSeconds("AWSX_CONNECT_TIMEOUT"), envSeconds("AWSX_REQUEST_TIMEOUT"))
	resolver := internal.NewResolver(store, ops, openCache(interactive), tuiPrompter{}, interactive)
	resolver.RegionOverride = flagRegion
	resolver.Binary = wrappedBinary

	ctx := context.Background()
	creds, err := resolver.Resolve(ctx, name)
	if err != nil {
		return err
	}

	launcher := &internal.Launcher{Binary: wrappedBinary}
	code, err := launcher.Run(ctx, internal.LaunchSpec{
		Args:        args,
		Credentials: creds,
		Profile:     profile,
		RegionFlag:  flagRegion,
	})
	if err != nil {
		return err
	}
	childExit = code
	return nil
}

func selectProfileName(store *internal.Store, interactive bool) (string, error) {
	if flagProfile != "" {
		return flagProfile, nil
	}
	if !interactive {
		return internal.DefaultProfileName(""), nil
	}
	if env := os.Getenv("AWS_PROFILE"); env != "" {
		return env, nil
	}

	names := store.Names()
	options := make([]string, len(names))
	for i, n := range names {
		p, _ := store.Get(n)
		badge := p.Badges()
		if n == "default" {
			badge = "[default]" + badge
		}
		options[i] = fmt.Sprintf("%s %s", n, badge)
	}
	selected, err := ui.SelectProfile("Select profile", options)
	if err != nil {
		return "", err
	}
	for i, opt := range options {
		if opt == selected {
			return names[i], nil
		}
	}
	return "", internal.ErrPromptCancelled
}

func printConfig(store *internal.Store) {
	bold := color.New(color.Bold).SprintFunc()
	badgeColor := color.New(color.FgCyan).SprintFunc()

	fmt.Println("Discovered profiles:")
	for _, name := range store.Names() {
		p, _ := store.Get(name)
		badge := p.Badges()
		if name == "default" {
			badge = "[default]" + badge
		}
		fmt.Printf("  %s %s\n", bold(name), badgeColor(badge))
	}
}

// cacheEnabled reports whether the opt-in toggle is set.
func cacheEnabled() bool {
	switch strings.ToLower(os.Getenv("AWSX_CACHE")) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func openCache(interactive bool) *internal.Cache {
	if !cacheEnabled() {
		return nil
	}
	passphrase, err := internal.CachePassphrase("")
	if err != nil && interactive {
		// Keyring may still serve; the passphrase only guards the file
		// fallback. Ask once, allow empty to skip the file backend.
		passphrase, err = ui.GetInput("Cache passphrase (empty to skip encrypted file store)", "", true)
		if err != nil {
			passphrase = ""
		}
	}
	return internal.OpenCache(internal.DefaultCacheDir(), passphrase, os.Getenv("AWSX_CACHE_SKIP_STATIC") != "")
}

func clearCache(target string) error {
	passphrase, _ := internal.CachePassphrase("")
	cache := internal.OpenCache(internal.DefaultCacheDir(), passphrase, false)
	if err := cache.Clear(target); err != nil {
		return err
	}
	fmt.Printf("Cleared cache for: %s\n", target)
	return nil
}

func envSeconds(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		internal.Log.Warn("ignoring invalid timeout override", "var", key, "value", v)
		return 0
	}
	return time.Duration(secs) * time.Second
}

// tuiPrompter is the production interactivity capability.
type tuiPrompter struct{}

func (tuiPrompter) MFACode(serial string) (string, error) {
	return ui.ReadCode(fmt.Sprintf("Enter MFA code (6 digits) for %s: ", internal.MaskARN(serial)))
}

func (tuiPrompter) Spin(text string, task func() (any, error)) (any, error) {
	return ui.Spin(text, task)
}
