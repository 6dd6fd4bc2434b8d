package internal

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

// Capability tags derived from which attributes a profile carries. Tags are
// not exclusive: a role profile may also require MFA, for example.
type Capability string

const (
	CapSSO        Capability = "SSO"
	CapAssumeRole Capability = "ROLE"
	CapMFA        Capability = "MFA"
	CapStatic     Capability = "STATIC"
)

// Profile is one named entry merged from ~/.aws/config and ~/.aws/credentials.
// All attribute fields are optional; classification derives from presence.
type Profile struct {
	Name            string
	Region          string
	SSOStartURL     string
	SSORegion       string
	RoleARN         string
	SourceProfile   string
	MFASerial       string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

func (p *Profile) IsSSO() bool {
	return p.SSOStartURL != "" || p.SSORegion != ""
}

func (p *Profile) IsRole() bool {
	return p.RoleARN != ""
}

func (p *Profile) IsStatic() bool {
	return p.AccessKeyID != "" && p.SecretAccessKey != ""
}

func (p *Profile) RequiresMFA() bool {
	return p.MFASerial != ""
}

// Classify returns the capability tag set for a profile. Pure and total over
// the attribute fields; order is fixed for display.
func (p *Profile) Classify() []Capability {
	var caps []Capability
	if p.IsSSO() {
		caps = append(caps, CapSSO)
	}
	if p.IsRole() {
		caps = append(caps, CapAssumeRole)
	}
	if p.RequiresMFA() {
		caps = append(caps, CapMFA)
	}
	if p.IsStatic() {
		caps = append(caps, CapStatic)
	}
	return caps
}

// Badges renders the capability tags as "[SSO][MFA]" style markers.
func (p *Profile) Badges() string {
	var b strings.Builder
	for _, c := range p.Classify() {
		b.WriteString("[")
		b.WriteString(string(c))
		b.WriteString("]")
	}
	return b.String()
}

// Store holds the parsed profile mapping. Read-only after load.
type Store struct {
	profiles map[string]*Profile
}

// LoadStore reads AWS config and credentials files from dir (normally ~/.aws)
// and merges them into one profile map. A missing file is fine; both files
// missing or unparseable is a ConfigError.
func LoadStore(dir string) (*Store, error) {
	profiles := make(map[string]*Profile)
	loaded := 0

	iniOpts := ini.LoadOptions{
		SkipUnrecognizableLines: true,
		Insensitive:             false,
	}

	configPath := filepath.Join(dir, "config")
	if _, err := os.Stat(configPath); err == nil {
		f, err := ini.LoadSources(iniOpts, configPath)
		if err != nil {
			return nil, &ConfigError{Path: configPath, Err: err}
		}
		loaded++
		for _, section := range f.Sections() {
			name := section.Name()
			if name == ini.DefaultSection {
				continue
			}
			// ~/.aws/config prefixes non-default sections with "profile ".
			name = strings.TrimPrefix(name, "profile ")
			name = strings.TrimSpace(name)
			if name == "" {
				Log.Warn("skipping malformed profile section", "file", configPath)
				continue
			}
			p := ensureProfile(profiles, name)
			p.Region = sectionKey(section, "region", p.Region)
			p.SSOStartURL = sectionKey(section, "sso_start_url", p.SSOStartURL)
			p.SSORegion = sectionKey(section, "sso_region", p.SSORegion)
			p.RoleARN = sectionKey(section, "role_arn", p.RoleARN)
			p.SourceProfile = sectionKey(section, "source_profile", p.SourceProfile)
			p.MFASerial = sectionKey(section, "mfa_serial", p.MFASerial)
		}
	}

	credsPath := filepath.Join(dir, "credentials")
	if _, err := os.Stat(credsPath); err == nil {
		f, err := ini.LoadSources(iniOpts, credsPath)
		if err != nil {
			return nil, &ConfigError{Path: credsPath, Err: err}
		}
		loaded++
		for _, section := range f.Sections() {
			name := strings.TrimSpace(section.Name())
			if name == ini.DefaultSection {
				continue
			}
			p := ensureProfile(profiles, name)
			p.AccessKeyID = sectionKey(section, "aws_access_key_id", p.AccessKeyID)
			p.SecretAccessKey = sectionKey(section, "aws_secret_access_key", p.SecretAccessKey)
			p.SessionToken = sectionKey(section, "aws_session_token", p.SessionToken)
		}
	}

	if loaded == 0 {
		return nil, &ConfigError{Path: dir, Err: os.ErrNotExist}
	}

	return &Store{profiles: profiles}, nil
}

// LoadDefaultStore loads from ~/.aws.
func LoadDefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return LoadStore(filepath.Join(home, ".aws"))
}

func ensureProfile(m map[string]*Profile, name string) *Profile {
	if p, ok := m[name]; ok {
		return p
	}
	p := &Profile{Name: name}
	m[name] = p
	return p
}

func sectionKey(s *ini.Section, key, fallback string) string {
	if s.HasKey(key) {
		if v := strings.TrimSpace(s.Key(key).String()); v != "" {
			return v
		}
	}
	return fallback
}

// Get returns the named profile.
func (s *Store) Get(name string) (*Profile, bool) {
	p, ok := s.profiles[name]
	return p, ok
}

// Len reports how many profiles were discovered.
func (s *Store) Len() int { return len(s.profiles) }

// Names returns all profile names sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveChain walks source_profile links from the requested profile down to
// its base and returns the chain ordered base first. The walk uses an explicit
// visited set so reference cycles fail deterministically.
func (s *Store) ResolveChain(name string) ([]*Profile, error) {
	var chain []*Profile
	visited := make(map[string]bool)

	current, ok := s.profiles[name]
	if !ok {
		return nil, &ConfigError{Err: errProfileNotFound(name)}
	}

	for {
		if visited[current.Name] {
			return nil, &CircularReferenceError{Profile: current.Name}
		}
		visited[current.Name] = true
		chain = append(chain, current)

		if !current.IsRole() {
			break
		}
		if current.SourceProfile == "" {
			return nil, &IncompleteProfileError{Profile: current.Name, Missing: "source_profile"}
		}
		next, ok := s.profiles[current.SourceProfile]
		if !ok {
			return nil, &MissingSourceProfileError{Profile: current.Name, Source: current.SourceProfile}
		}
		current = next
	}

	// Reverse to base-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// DefaultProfileName applies the selection precedence:
// explicit request > AWS_PROFILE > "default".
func DefaultProfileName(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("AWS_PROFILE"); env != "" {
		return env
	}
	return "default"
}
