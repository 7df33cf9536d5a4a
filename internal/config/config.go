package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ksyq12/certd/internal/errors"
)

// Default locations and tuning values. All of them are overridable in the
// config file; none are contracts.
const (
	DefaultPath           = "/etc/certd/config.yaml"
	DefaultCADirectoryURL = "https://acme-v02.api.letsencrypt.org/directory"

	defaultCertDir       = "/etc/certd/certs"
	defaultStateFile     = "/etc/certd/state.yaml"
	defaultAttemptLog    = "/etc/certd/attempts.log"
	defaultRenewalWindow = 30 // days before expiry
	defaultConcurrency   = 2
	defaultCheckInterval = time.Hour
	defaultTimeout       = 5 * time.Minute
	defaultBackoffBase   = time.Minute
	defaultBackoffMax    = 24 * time.Hour
	defaultMaxAttempts   = 10
)

// Challenge types supported by the ACME client.
const (
	ChallengeHTTP01 = "http-01"
	ChallengeDNS01  = "dns-01"
)

// Duration wraps time.Duration with YAML support for strings like "1h30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the daemon configuration.
type Config struct {
	Email          string    `yaml:"email"`
	CADirectoryURL string    `yaml:"ca_directory_url"`
	CertDir        string    `yaml:"cert_dir"`
	StateFile      string    `yaml:"state_file"`
	AttemptLog     string    `yaml:"attempt_log"`
	RenewalWindow  int       `yaml:"renewal_window_days"`
	Concurrency    int       `yaml:"concurrency"`
	CheckInterval  Duration  `yaml:"check_interval"`
	AttemptTimeout Duration  `yaml:"attempt_timeout"`
	Backoff        Backoff   `yaml:"backoff"`
	Reload         Reload    `yaml:"reload"`
	Challenge      Challenge `yaml:"challenge"`
	Sites          []Site    `yaml:"sites"`
}

// Backoff tunes the retry policy for failed renewal attempts.
type Backoff struct {
	Base        Duration `yaml:"base"`
	Max         Duration `yaml:"max"`
	MaxAttempts int      `yaml:"max_attempts"`
}

// Reload describes how to signal the web server after an installation.
// Fallback is tried when Command fails, matching the usual
// systemctl-then-binary dance.
type Reload struct {
	Command  []string `yaml:"command"`
	Fallback []string `yaml:"fallback,omitempty"`
}

// Challenge selects and configures the ACME challenge solver.
type Challenge struct {
	Type               string `yaml:"type"`
	HTTPAddress        string `yaml:"http_address,omitempty"`
	DNSProvider        string `yaml:"dns_provider,omitempty"`
	CloudflareAPIToken string `yaml:"cloudflare_api_token,omitempty"`
}

// Site is one managed domain set: the hostnames covered by a single
// certificate. The first domain is the primary name and names the
// certificate directory.
type Site struct {
	Domains []string `yaml:"domains"`
}

// Primary returns the site's primary domain.
func (s Site) Primary() string {
	if len(s.Domains) == 0 {
		return ""
	}
	return normalizeDomain(s.Domains[0])
}

// Key returns the canonical identity of the domain set: all domains
// lowercased, sorted, and comma-joined. Two sites with the same hostnames
// in any order share a key.
func (s Site) Key() string {
	return SetKey(s.Domains)
}

// SetKey canonicalizes a domain list into a store key.
func SetKey(domains []string) string {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		normalized = append(normalized, normalizeDomain(d))
	}
	sort.Strings(normalized)
	return strings.Join(normalized, ",")
}

func normalizeDomain(d string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
}

// New creates a Config with default values and no sites.
func New() *Config {
	return &Config{
		CADirectoryURL: DefaultCADirectoryURL,
		CertDir:        defaultCertDir,
		StateFile:      defaultStateFile,
		AttemptLog:     defaultAttemptLog,
		RenewalWindow:  defaultRenewalWindow,
		Concurrency:    defaultConcurrency,
		CheckInterval:  Duration(defaultCheckInterval),
		AttemptTimeout: Duration(defaultTimeout),
		Backoff: Backoff{
			Base:        Duration(defaultBackoffBase),
			Max:         Duration(defaultBackoffMax),
			MaxAttempts: defaultMaxAttempts,
		},
		Reload: Reload{
			Command:  []string{"systemctl", "reload", "nginx"},
			Fallback: []string{"nginx", "-s", "reload"},
		},
		Challenge: Challenge{
			Type:        ChallengeHTTP01,
			HTTPAddress: ":80",
		},
	}
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeConfig, fmt.Sprintf("read config %s", path), err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.CodeConfig, fmt.Sprintf("parse config %s", path), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.CodeConfig, "create config directory", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.CodeConfig, "marshal config", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.CodeConfig, fmt.Sprintf("write config %s", path), err)
	}
	return nil
}

// Validate checks the configuration for startup-fatal problems.
func (c *Config) Validate() error {
	if c.Email == "" {
		return errors.Config("email is required for ACME account registration")
	}
	if c.CADirectoryURL == "" {
		return errors.Config("ca_directory_url cannot be empty")
	}
	if c.CertDir == "" || !filepath.IsAbs(c.CertDir) {
		return errors.Configf("cert_dir must be an absolute path, got %q", c.CertDir)
	}
	if c.RenewalWindow <= 0 {
		return errors.Configf("renewal_window_days must be positive, got %d", c.RenewalWindow)
	}
	if c.Concurrency <= 0 {
		return errors.Configf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.CheckInterval.Std() <= 0 {
		return errors.Config("check_interval must be positive")
	}
	if c.AttemptTimeout.Std() <= 0 {
		return errors.Config("attempt_timeout must be positive")
	}
	if c.Backoff.Base.Std() <= 0 || c.Backoff.Max.Std() < c.Backoff.Base.Std() {
		return errors.Config("backoff base must be positive and no greater than backoff max")
	}
	if c.Backoff.MaxAttempts <= 0 {
		return errors.Configf("backoff max_attempts must be positive, got %d", c.Backoff.MaxAttempts)
	}
	if len(c.Reload.Command) == 0 {
		return errors.Config("reload command cannot be empty")
	}

	switch c.Challenge.Type {
	case ChallengeHTTP01:
	case ChallengeDNS01:
		if c.Challenge.DNSProvider != "cloudflare" {
			return errors.Configf("unsupported dns provider %q (only cloudflare is supported)", c.Challenge.DNSProvider)
		}
		if c.Challenge.CloudflareAPIToken == "" {
			return errors.Config("cloudflare_api_token is required for dns-01")
		}
	default:
		return errors.Configf("unsupported challenge type %q", c.Challenge.Type)
	}

	seen := make(map[string]int)
	for i, site := range c.Sites {
		if len(site.Domains) == 0 {
			return errors.Configf("site %d has no domains", i)
		}
		for _, d := range site.Domains {
			if err := ValidateDomain(d); err != nil {
				return err
			}
		}
		key := site.Key()
		if prev, dup := seen[key]; dup {
			return errors.Configf("sites %d and %d cover the same domain set %s", prev, i, key)
		}
		seen[key] = i
	}

	return nil
}

// FindSite returns the index of the site whose primary domain or set key
// matches name, or -1.
func (c *Config) FindSite(name string) int {
	name = normalizeDomain(name)
	for i, site := range c.Sites {
		if site.Primary() == name || site.Key() == name {
			return i
		}
	}
	return -1
}

// ValidateDomain checks that a hostname is plausible.
func ValidateDomain(domain string) error {
	d := normalizeDomain(domain)
	if d == "" {
		return errors.Validation("domain cannot be empty")
	}
	if strings.ContainsAny(d, " \t") {
		return errors.Validation(fmt.Sprintf("domain %q cannot contain spaces", domain))
	}
	if strings.HasPrefix(d, "-") || strings.HasSuffix(d, "-") {
		return errors.Validation(fmt.Sprintf("domain %q cannot start or end with hyphen", domain))
	}
	if !strings.Contains(d, ".") {
		return errors.Validation(fmt.Sprintf("domain %q must contain a dot", domain))
	}
	return nil
}
