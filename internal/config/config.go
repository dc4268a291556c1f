// Package config provides configuration loading and management for syncstate.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/syncstate/internal/criteria"
	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/telemetry"
)

const (
	// IgnoredIncomingSupervise surfaces ignored resources with an incoming addition
	IgnoredIncomingSupervise = "supervise"

	// IgnoredIncomingHide treats every ignored resource as unsupervised
	IgnoredIncomingHide = "hide"
)

const (
	// EnvPrefix is the prefix of environment variables read by the binary
	EnvPrefix = "SYNCSTATE"

	// DefaultRefreshInterval is the background refresh interval used by watch
	DefaultRefreshInterval = 5 * time.Minute

	// MergesDirName is the folder under the metadata folder holding merge records
	MergesDirName = "merges"

	// GitPasswordEnv is the environment variable read when no password file is set
	GitPasswordEnv = "SYNCSTATE_GIT_PASSWORD"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Repository RepositoryConfig `yaml:"repository"`
	Refresh    *RefreshConfig   `yaml:"refresh,omitempty"`

	// Criterion is the default comparison criterion id
	// Defaults to "revision" if not specified
	Criterion string `yaml:"criterion,omitempty"`

	// IgnoreWhitespace makes the content criterion ignore whitespace
	IgnoreWhitespace bool `yaml:"ignoreWhitespace,omitempty"`

	// IgnoredIncoming is either "supervise" (default) or "hide"
	IgnoredIncoming string `yaml:"ignoredIncoming,omitempty"`

	Merges    *MergesConfig     `yaml:"merges,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// WorkspaceConfig locates the local working copy
type WorkspaceConfig struct {
	// Path is the workspace root, defaults to the working directory
	Path string `yaml:"path,omitempty"`

	// MetadataDir is the workspace-relative folder holding tracking records
	MetadataDir string `yaml:"metadataDir,omitempty"`
}

// RepositoryConfig locates the remote repository. Exactly one of Path and URL
// must be set.
type RepositoryConfig struct {
	// Path is a local clone of the repository
	Path string `yaml:"path,omitempty"`

	// URL is a remote repository (HTTP/HTTPS) cloned into memory
	URL string `yaml:"url,omitempty"`

	// Branch is the branch HEAD refers to. Defaults to the repository HEAD.
	Branch string `yaml:"branch,omitempty"`

	// Prefix maps the repository root to this workspace path
	Prefix string `yaml:"prefix,omitempty"`

	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig holds basic auth credentials for URL repositories
type AuthConfig struct {
	Username string `yaml:"username"`

	// PasswordFile is the path to a file containing the password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`
}

// RefreshConfig tunes remote refreshes
type RefreshConfig struct {
	// Concurrency is the number of roots fetched in parallel
	Concurrency int `yaml:"concurrency,omitempty"`

	// CacheTTL expires cached variants (e.g., "10m"). Empty keeps them until
	// the next refresh.
	CacheTTL string `yaml:"cacheTTL,omitempty"`

	// Interval is the background refresh interval (e.g., "5m")
	Interval string `yaml:"interval,omitempty"`

	// Jitter is the maximum random offset applied to Interval
	Jitter string `yaml:"jitter,omitempty"`
}

// MergesConfig configures merge subscriber persistence
type MergesConfig struct {
	// StateDir holds one folder per active merge
	StateDir string `yaml:"stateDir,omitempty"`
}

// GetPassword returns the repository password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from SYNCSTATE_GIT_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (a *AuthConfig) GetPassword() (string, error) {
	if a.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(a.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", a.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(GitPasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no repository password configured: set passwordFile or %s environment variable", GitPasswordEnv,
	)
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetWorkspacePath returns the workspace root, using "." if not specified
func (c *Config) GetWorkspacePath() string {
	if c.Workspace.Path == "" {
		return "."
	}
	return c.Workspace.Path
}

// GetMetadataDir returns the metadata folder, relative to the workspace
func (c *Config) GetMetadataDir() string {
	if c.Workspace.MetadataDir == "" {
		return resource.DefaultMetadataDir
	}
	return c.Workspace.MetadataDir
}

// GetCriterion returns the default criterion id
func (c *Config) GetCriterion() string {
	if c.Criterion == "" {
		return criteria.IDRevision
	}
	return c.Criterion
}

// GetIgnoredIncoming returns the ignored-incoming policy name
func (c *Config) GetIgnoredIncoming() string {
	if c.IgnoredIncoming == "" {
		return IgnoredIncomingSupervise
	}
	return c.IgnoredIncoming
}

// GetMergeStateDir returns the folder holding merge records. It defaults to
// the merges folder under the workspace metadata folder.
func (c *Config) GetMergeStateDir() string {
	if c.Merges != nil && c.Merges.StateDir != "" {
		return c.Merges.StateDir
	}
	return filepath.Join(c.GetWorkspacePath(), c.GetMetadataDir(), MergesDirName)
}

// GetConcurrency returns the configured concurrency, zero meaning the default
func (c *Config) GetConcurrency() int {
	if c.Refresh == nil {
		return 0
	}
	return c.Refresh.Concurrency
}

// GetCacheTTL returns the variant cache TTL, zero meaning no expiry
func (c *Config) GetCacheTTL() time.Duration {
	if c.Refresh == nil {
		return 0
	}
	return parseDurationOr(c.Refresh.CacheTTL, 0)
}

// GetRefreshInterval returns the background refresh interval
func (c *Config) GetRefreshInterval() time.Duration {
	if c.Refresh == nil {
		return DefaultRefreshInterval
	}
	return parseDurationOr(c.Refresh.Interval, DefaultRefreshInterval)
}

// GetRefreshJitter returns the background refresh jitter and whether it was set
func (c *Config) GetRefreshJitter() (time.Duration, bool) {
	if c.Refresh == nil || c.Refresh.Jitter == "" {
		return 0, false
	}
	return parseDurationOr(c.Refresh.Jitter, 0), true
}

// parseDurationOr parses s, returning def when s is empty or invalid. Values
// are checked by validate so invalid input never reaches here after loading.
func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateRepository(&c.Repository); err != nil {
		return err
	}

	if err := validateRefresh(c.Refresh); err != nil {
		return err
	}

	switch c.GetCriterion() {
	case criteria.IDRevision, criteria.IDContent, criteria.IDRevisionOnBranch:
	default:
		return fmt.Errorf("criterion must be one of %s, %s or %s, got %s",
			criteria.IDRevision, criteria.IDContent, criteria.IDRevisionOnBranch, c.Criterion)
	}

	switch c.GetIgnoredIncoming() {
	case IgnoredIncomingSupervise, IgnoredIncomingHide:
	default:
		return fmt.Errorf("ignoredIncoming must be either %s or %s, got %s",
			IgnoredIncomingSupervise, IgnoredIncomingHide, c.IgnoredIncoming)
	}

	if filepath.IsAbs(c.GetMetadataDir()) || !filepath.IsLocal(c.GetMetadataDir()) {
		return fmt.Errorf("workspace.metadataDir must be a local relative path: %s", c.Workspace.MetadataDir)
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}

// validateRepository ensures exactly one repository location is configured
func validateRepository(repo *RepositoryConfig) error {
	if repo.Path == "" && repo.URL == "" {
		return fmt.Errorf("repository: one of path or url must be specified")
	}
	if repo.Path != "" && repo.URL != "" {
		return fmt.Errorf("repository: only one of path or url may be specified")
	}

	if repo.URL != "" {
		u, err := url.Parse(repo.URL)
		if err != nil {
			return fmt.Errorf("repository.url is invalid: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("repository.url must use http or https, got %q", u.Scheme)
		}
	}

	if repo.Auth != nil {
		if repo.URL == "" {
			return fmt.Errorf("repository.auth requires repository.url")
		}
		if repo.Auth.Username == "" {
			return fmt.Errorf("repository.auth.username is required")
		}
	}

	return nil
}

// validateRefresh validates the refresh durations and concurrency
func validateRefresh(refresh *RefreshConfig) error {
	if refresh == nil {
		return nil
	}

	if refresh.Concurrency < 0 {
		return fmt.Errorf("refresh.concurrency must not be negative, got %d", refresh.Concurrency)
	}

	durations := []struct {
		name, value string
	}{
		{"cacheTTL", refresh.CacheTTL},
		{"interval", refresh.Interval},
		{"jitter", refresh.Jitter},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("refresh.%s must be a valid duration (e.g., '30m', '1h'): %w", d.name, err)
		}
		if parsed < 0 {
			return fmt.Errorf("refresh.%s must not be negative", d.name)
		}
	}

	if refresh.Interval != "" {
		if d, _ := time.ParseDuration(refresh.Interval); d == 0 {
			return fmt.Errorf("refresh.interval must be positive")
		}
	}

	return nil
}
