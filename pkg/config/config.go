package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sambabib/depcheck/pkg/advisory"
	"github.com/sambabib/depcheck/pkg/registry"
)

// FileName is the per-project configuration file, searched for upwards from
// the analysed directory.
const FileName = ".depcheck.yaml"

// EnvPrefix prefixes every environment override, e.g. DEPCHECK_OUTPUT_FORMAT.
const EnvPrefix = "DEPCHECK"

// Config represents the configuration for the dependency checker
type Config struct {
	// Advisory databases
	Sources struct {
		OSV         string   `yaml:"osv"`
		GitHub      string   `yaml:"github"`
		GitHubToken string   `yaml:"githubToken"`
		Disable     []string `yaml:"disable"` // "osv" or "github"
	} `yaml:"sources"`

	// Custom registries for different package managers
	Registries registry.Endpoints `yaml:"registries"`

	// Outbound HTTP policy
	HTTP struct {
		Timeout time.Duration `yaml:"timeout"`
		Retries int           `yaml:"retries"`
		Backoff time.Duration `yaml:"backoff"`
	} `yaml:"http"`

	// In-process result and false-positive caches
	Cache struct {
		Size int           `yaml:"size"`
		TTL  time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	// Dependencies analysed at once
	Concurrency int `yaml:"concurrency"`

	// Output configuration
	Output struct {
		Format string `yaml:"format"` // text, json, sarif
		File   string `yaml:"file"`   // Output file path (stdout if empty)
	} `yaml:"output"`

	// Fail the run when a vulnerability at or above this severity is found
	FailOn string `yaml:"failOn"`

	// Ignore specific packages
	IgnorePackages []string `yaml:"ignorePackages"`

	// Extra dev/build/test packages whose advisories are suppressed
	DevPackages []string `yaml:"devPackages"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.Sources.OSV = advisory.DefaultOSVURL
	config.Sources.GitHub = advisory.DefaultGitHubURL
	config.HTTP.Timeout = 10 * time.Second
	config.HTTP.Retries = 2
	config.HTTP.Backoff = time.Second
	config.Cache.Size = 4096
	config.Cache.TTL = time.Hour
	config.Concurrency = 8
	config.Output.Format = "text"
	return config
}

// LoadConfig loads the configuration from the specified file path
// If no path is provided, it looks for .depcheck.yaml in the current directory
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		configPath = FileName
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	if err := readInto(configPath, config); err != nil {
		return nil, err
	}
	return config, nil
}

// FindAndLoadConfig searches for a config file in the project directory and its parents
func FindAndLoadConfig(projectPath string) (*Config, error) {
	config := DefaultConfig()

	currentDir, err := filepath.Abs(projectPath)
	if err != nil {
		currentDir = projectPath
	}
	if info, err := os.Stat(currentDir); err == nil && !info.IsDir() {
		currentDir = filepath.Dir(currentDir)
	}
	for {
		configPath := filepath.Join(currentDir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			if err := readInto(configPath, config); err != nil {
				return nil, err
			}
			return config, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached the root directory, no config file found
			break
		}
		currentDir = parentDir
	}

	return config, nil
}

func readInto(configPath string, config *Config) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from each existing file into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("error loading %s: %w", p, err)
		}
	}
	return nil
}

// Viper keys that may override the file, from flags or the environment.
const (
	KeyOutputFormat = "output.format"
	KeyOutputFile   = "output.file"
	KeyConcurrency  = "concurrency"
	KeyFailOn       = "fail_on"
	KeyGitHubToken  = "sources.github_token"
	KeyOSVURL       = "sources.osv"
	KeyGitHubURL    = "sources.github"
	KeyCacheSize    = "cache.size"
	KeyCacheTTL     = "cache.ttl"
	KeyHTTPTimeout  = "http.timeout"
	KeyHTTPRetries  = "http.retries"
)

// NewViper returns a viper instance reading DEPCHECK_* variables, with
// GITHUB_TOKEN accepted as a fallback for the advisory token.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyGitHubToken, EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")
	return v
}

// ApplyOverrides copies every key set in v (by a changed flag or an
// environment variable) over the file configuration.
func (c *Config) ApplyOverrides(v *viper.Viper) {
	if v.IsSet(KeyOutputFormat) {
		c.Output.Format = v.GetString(KeyOutputFormat)
	}
	if v.IsSet(KeyOutputFile) {
		c.Output.File = v.GetString(KeyOutputFile)
	}
	if v.IsSet(KeyConcurrency) {
		c.Concurrency = v.GetInt(KeyConcurrency)
	}
	if v.IsSet(KeyFailOn) {
		c.FailOn = v.GetString(KeyFailOn)
	}
	if v.IsSet(KeyGitHubToken) {
		c.Sources.GitHubToken = v.GetString(KeyGitHubToken)
	}
	if v.IsSet(KeyOSVURL) {
		c.Sources.OSV = v.GetString(KeyOSVURL)
	}
	if v.IsSet(KeyGitHubURL) {
		c.Sources.GitHub = v.GetString(KeyGitHubURL)
	}
	if v.IsSet(KeyCacheSize) {
		c.Cache.Size = v.GetInt(KeyCacheSize)
	}
	if v.IsSet(KeyCacheTTL) {
		c.Cache.TTL = v.GetDuration(KeyCacheTTL)
	}
	if v.IsSet(KeyHTTPTimeout) {
		c.HTTP.Timeout = v.GetDuration(KeyHTTPTimeout)
	}
	if v.IsSet(KeyHTTPRetries) {
		c.HTTP.Retries = v.GetInt(KeyHTTPRetries)
	}
}

// Validate rejects values the rest of the tool cannot use.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Output.Format) {
	case "text", "json", "sarif":
	default:
		return fmt.Errorf("invalid output format %q (use text, json or sarif)", c.Output.Format)
	}
	if c.FailOn != "" {
		if _, err := c.FailOnSeverity(); err != nil {
			return err
		}
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	for _, s := range c.Sources.Disable {
		if s != string(advisory.SourceOSV) && s != string(advisory.SourceGitHub) {
			return fmt.Errorf("unknown advisory source %q in sources.disable", s)
		}
	}
	return nil
}

// FailOnSeverity parses FailOn. Unlike advisory text it must name one of the
// four levels exactly.
func (c *Config) FailOnSeverity() (advisory.Severity, error) {
	s := advisory.Severity(strings.ToLower(strings.TrimSpace(c.FailOn)))
	if s.Rank() == 0 {
		return "", fmt.Errorf("invalid failOn severity %q (use low, medium, high or critical)", c.FailOn)
	}
	return s, nil
}

// SourceEnabled reports whether the named advisory source is in use.
func (c *Config) SourceEnabled(name advisory.SourceName) bool {
	for _, s := range c.Sources.Disable {
		if strings.EqualFold(s, string(name)) {
			return false
		}
	}
	return true
}

// IsPackageIgnored checks if a package should be ignored based on the configuration
func (c *Config) IsPackageIgnored(packageName string) bool {
	for _, ignoredPackage := range c.IgnorePackages {
		if strings.EqualFold(ignoredPackage, packageName) {
			return true
		}
	}
	return false
}
