// Package config loads the website list and runtime settings for sitewatch.
//
// The website list is a sequence of records with a url field. JSON and YAML
// are both accepted since the file is decoded with a YAML parser:
//
//	[
//	  {"url": "https://www.example.com"},
//	  {"url": "https://${STATUS_HOST:-status.example.com}/health"}
//	]
//
// or, equivalently:
//
//	websites:
//	  - url: https://www.example.com
//	  - url: https://${STATUS_HOST:-status.example.com}/health
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is where the website list is read from.
	DefaultConfigPath = "web_config.json"

	// DefaultStorePath is where status history is persisted.
	DefaultStorePath = "website_data.json"

	// DefaultTimeout bounds connecting to and reading from a website.
	DefaultTimeout = 5 * time.Second

	// DefaultInterval is the period between live cycles.
	DefaultInterval = 5 * time.Second

	// DefaultPageSize is the number of records per history page.
	DefaultPageSize = 10

	// DefaultConcurrency probes one URL at a time.
	DefaultConcurrency = 1
)

// Environment variables that override the default paths.
const (
	EnvConfigPath = "SITEWATCH_CONFIG"
	EnvStorePath  = "SITEWATCH_STORE"
)

const (
	minTimeout  = 100 * time.Millisecond
	minInterval = 1 * time.Second
)

// WebsiteConfig is a single configured website.
type WebsiteConfig struct {
	// URL is the address to probe.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`
}

// websiteList decodes either a bare sequence of websites or a mapping with
// a "websites" key.
type websiteList []WebsiteConfig

// UnmarshalYAML implements yaml.Unmarshaler for websiteList.
func (l *websiteList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []WebsiteConfig
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil

	case yaml.MappingNode:
		var raw struct {
			Websites []WebsiteConfig `yaml:"websites"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*l = raw.Websites
		return nil
	}

	return fmt.Errorf("website list must be a sequence or an object with a websites key, got %v", node.Kind)
}

// LoadWebsites reads and parses the website list at path.
//
// A missing file is not an error: it yields an empty list.
func LoadWebsites(path string) ([]WebsiteConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseWebsites(data)
}

// ParseWebsites parses website list data.
//
// Environment variables are expanded in each URL. Entries with an empty URL
// are rejected.
func ParseWebsites(data []byte) ([]WebsiteConfig, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var list websiteList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	websites := []WebsiteConfig(list)
	for i := range websites {
		w := &websites[i]
		if strings.TrimSpace(w.URL) == "" {
			return nil, fmt.Errorf("websites[%d]: url is required", i)
		}
		expanded, err := expandEnvVars(w.URL)
		if err != nil {
			return nil, fmt.Errorf("websites[%d]: url: %w", i, err)
		}
		w.URL = expanded
	}
	return websites, nil
}

// URLs returns the URL of every website, in order.
func URLs(websites []WebsiteConfig) []string {
	urls := make([]string, len(websites))
	for i, w := range websites {
		urls[i] = w.URL
	}
	return urls
}

// Settings holds the runtime knobs shared by all commands.
type Settings struct {
	// ConfigPath is the website list file.
	ConfigPath string

	// StorePath is the status history file.
	StorePath string

	// Timeout bounds connecting and reading, each.
	Timeout time.Duration

	// Interval is the period between live cycles.
	Interval time.Duration

	// PageSize is the number of records per history page.
	PageSize int

	// Concurrency bounds parallel probes within a cycle.
	Concurrency int
}

// DefaultSettings returns the defaults, with paths overridden by
// SITEWATCH_CONFIG and SITEWATCH_STORE when set.
func DefaultSettings() Settings {
	s := Settings{
		ConfigPath:  DefaultConfigPath,
		StorePath:   DefaultStorePath,
		Timeout:     DefaultTimeout,
		Interval:    DefaultInterval,
		PageSize:    DefaultPageSize,
		Concurrency: DefaultConcurrency,
	}
	if v, ok := os.LookupEnv(EnvConfigPath); ok && v != "" {
		s.ConfigPath = v
	}
	if v, ok := os.LookupEnv(EnvStorePath); ok && v != "" {
		s.StorePath = v
	}
	return s
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	if s.ConfigPath == "" {
		return errors.New("config path is required")
	}
	if s.StorePath == "" {
		return errors.New("store path is required")
	}
	if s.Timeout < minTimeout {
		return fmt.Errorf("timeout must be at least %s, got %s", minTimeout, s.Timeout)
	}
	if s.Interval < minInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minInterval, s.Interval)
	}
	if s.PageSize < 1 {
		return fmt.Errorf("page size must be positive, got %d", s.PageSize)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", s.Concurrency)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}
