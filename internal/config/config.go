// Package config provides project configuration for picodoc.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/picodoc-lang/picodoc/filter"
	"github.com/picodoc-lang/picodoc/inject"
)

// FileName is the project config file discovered beside the input document.
const FileName = "picodoc.yaml"

// Config holds the picodoc project configuration.
type Config struct {
	Env     map[string]string `yaml:"env,omitempty"`
	CSS     []string          `yaml:"css,omitempty"`
	JS      []string          `yaml:"js,omitempty"`
	Meta    map[string]string `yaml:"meta,omitempty"`
	Filters Filters           `yaml:"filters,omitempty"`
}

// Filters configures external filter discovery and execution.
type Filters struct {
	Paths   []string       `yaml:"paths,omitempty"`
	Timeout string         `yaml:"timeout,omitempty"`
	Depth   map[string]int `yaml:"depth,omitempty"`
}

// Validate checks that all present fields are well formed.
func (c *Config) Validate() error {
	if c.Filters.Timeout != "" {
		if _, err := time.ParseDuration(c.Filters.Timeout); err != nil {
			return fmt.Errorf("filters.timeout: %w", err)
		}
	}
	for name, depth := range c.Filters.Depth {
		if depth < 0 {
			return fmt.Errorf("filters.depth.%s must not be negative", name)
		}
	}
	return nil
}

// FilterTimeout returns the configured filter timeout, or the runner
// default when unset or unparseable.
func (c *Config) FilterTimeout() time.Duration {
	if c.Filters.Timeout == "" {
		return filter.DefaultTimeout
	}
	d, err := time.ParseDuration(c.Filters.Timeout)
	if err != nil {
		return filter.DefaultTimeout
	}
	return d
}

// MetaTags returns the configured meta tags sorted by name.
// YAML maps carry no order; sorting keeps head output deterministic.
func (c *Config) MetaTags() []inject.MetaTag {
	if len(c.Meta) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.Meta))
	for name := range c.Meta {
		names = append(names, name)
	}
	sort.Strings(names)

	tags := make([]inject.MetaTag, len(names))
	for i, name := range names {
		tags[i] = inject.MetaTag{Name: name, Content: c.Meta[name]}
	}
	return tags
}

// LoadFromEnv overrides filter settings from environment variables.
// PICODOC_FILTER_TIMEOUT replaces the configured timeout and
// PICODOC_FILTER_PATH appends list-separated search directories.
func (c *Config) LoadFromEnv() {
	if timeout := os.Getenv("PICODOC_FILTER_TIMEOUT"); timeout != "" {
		c.Filters.Timeout = timeout
	}
	if paths := os.Getenv("PICODOC_FILTER_PATH"); paths != "" {
		c.Filters.Paths = append(c.Filters.Paths, filepath.SplitList(paths)...)
	}
}

// Discover returns the path of the project config inside dir, or "" when
// no regular file by that name exists.
func Discover(dir string) string {
	path := filepath.Join(dir, FileName)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return path
}

// Load reads the configuration from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadForInput loads the config governing a document: the explicit path
// when given, otherwise a discovered picodoc.yaml beside the document.
// An absent discovered file yields an empty config; an absent explicit
// path is an error. Environment overrides apply in both cases.
func LoadForInput(explicit, inputDir string) (*Config, error) {
	path := explicit
	if path == "" {
		path = Discover(inputDir)
	}

	cfg := &Config{}
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.LoadFromEnv()
	return cfg, nil
}

// Save writes the configuration to the specified path.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
