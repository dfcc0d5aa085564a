// Package config loads and validates the optional .suiterun configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Default values for the run configuration.
const (
	DefaultTitle        = "Test Runner"
	DefaultMaxOutput    = 1 << 20 // 1 MB
	DefaultPathEntry    = "~/.local/bin"
	DefaultDatabasePath = "test_data/test.db"
	DefaultHistoryKeep  = 200
)

// Default language-model provider settings exported to the suites.
const (
	DefaultLLMProvider = "ollama"
	DefaultLLMAPIKey   = "test_key"
	DefaultLLMModel    = "llama3.2:3b"
	DefaultLLMBaseURL  = "http://localhost:11434"
)

// FileNames lists the configuration file names, in lookup order.
var FileNames = []string{".suiterun.yaml", ".suiterun.yml", ".suiterun.toml"}

// Config holds the parsed configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int           `yaml:"version" toml:"version"`
	Title        string        `yaml:"title" toml:"title"`
	Env          EnvConfig     `yaml:"env" toml:"env"`
	PathEntry    string        `yaml:"path_entry" toml:"path_entry"` // appended to PATH once
	Fixture      string        `yaml:"fixture" toml:"fixture"`       // defaults to the database path
	Steps        []Step        `yaml:"steps" toml:"steps"`
	RawTimeout   string        `yaml:"timeout" toml:"timeout"`       // per step, e.g. "10m"; empty waits forever
	RawMaxOutput int           `yaml:"max_output" toml:"max_output"` // bytes per stream
	History      HistoryConfig `yaml:"history" toml:"history"`

	// Root is the directory relative paths are resolved against.
	Root string `yaml:"-" toml:"-"`
}

// EnvConfig holds the variables exported to every step.
type EnvConfig struct {
	DatabasePath string            `yaml:"database_path" toml:"database_path"`
	LLM          LLMConfig         `yaml:"llm" toml:"llm"`
	File         string            `yaml:"file" toml:"file"`   // dotenv file with extra variables
	Extra        map[string]string `yaml:"extra" toml:"extra"` // applied last
}

// LLMConfig identifies the language-model provider the suites talk to.
type LLMConfig struct {
	Provider string `yaml:"provider" toml:"provider"`
	APIKey   string `yaml:"api_key" toml:"api_key"`
	Model    string `yaml:"model" toml:"model"`
	BaseURL  string `yaml:"base_url" toml:"base_url"`
}

// Step is one suite invocation.
type Step struct {
	Name        string   `yaml:"name" toml:"name"`
	Description string   `yaml:"description" toml:"description"`
	Argv        []string `yaml:"argv" toml:"argv"`
	Dir         string   `yaml:"dir" toml:"dir"` // relative to the root
}

// Label returns the description, falling back to the name.
func (s Step) Label() string {
	if s.Description != "" {
		return s.Description
	}
	return s.Name
}

// HistoryConfig enables the SQLite run history.
type HistoryConfig struct {
	Path string `yaml:"path" toml:"path"` // empty disables history
	Keep int    `yaml:"keep" toml:"keep"` // runs retained after each save
}

// DefaultSteps are used when no steps are configured.
var DefaultSteps = []Step{
	{Name: "unit", Description: "Running unit tests", Argv: []string{"pytest", "tests/unit/", "-v", "--tb=short"}},
	{Name: "integration", Description: "Running integration tests", Argv: []string{"pytest", "tests/integration/", "-v", "--tb=short"}},
	{Name: "e2e", Description: "Running e2e tests", Argv: []string{"pytest", "tests/e2e/", "-v", "--tb=short"}},
}

// RunTitle returns the configured banner title or the default.
func (c *Config) RunTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return DefaultTitle
}

// Timeout returns the configured per-step timeout. Zero means no deadline.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// RunSteps returns the configured steps, falling back to defaults.
func (c *Config) RunSteps() []Step {
	if len(c.Steps) > 0 {
		return c.Steps
	}
	return DefaultSteps
}

// SelectSteps returns the steps named in names, in configured order.
// An empty names list selects every step.
func (c *Config) SelectSteps(names []string) ([]Step, error) {
	steps := c.RunSteps()
	if len(names) == 0 {
		return steps, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Step
	for _, s := range steps {
		if want[s.Name] {
			out = append(out, s)
			delete(want, s.Name)
		}
	}
	if len(want) > 0 {
		var unknown []string
		for _, n := range names {
			if want[n] {
				unknown = append(unknown, n)
			}
		}
		return nil, fmt.Errorf("unknown step: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// DatabasePath returns the absolute database path exported as DATABASE_PATH.
func (c *Config) DatabasePath() string {
	p := c.Env.DatabasePath
	if p == "" {
		p = DefaultDatabasePath
	}
	return c.resolve(p)
}

// FixturePath returns the file guaranteed to exist before the steps run.
func (c *Config) FixturePath() string {
	if c.Fixture != "" {
		return c.resolve(c.Fixture)
	}
	return c.DatabasePath()
}

// SearchPathEntry returns the directory that must appear once in PATH.
func (c *Config) SearchPathEntry() string {
	p := c.PathEntry
	if p == "" {
		p = DefaultPathEntry
	}
	return ExpandHome(p)
}

// HistoryPath returns the resolved history database path, or "" if disabled.
func (c *Config) HistoryPath() string {
	if c.History.Path == "" {
		return ""
	}
	return c.resolve(c.History.Path)
}

// RunLockPath returns the lock file that keeps concurrent runs of this
// project from sharing the fixture.
func (c *Config) RunLockPath() string {
	return c.resolve(filepath.Join(".suiterun", "run.lock"))
}

// HistoryKeep returns the number of runs to retain in the history.
func (c *Config) HistoryKeep() int {
	if c.History.Keep > 0 {
		return c.History.Keep
	}
	return DefaultHistoryKeep
}

func (c *Config) resolve(p string) string {
	p = ExpandHome(p)
	if filepath.IsAbs(p) || c.Root == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root, p)
}

// Validate reports configuration errors that would make a run meaningless.
func (c *Config) Validate() error {
	var errs []error
	if c.RawTimeout != "" {
		if d, err := time.ParseDuration(c.RawTimeout); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("invalid timeout %q", c.RawTimeout))
		}
	}
	seen := make(map[string]bool)
	for i, s := range c.Steps {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("step %d: name is required", i+1))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("step %q: duplicate name", s.Name))
		}
		seen[s.Name] = true
		if len(s.Argv) == 0 || s.Argv[0] == "" {
			errs = append(errs, fmt.Errorf("step %q: argv is required", s.Name))
		}
	}
	return errors.Join(errs...)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// LoadResult holds the parsed config and the discovered project root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory holding the config file or .git; falls back to workspace
	Path     string // config file read, empty when defaults are used
}

// Load reads the configuration file from the project root.
// The root is discovered by walking upward from workspace looking for a
// configuration file or a .git directory. If no file exists, a default
// Config is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRepoRoot(workspace)
	if err != nil {
		root, err = filepath.Abs(workspace)
		if err != nil {
			return nil, fmt.Errorf("resolving workspace: %w", err)
		}
	}

	cfg := &Config{}
	var loadedFrom string
	for _, name := range FileNames {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		if err := decode(name, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		loadedFrom = path
		break
	}

	cfg.Root = root
	return &LoadResult{Config: cfg, RepoRoot: root, Path: loadedFrom}, nil
}

func decode(name string, data []byte, cfg *Config) error {
	if strings.HasSuffix(name, ".toml") {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// findRepoRoot walks upward from dir looking for a configuration file or .git.
func findRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	markers := append([]string{".git"}, FileNames...)
	for {
		for _, m := range markers {
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("project root not found")
		}
		dir = parent
	}
}
