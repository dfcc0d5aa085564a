package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// Names of the variables exported to every step.
const (
	EnvDatabasePath = "DATABASE_PATH"
	EnvLLMProvider  = "LLM_PROVIDER_TYPE"
	EnvLLMAPIKey    = "LLM_API_KEY"
	EnvLLMModel     = "LLM_MODEL"
	EnvLLMBaseURL   = "LLM_BASE_URL"
	EnvPath         = "PATH"
)

// Var is a single exported variable.
type Var struct {
	Key   string
	Value string
}

// Vars returns the variables the steps receive, in the order they are
// applied: the fixed set, then the env file, then extra variables.
func (c *Config) Vars() ([]Var, error) {
	llm := c.Env.LLM
	vars := []Var{
		{EnvDatabasePath, c.DatabasePath()},
		{EnvLLMProvider, orDefault(llm.Provider, DefaultLLMProvider)},
		{EnvLLMAPIKey, orDefault(llm.APIKey, DefaultLLMAPIKey)},
		{EnvLLMModel, orDefault(llm.Model, DefaultLLMModel)},
		{EnvLLMBaseURL, orDefault(llm.BaseURL, DefaultLLMBaseURL)},
	}

	if c.Env.File != "" {
		path := c.resolve(c.Env.File)
		fileVars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", filepath.Base(path), err)
		}
		vars = append(vars, sortedVars(fileVars)...)
	}
	vars = append(vars, sortedVars(c.Env.Extra)...)
	return vars, nil
}

// Environ returns base with the configured variables set and the search
// path entry present in PATH exactly once. base is not modified.
// Applying Environ to its own output yields the same environment.
func (c *Config) Environ(base []string) ([]string, error) {
	vars, err := c.Vars()
	if err != nil {
		return nil, err
	}
	env := append([]string(nil), base...)
	for _, v := range vars {
		env = setEnv(env, v.Key, v.Value)
	}
	path, _ := lookupEnv(env, EnvPath)
	return setEnv(env, EnvPath, AddPathEntry(path, c.SearchPathEntry())), nil
}

// AddPathEntry returns list with entry present exactly once. An existing
// entry keeps its position; a missing one is appended.
func AddPathEntry(list, entry string) string {
	if entry == "" {
		return list
	}
	var out []string
	found := false
	for _, p := range filepath.SplitList(list) {
		if p == entry {
			if found {
				continue
			}
			found = true
		}
		out = append(out, p)
	}
	if !found {
		out = append(out, entry)
	}
	return strings.Join(out, string(os.PathListSeparator))
}

// MaskSecret hides all but the last two characters of a credential.
func MaskSecret(s string) string {
	if len(s) <= 2 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-2) + s[len(s)-2:]
}

// IsSecret reports whether key names a credential.
func IsSecret(key string) bool {
	k := strings.ToUpper(key)
	for _, s := range []string{"KEY", "TOKEN", "SECRET", "PASSWORD"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	out := make([]string, 0, len(env)+1)
	set := false
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			if set {
				continue
			}
			kv = prefix + value
			set = true
		}
		out = append(out, kv)
	}
	if !set {
		out = append(out, prefix+value)
	}
	return out
}

func lookupEnv(env []string, key string) (string, bool) {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):], true
		}
	}
	return "", false
}

func sortedVars(m map[string]string) []Var {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Var, 0, len(keys))
	for _, k := range keys {
		out = append(out, Var{k, m[k]})
	}
	return out
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
