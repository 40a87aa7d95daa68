package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/loykin/taskrun/internal/env"
	"github.com/loykin/taskrun/internal/logger"
)

// EnvPrefix namespaces environment overrides, e.g. TASKRUN_LOG_DIR.
const EnvPrefix = "TASKRUN"

// Config is the optional TOML file merged with TASKRUN_* variables.
type Config struct {
	Debug    bool          `toml:"debug" mapstructure:"debug"`
	Cwd      string        `toml:"cwd" mapstructure:"cwd"`
	Env      []string      `toml:"env" mapstructure:"env"`
	EnvFiles []string      `toml:"env_files" mapstructure:"env_files"`
	Log      LogConfig     `toml:"log" mapstructure:"log"`
	History  HistoryConfig `toml:"history" mapstructure:"history"`
	Metrics  MetricsConfig `toml:"metrics" mapstructure:"metrics"`
}

// LogConfig places the run log. A run log is one file per run and is never
// rotated.
type LogConfig struct {
	Dir string `toml:"dir" mapstructure:"dir"`
}

// Logger converts the section into the run log writer settings.
func (l LogConfig) Logger() logger.Config {
	return logger.Config{Dir: l.Dir}
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	File string `toml:"file" mapstructure:"file"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("debug", false)
	v.SetDefault("cwd", "")
	v.SetDefault("log.dir", "")
	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.file", "")
	return v
}

// Load reads path (skipped when empty) and applies TASKRUN_* overrides. The
// legacy DEBUG variable turns debug on whenever it is defined, whatever its
// value.
func Load(path string, e *env.Env) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if e != nil {
		if _, ok := e.Lookup("DEBUG"); ok {
			cfg.Debug = true
		}
	}
	return &cfg, nil
}

// GlobalEnv merges env_files contents in order, then the top-level env list,
// which overrides last. The result is sorted "KEY=VALUE" pairs.
func (c *Config) GlobalEnv() ([]string, error) {
	m := make(map[string]string)
	for _, p := range c.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			m[k] = v
		}
	}
	for _, kv := range c.Env {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out, nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			m[k] = v
		}
	}
	return m, nil
}
