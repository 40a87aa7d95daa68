package pgconn

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/taskrun/internal/env"
)

// Mode selects the computed default database name.
type Mode string

const (
	Development Mode = "development"
	Preview     Mode = "preview"
	Production  Mode = "production"
)

// ParseMode lower-cases s and checks it names a known mode. Empty means
// Development.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Development, nil
	case Development, Preview, Production:
		return m, nil
	default:
		return "", fmt.Errorf("unknown environment mode %q", s)
	}
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 5432

	charset             = "utf8"
	timezone            = "utc"
	createRetryInterval = 200 * time.Millisecond
)

// Settings are the raw inputs of Resolve: the connection string and the
// DB_* fallbacks.
type Settings struct {
	ConnectionString string // DATABASE_URL
	Host             string // DB_HOST
	Port             string // DB_PORT
	User             string // DB_USER
	Password         string // DB_PASS
	DBName           string // DB_NAME
	Mode             Mode   // APP_ENV or NODE_ENV
}

// SettingsFromEnv reads Settings from e. DATABASE_URL is required.
func SettingsFromEnv(e *env.Env) (Settings, error) {
	url, err := e.Require("DATABASE_URL")
	if err != nil {
		return Settings{}, err
	}
	rawMode, ok := e.Read("APP_ENV")
	if !ok {
		rawMode, _ = e.Read("NODE_ENV")
	}
	mode, err := ParseMode(rawMode)
	if err != nil {
		return Settings{}, err
	}
	read := func(name string) string {
		v, _ := e.Read(name)
		return v
	}
	return Settings{
		ConnectionString: url,
		Host:             read("DB_HOST"),
		Port:             read("DB_PORT"),
		User:             read("DB_USER"),
		Password:         read("DB_PASS"),
		DBName:           read("DB_NAME"),
		Mode:             mode,
	}, nil
}

var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
}

// IsLoopback reports whether host is one of the local addresses that never
// use SSL.
func IsLoopback(host string) bool {
	return loopbackHosts[strings.ToLower(host)]
}

// Resolve merges the parsed connection string with the environment
// fallbacks. Each field takes the connection string value first, then the
// DB_* variable, then the computed default "<DB_NAME>_<mode>". Loopback
// hosts always get SSL off.
func Resolve(p Parser, s Settings) (Config, error) {
	if p == nil {
		p = ConnStringParser{}
	}
	u := &URLConfig{}
	if s.ConnectionString != "" {
		var err error
		if u, err = p.Parse(s.ConnectionString); err != nil {
			return Config{}, err
		}
	}
	mode := s.Mode
	if mode == "" {
		mode = Development
	}
	dbAndEnv := ""
	if s.DBName != "" {
		dbAndEnv = s.DBName + "_" + string(mode)
	}

	cfg := Config{
		Host:                strings.ToLower(first(u.Host, s.Host, DefaultHost)),
		Port:                DefaultPort,
		User:                first(u.User, s.User, dbAndEnv),
		Password:            first(u.Password, s.Password),
		Database:            first(u.Database, dbAndEnv),
		Charset:             charset,
		Timezone:            timezone,
		CreateRetryInterval: createRetryInterval,
	}
	if raw := first(u.Port, s.Port); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("%w: port %q", ErrInvalidURL, raw)
		}
		cfg.Port = port
	}

	switch {
	case IsLoopback(cfg.Host):
		cfg.SSL = SSL{}
	case u.SSL != nil:
		cfg.SSL = *u.SSL
	default:
		cfg.SSL = SSL{Enabled: true, Mode: "no-verify"}
	}
	return cfg, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
