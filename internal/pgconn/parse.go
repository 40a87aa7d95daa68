package pgconn

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/afero"
)

// ErrInvalidURL wraps every connection string the parser cannot read.
var ErrInvalidURL = errors.New("invalid connection string")

// SSL is the TLS posture of a connection. Cert, Key and RootCA hold PEM
// contents loaded from the files named in the connection string.
type SSL struct {
	Enabled bool   `json:"enabled"`
	Verify  bool   `json:"verify"`
	Mode    string `json:"mode,omitempty"`
	Cert    string `json:"-"`
	Key     string `json:"-"`
	RootCA  string `json:"-"`
}

// URLConfig is what a connection string says, before fallbacks apply. Empty
// fields were not present. SSL is nil when the string says nothing about it.
type URLConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Database       string
	ClientEncoding string
	SSL            *SSL
	Params         map[string]string // query parameters, last value wins
}

// Parser turns a connection string into a URLConfig.
type Parser interface {
	Parse(s string) (*URLConfig, error)
}

// ConnStringParser reads libpq-style URLs and the bare unix socket form
// "/socket/dir dbname". SSL files are read from Fs (the OS filesystem when
// nil).
type ConnStringParser struct {
	Fs afero.Fs
}

func (p ConnStringParser) Parse(s string) (*URLConfig, error) {
	if strings.HasPrefix(s, "/") {
		parts := strings.Split(s, " ")
		cfg := &URLConfig{Host: parts[0], Params: map[string]string{}}
		if len(parts) > 1 {
			cfg.Database = parts[1]
		}
		return cfg, nil
	}

	s = normalizeEscapes(s)
	if strings.HasPrefix(strings.ToLower(s), "socket:") {
		return parseSocket(s)
	}

	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("%w: missing scheme", ErrInvalidURL)
	}
	authority, pathAndQuery := rest, ""
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		authority, pathAndQuery = rest[:i], rest[i:]
	}
	pathAndQuery, _, _ = strings.Cut(pathAndQuery, "#")
	rawPath, rawQuery, _ := strings.Cut(pathAndQuery, "?")

	params, err := lastValues(rawQuery)
	if err != nil {
		return nil, err
	}
	cfg := &URLConfig{Params: params}

	hostport := authority
	if at := strings.LastIndex(authority, "@"); at >= 0 {
		user, pass, _ := strings.Cut(authority[:at], ":")
		if cfg.User, err = url.PathUnescape(user); err != nil {
			return nil, fmt.Errorf("%w: user: %v", ErrInvalidURL, err)
		}
		if cfg.Password, err = url.PathUnescape(pass); err != nil {
			return nil, fmt.Errorf("%w: password: %v", ErrInvalidURL, err)
		}
		hostport = authority[at+1:]
	}
	host, port, err := splitHostPort(hostport)
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	cfg.Host = params["host"]
	if cfg.Host == "" {
		cfg.Host = host
	}

	pathname := rawPath
	if cfg.Host == "" && strings.HasPrefix(strings.ToLower(strings.TrimPrefix(pathname, "/")), "%2f") {
		first, remainder, _ := strings.Cut(strings.TrimPrefix(pathname, "/"), "/")
		if cfg.Host, err = url.PathUnescape(first); err != nil {
			return nil, fmt.Errorf("%w: host: %v", ErrInvalidURL, err)
		}
		pathname = remainder
	}
	pathname = strings.TrimPrefix(pathname, "/")
	if pathname != "" {
		if cfg.Database, err = url.PathUnescape(pathname); err != nil {
			return nil, fmt.Errorf("%w: database: %v", ErrInvalidURL, err)
		}
	}

	if cfg.SSL, err = p.parseSSL(params); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseSocket(s string) (*URLConfig, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	params, err := lastValues(u.RawQuery)
	if err != nil {
		return nil, err
	}
	cfg := &URLConfig{
		Host:           u.Path,
		Port:           u.Port(),
		Database:       params["db"],
		ClientEncoding: params["encoding"],
		Params:         params,
	}
	if cfg.Host == "" {
		cfg.Host = u.Opaque
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	return cfg, nil
}

func lastValues(rawQuery string) (map[string]string, error) {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrInvalidURL, err)
	}
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[len(v)-1]
		}
	}
	return out, nil
}

// splitHostPort separates "host:port", "[v6]:port" and bare hosts. The host
// is percent-decoded so an encoded socket directory comes back as a path.
func splitHostPort(hostport string) (string, string, error) {
	host, port := hostport, ""
	if strings.HasPrefix(hostport, "[") {
		end := strings.Index(hostport, "]")
		if end < 0 {
			return "", "", fmt.Errorf("%w: unterminated IPv6 host", ErrInvalidURL)
		}
		host = hostport[1:end]
		port = strings.TrimPrefix(hostport[end+1:], ":")
	} else if i := strings.LastIndex(hostport, ":"); i >= 0 {
		host, port = hostport[:i], hostport[i+1:]
	}
	for _, c := range port {
		if c < '0' || c > '9' {
			return "", "", fmt.Errorf("%w: port %q", ErrInvalidURL, port)
		}
	}
	decoded, err := url.PathUnescape(host)
	if err != nil {
		return "", "", fmt.Errorf("%w: host: %v", ErrInvalidURL, err)
	}
	return decoded, port, nil
}

func (p ConnStringParser) parseSSL(params map[string]string) (*SSL, error) {
	var ssl *SSL
	switch params["ssl"] {
	case "true", "1":
		ssl = &SSL{Enabled: true, Verify: true}
	case "false", "0":
		ssl = &SSL{}
	}

	cert, key, root, mode := params["sslcert"], params["sslkey"], params["sslrootcert"], params["sslmode"]
	if cert == "" && key == "" && root == "" && mode == "" {
		return ssl, nil
	}
	ssl = &SSL{Enabled: true, Verify: true, Mode: mode}

	fs := p.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	read := func(name string) (string, error) {
		if name == "" {
			return "", nil
		}
		b, err := afero.ReadFile(fs, name)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return string(b), nil
	}
	var err error
	if ssl.Cert, err = read(cert); err != nil {
		return nil, err
	}
	if ssl.Key, err = read(key); err != nil {
		return nil, err
	}
	if ssl.RootCA, err = read(root); err != nil {
		return nil, err
	}

	switch mode {
	case "disable":
		ssl.Enabled, ssl.Verify = false, false
	case "prefer", "require", "verify-ca", "verify-full":
	case "no-verify":
		ssl.Verify = false
	}
	return ssl, nil
}

var _ Parser = ConnStringParser{}
