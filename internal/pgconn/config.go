package pgconn

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	tlsutil "github.com/loykin/taskrun/internal/tls"
)

// Pool bounds applied by PoolConfig.
const (
	PoolMinConns = 0
	PoolMaxConns = 10
)

// Config is a fully resolved connection description.
type Config struct {
	Host                string        `json:"host"`
	Port                int           `json:"port"`
	User                string        `json:"user"`
	Password            string        `json:"password"`
	Database            string        `json:"database"`
	SSL                 SSL           `json:"ssl"`
	Charset             string        `json:"charset"`
	Timezone            string        `json:"timezone"`
	CreateRetryInterval time.Duration `json:"createRetryInterval"`
}

// sslmode maps SSL onto the libpq keyword pgx understands.
func (c Config) sslmode() string {
	switch {
	case !c.SSL.Enabled:
		return "disable"
	case !c.SSL.Verify:
		return "require"
	case c.SSL.Mode == "verify-ca":
		return "verify-ca"
	default:
		return "verify-full"
	}
}

func (c Config) url() *url.URL {
	u := &url.URL{Scheme: "postgres", Path: "/" + c.Database}
	switch {
	case c.Password != "":
		u.User = url.UserPassword(c.User, c.Password)
	case c.User != "":
		u.User = url.User(c.User)
	}
	q := url.Values{}
	if strings.HasPrefix(c.Host, "/") {
		q.Set("host", c.Host)
		q.Set("port", strconv.Itoa(c.Port))
	} else {
		u.Host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	q.Set("sslmode", c.sslmode())
	u.RawQuery = q.Encode()
	return u
}

// DSN renders the config as a postgres:// URL.
func (c Config) DSN() string { return c.url().String() }

// Redacted is DSN with the password masked, for logs.
func (c Config) Redacted() string { return c.url().Redacted() }

// PoolConfig builds a pgxpool configuration: session timezone and client
// encoding are pinned and TLS follows c.SSL.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	pc.MinConns = PoolMinConns
	pc.MaxConns = PoolMaxConns

	cc := pc.ConnConfig
	if cc.RuntimeParams == nil {
		cc.RuntimeParams = map[string]string{}
	}
	cc.RuntimeParams["timezone"] = c.Timezone
	cc.RuntimeParams["client_encoding"] = strings.ToUpper(c.Charset)
	cc.Fallbacks = nil
	cc.TLSConfig = nil
	if c.SSL.Enabled {
		serverName := c.Host
		if strings.HasPrefix(serverName, "/") {
			serverName = ""
		}
		tc, err := tlsutil.ClientConfig(tlsutil.ClientOptions{
			ServerName: serverName,
			Verify:     c.SSL.Verify,
			CertPEM:    []byte(c.SSL.Cert),
			KeyPEM:     []byte(c.SSL.Key),
			RootCAPEM:  []byte(c.SSL.RootCA),
		})
		if err != nil {
			return nil, err
		}
		cc.TLSConfig = tc
	}
	return pc, nil
}
