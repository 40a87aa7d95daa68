// Package tls builds client TLS configurations for database connections.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// ClientOptions describes the TLS posture of one outgoing connection.
// PEM fields hold file contents, not paths.
type ClientOptions struct {
	ServerName string
	Verify     bool
	CertPEM    []byte
	KeyPEM     []byte
	RootCAPEM  []byte
	MinVersion string // "1.2" (default) or "1.3"
}

// parseTLSVersion parses TLS version string and returns the corresponding constant
func parseTLSVersion(ver string) (uint16, bool) {
	switch ver {
	case "", "default":
		return tls.VersionTLS12, false
	case "1.2", "TLS1.2", "tls1.2":
		return tls.VersionTLS12, true
	case "1.3", "TLS1.3", "tls1.3":
		return tls.VersionTLS13, true
	default:
		return 0, false
	}
}

// ClientConfig returns a *tls.Config for o. Verification is skipped unless
// o.Verify is set; a client certificate is attached only when both cert and
// key are present.
func ClientConfig(o ClientOptions) (*tls.Config, error) {
	minVer, ok := parseTLSVersion(o.MinVersion)
	if !ok && o.MinVersion != "" && o.MinVersion != "default" {
		return nil, fmt.Errorf("unsupported TLS version %q", o.MinVersion)
	}

	// #nosec G402 verification is opt-out for hosts configured without it
	cfg := &tls.Config{
		ServerName:         o.ServerName,
		InsecureSkipVerify: !o.Verify,
		MinVersion:         minVer,
	}

	if len(o.RootCAPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(o.RootCAPEM) {
			return nil, errors.New("no certificates found in root CA")
		}
		cfg.RootCAs = pool
	}

	switch {
	case len(o.CertPEM) > 0 && len(o.KeyPEM) > 0:
		cert, err := tls.X509KeyPair(o.CertPEM, o.KeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	case len(o.CertPEM) > 0 || len(o.KeyPEM) > 0:
		return nil, errors.New("client certificate and key must be given together")
	}
	return cfg, nil
}
