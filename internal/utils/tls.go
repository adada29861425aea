package utils

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

func setDefaults(cfg *tls.Config) {
	cfg.MinVersion = tls.VersionTLS12
	cfg.CurvePreferences = []tls.CurveID{tls.CurveP521, tls.CurveP384, tls.CurveP256}
}

// TLSConfig builds a client tls config from the given PEM files. If none are
// set we return nil (no TLS).
func TLSConfig(cacert, cert, key string) (*tls.Config, error) {
	if cacert == "" && cert == "" && key == "" {
		return nil, nil
	}
	if (cert == "") != (key == "") {
		return nil, fmt.Errorf("tls cert and key must be given together")
	}

	cfg := &tls.Config{}
	setDefaults(cfg)

	if cert != "" {
		pair, err := tls.LoadX509KeyPair(cert, key)
		if err != nil {
			return nil, fmt.Errorf("loading tls keypair %s: %w", cert, err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	if cacert != "" {
		pem, err := os.ReadFile(cacert)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cacert)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}
