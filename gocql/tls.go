package gocql

import (
	"crypto/tls"

	"github.com/kulezi/cqldriver/transport"
)

// SslOptions mirrors gocql's TLS configuration knobs.
type SslOptions struct {
	CertPath               string
	KeyPath                string
	CaPath                 string
	ServerName             string
	EnableHostVerification bool
}

func setupTLSConfig(opts *SslOptions) (*tls.Config, error) {
	return transport.NewTLSConfig(transport.TLSConfig{
		CertFile:           opts.CertPath,
		KeyFile:            opts.KeyPath,
		CAFile:             opts.CaPath,
		ServerName:         opts.ServerName,
		InsecureSkipVerify: !opts.EnableHostVerification,
	})
}
