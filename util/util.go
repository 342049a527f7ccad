// Copyright 2017-2020, Square, Inc.

// Package util provides helpers shared by the API server and the CLI.
package util

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/square/xferplan/config"
)

// RunId returns a new planning run id: a globally unique xid string. Run ids
// sort by creation time, so per-run submit dirs list oldest first.
func RunId() string {
	return xid.New().String()
}

// NewTLSConfig returns the tls.Config of c. The CA file is optional; without
// it the system roots are used.
func NewTLSConfig(c config.TLS) (*tls.Config, error) {
	if c.CertFile == "" || c.KeyFile == "" {
		return nil, fmt.Errorf("TLS cert_file and key_file are required")
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading TLS key pair")
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}
	if c.CAFile == "" {
		return tlsConfig, nil
	}

	caCert, err := ioutil.ReadFile(c.CAFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading TLS CA file")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("no certificates in TLS CA file %s", c.CAFile)
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}
