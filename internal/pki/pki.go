// Package pki parses installed certificate files so the store can derive
// expiry metadata from what is actually on disk.
package pki

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"
)

// ParseLeaf returns the first certificate in a PEM bundle. For a bundled
// chain this is the leaf; issuer certificates follow it.
func ParseLeaf(certPEM []byte) (*x509.Certificate, error) {
	rest := certPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("no PEM certificate block found")
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		return cert, nil
	}
}

// Expiry returns the NotAfter timestamp of the leaf certificate.
func Expiry(certPEM []byte) (time.Time, error) {
	cert, err := ParseLeaf(certPEM)
	if err != nil {
		return time.Time{}, err
	}
	return cert.NotAfter, nil
}

// Domains returns the hostnames the leaf certificate covers: the SANs, or
// the subject common name when no SANs are present.
func Domains(certPEM []byte) ([]string, error) {
	cert, err := ParseLeaf(certPEM)
	if err != nil {
		return nil, err
	}
	if len(cert.DNSNames) > 0 {
		return cert.DNSNames, nil
	}
	if cert.Subject.CommonName != "" {
		return []string{cert.Subject.CommonName}, nil
	}
	return nil, nil
}

// PairMatches reports whether the certificate and private key belong
// together. A mismatched pair on disk means an interrupted installation.
func PairMatches(certPEM, keyPEM []byte) bool {
	_, err := tls.X509KeyPair(certPEM, keyPEM)
	return err == nil
}
