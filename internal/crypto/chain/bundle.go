// Package chain exports a certificate and its CA chain as a certs-only
// PKCS#7 SignedData (.p7b) bundle.
package chain

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/smallstep/pkcs7"
)

var ErrBundleFailure = errors.New("certificate bundle failure")

// Bundle encodes leaf followed by chain as a degenerate SignedData with no
// signers and no content. Certificates repeated in chain are skipped.
func Bundle(leaf *x509.Certificate, chain []*x509.Certificate) ([]byte, error) {
	if leaf == nil || len(leaf.Raw) == 0 {
		return nil, fmt.Errorf("%w: no leaf certificate", ErrBundleFailure)
	}

	var raw bytes.Buffer
	seen := map[string]struct{}{string(leaf.Raw): {}}
	raw.Write(leaf.Raw)
	for _, c := range chain {
		if c == nil || len(c.Raw) == 0 {
			continue
		}
		if _, dup := seen[string(c.Raw)]; dup {
			continue
		}
		seen[string(c.Raw)] = struct{}{}
		raw.Write(c.Raw)
	}

	out, err := pkcs7.DegenerateCertificate(raw.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBundleFailure, err)
	}
	log.Debug().Int("certificates", len(seen)).Int("bytes", len(out)).Msg("certificate bundle built")
	return out, nil
}

// BundleBase64 is Bundle in standard base64 without line breaks.
func BundleBase64(leaf *x509.Certificate, chain []*x509.Certificate) (string, error) {
	out, err := Bundle(leaf, chain)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Certificates parses a bundle produced by Bundle.
func Certificates(p7b []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(p7b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBundleFailure, err)
	}
	return p7.Certificates, nil
}
