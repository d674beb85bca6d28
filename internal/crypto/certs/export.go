package certs

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrEncodingFailure means the certificate has no DER form to export.
var ErrEncodingFailure = errors.New("certificate encoding failure")

// ExportBase64 returns the certificate's DER bytes in standard base64
// without line breaks. The bytes are exported exactly as stored.
func ExportBase64(cert *x509.Certificate) (string, error) {
	if cert == nil {
		return "", fmt.Errorf("%w: no certificate", ErrEncodingFailure)
	}
	if len(cert.Raw) == 0 {
		return "", fmt.Errorf("%w: certificate has no DER encoding", ErrEncodingFailure)
	}
	return base64.StdEncoding.EncodeToString(cert.Raw), nil
}
