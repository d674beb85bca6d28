// Package testutil builds throwaway RSA identities and PKCS#12 containers
// for tests.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Identity is a leaf key/certificate issued by a throwaway CA.
type Identity struct {
	Key   *rsa.PrivateKey
	Cert  *x509.Certificate
	CA    *x509.Certificate
	CAKey *rsa.PrivateKey
}

// Options tune the generated leaf certificate.
type Options struct {
	Bits            int
	CommonName      string
	ExtraNames      []pkix.AttributeTypeAndValue
	ExtraExtensions []pkix.Extension
}

var (
	defaultOnce sync.Once
	defaultID   *Identity
	defaultErr  error
)

// Default returns a shared 2048-bit identity. Tests must not mutate it.
func Default(t testing.TB) *Identity {
	t.Helper()
	defaultOnce.Do(func() {
		defaultID, defaultErr = newIdentity(Options{Bits: 2048, CommonName: "K1ABC"})
	})
	require.NoError(t, defaultErr)
	return defaultID
}

// NewIdentity generates a fresh identity.
func NewIdentity(t testing.TB, opts Options) *Identity {
	t.Helper()
	id, err := newIdentity(opts)
	require.NoError(t, err)
	return id
}

func newIdentity(opts Options) (*Identity, error) {
	if opts.Bits == 0 {
		opts.Bits = 2048
	}
	if opts.CommonName == "" {
		opts.CommonName = "K1ABC"
	}

	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Logbook CA", Organization: []string{"Test"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, err
	}
	ca, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, err
	}

	key, err := rsa.GenerateKey(rand.Reader, opts.Bits)
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber:    big.NewInt(2),
		Subject:         pkix.Name{CommonName: opts.CommonName, ExtraNames: opts.ExtraNames},
		NotBefore:       now.Add(-time.Hour),
		NotAfter:        now.Add(24 * time.Hour),
		KeyUsage:        x509.KeyUsageDigitalSignature,
		ExtraExtensions: opts.ExtraExtensions,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, ca, &key.PublicKey, caKey)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &Identity{Key: key, Cert: cert, CA: ca, CAKey: caKey}, nil
}

// PKCS12 encodes the identity and its CA with the modern (PBES2/AES,
// HMAC-SHA-256) profile.
func (id *Identity) PKCS12(t testing.TB, password string) []byte {
	t.Helper()
	data, err := pkcs12.Modern.Encode(id.Key, id.Cert, []*x509.Certificate{id.CA}, password)
	require.NoError(t, err)
	return data
}

// LegacyPKCS12 encodes with 3DES and a SHA-1 MAC, as older exporters do.
func (id *Identity) LegacyPKCS12(t testing.TB, password string) []byte {
	t.Helper()
	data, err := pkcs12.LegacyDES.Encode(id.Key, id.Cert, []*x509.Certificate{id.CA}, password)
	require.NoError(t, err)
	return data
}

// TrustStore encodes certificate-only entries.
func TrustStore(t testing.TB, certs []*x509.Certificate, password string) []byte {
	t.Helper()
	data, err := pkcs12.Modern.EncodeTrustStore(certs, password)
	require.NoError(t, err)
	return data
}
