package chain

import (
	"crypto/x509"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocdoni/gofirma/lotwsign/internal/testutil"
)

func TestBundleRoundTrip(t *testing.T) {
	id := testutil.Default(t)

	p7b, err := Bundle(id.Cert, []*x509.Certificate{id.CA, id.CA, nil})
	require.NoError(t, err)

	certs, err := Certificates(p7b)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, id.Cert.Raw, certs[0].Raw)
	assert.Equal(t, id.CA.Raw, certs[1].Raw)
}

func TestBundleLeafOnly(t *testing.T) {
	id := testutil.Default(t)

	b64, err := BundleBase64(id.Cert, nil)
	require.NoError(t, err)
	p7b, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)

	certs, err := Certificates(p7b)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, id.Cert.Raw, certs[0].Raw)
}

func TestBundleNoLeaf(t *testing.T) {
	_, err := Bundle(nil, nil)
	assert.ErrorIs(t, err, ErrBundleFailure)

	_, err = Bundle(&x509.Certificate{}, nil)
	assert.ErrorIs(t, err, ErrBundleFailure)
}

func TestCertificatesRejectsGarbage(t *testing.T) {
	_, err := Certificates([]byte("nope"))
	assert.ErrorIs(t, err, ErrBundleFailure)
}
