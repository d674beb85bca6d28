package certs

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocdoni/gofirma/lotwsign/internal/testutil"
)

func mustMarshal(t *testing.T, v any, params string) []byte {
	t.Helper()
	b, err := asn1.MarshalWithParams(v, params)
	require.NoError(t, err)
	return b
}

func TestExtract_LoTWAttributes(t *testing.T) {
	id := testutil.NewIdentity(t, testutil.Options{
		Bits:       1024,
		CommonName: "John Doe",
		ExtraNames: []pkix.AttributeTypeAndValue{
			{Type: oidCallsign, Value: "k1abc"},
		},
		ExtraExtensions: []pkix.Extension{
			{Id: oidQSOFirstDate, Value: mustMarshal(t, "1945-11-01", "ia5")},
			{Id: oidQSOLastDate, Value: []byte("20301231")},
			{Id: oidDXCCEntity, Value: mustMarshal(t, "291", "utf8")},
		},
	})

	info := Extract(id.Cert)
	assert.Equal(t, "K1ABC", info.Callsign)
	assert.Equal(t, "1945-11-01", info.QSOFirstDate)
	assert.Equal(t, "2030-12-31", info.QSOLastDate)
	assert.Equal(t, "291", info.DXCCEntity)
	assert.Equal(t, "John Doe", info.CommonName)
	assert.Equal(t, "Test Logbook CA", info.Issuer)
	assert.Len(t, info.Fingerprint, 64)
	assert.Equal(t, "2", info.SerialNumber)

	_, err := time.Parse(time.RFC3339, info.ValidUntil)
	assert.NoError(t, err)
}

func TestExtract_CallsignFromCN(t *testing.T) {
	cert := &x509.Certificate{
		Subject:  pkix.Name{CommonName: "  ve3xyz   Jane Roe "},
		Issuer:   pkix.Name{CommonName: "Logbook of the World Production CA"},
		NotAfter: time.Date(2027, 2, 22, 9, 10, 11, 0, time.UTC),
	}

	info := Extract(cert)
	assert.Equal(t, "VE3XYZ", info.Callsign)
	assert.Equal(t, "ve3xyz Jane Roe", info.CommonName)
	assert.Equal(t, "2027-02-22T09:10:11Z", info.ValidUntil)
	assert.Empty(t, info.DXCCEntity)
	assert.Empty(t, info.QSOFirstDate)
}

func TestExtract_CallsignExtensionFallback(t *testing.T) {
	cert := &x509.Certificate{
		Subject: pkix.Name{CommonName: "Club Station"},
		Extensions: []pkix.Extension{
			{Id: oidCallsign, Value: mustMarshal(t, "w1aw", "printable")},
			{Id: oidDXCCEntity, Value: mustMarshal(t, 291, "")},
		},
	}

	info := Extract(cert)
	assert.Equal(t, "W1AW", info.Callsign)
	assert.Equal(t, "291", info.DXCCEntity)
}

func TestExportBase64(t *testing.T) {
	id := testutil.Default(t)

	got, err := ExportBase64(id.Cert)
	require.NoError(t, err)
	assert.NotContains(t, got, "\n")

	der, err := base64.StdEncoding.DecodeString(got)
	require.NoError(t, err)
	assert.Equal(t, id.Cert.Raw, der)
}

func TestExportBase64NoDER(t *testing.T) {
	_, err := ExportBase64(&x509.Certificate{})
	assert.ErrorIs(t, err, ErrEncodingFailure)

	_, err = ExportBase64(nil)
	assert.ErrorIs(t, err, ErrEncodingFailure)
}
