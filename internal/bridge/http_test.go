package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocdoni/gofirma/lotwsign/internal/channel"
	"github.com/vocdoni/gofirma/lotwsign/internal/model"
	"github.com/vocdoni/gofirma/lotwsign/internal/testutil"
)

func newTestServer(t *testing.T, opts HTTPOptions) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHTTPHandler(channel.NewRouter(), opts))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientCall(t *testing.T) {
	id := testutil.Default(t)
	srv := newTestServer(t, HTTPOptions{})
	c := NewClient(srv.URL + "/")

	res, err := c.Call(context.Background(), "getCertificate", model.Arguments{
		P12:      id.PKCS12(t, "secret"),
		Password: "secret",
	})
	require.NoError(t, err)
	require.True(t, res.OK, res.Error)

	der, err := base64.StdEncoding.DecodeString(res.Certificate)
	require.NoError(t, err)
	assert.Equal(t, id.Cert.Raw, der)
}

func TestClientCallFailureEnvelope(t *testing.T) {
	srv := newTestServer(t, HTTPOptions{})

	res, err := NewClient(srv.URL).Call(context.Background(), "sign", model.Arguments{P12: []byte{1}})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "data is empty", res.Error)
}

func TestClientCallNotImplemented(t *testing.T) {
	srv := newTestServer(t, HTTPOptions{})

	_, err := NewClient(srv.URL).Call(context.Background(), "teleport", model.Arguments{})
	assert.ErrorIs(t, err, channel.ErrNotImplemented)
}

func TestHTTPNotImplementedStatus(t *testing.T) {
	srv := newTestServer(t, HTTPOptions{})

	resp, err := http.Post(srv.URL+"/v1/call/teleport", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	var body model.CallResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.NotImplemented)
	assert.NotEmpty(t, resp.Header.Get(CallIDHeader))
}

func TestHTTPBadBody(t *testing.T) {
	srv := newTestServer(t, HTTPOptions{})

	resp, err := http.Post(srv.URL+"/v1/call/sign", "application/json", strings.NewReader(`{"p12":`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, HTTPOptions{MaxBodyBytes: 16})

	resp, err := http.Post(srv.URL+"/v1/call/sign", "application/json", strings.NewReader(`{"data":"`+strings.Repeat("x", 64)+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPMethodsAndHealth(t *testing.T) {
	srv := newTestServer(t, HTTPOptions{})

	resp, err := http.Get(srv.URL + "/v1/methods")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Methods []string `json:"methods"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Methods, "sign")
	assert.Contains(t, body.Methods, "getCertificate")

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestHTTPCallIDPropagates(t *testing.T) {
	srv := newTestServer(t, HTTPOptions{})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/call/sign", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set(CallIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(CallIDHeader))
}

func TestHTTPCORSPreflight(t *testing.T) {
	srv := newTestServer(t, HTTPOptions{AllowedOrigins: []string{"https://logger.example"}})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/call/sign", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://logger.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://logger.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	other, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer other.Body.Close()
	assert.Empty(t, other.Header.Get("Access-Control-Allow-Origin"))
}
