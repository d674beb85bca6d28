package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocdoni/gofirma/lotwsign/internal/crypto/chain"
	"github.com/vocdoni/gofirma/lotwsign/internal/model"
	"github.com/vocdoni/gofirma/lotwsign/internal/storage"
	"github.com/vocdoni/gofirma/lotwsign/internal/testutil"
)

func writeContainer(t *testing.T, password string) (string, *testutil.Identity) {
	t.Helper()
	id := testutil.Default(t)
	path := filepath.Join(t.TempDir(), "lotw.p12")
	require.NoError(t, os.WriteFile(path, id.PKCS12(t, password), 0o600))
	return path, id
}

func TestSignAndVerify(t *testing.T) {
	p12, id := writeContainer(t, "secret")
	t.Setenv("LOTWSIGN_PASSWORD", "secret")

	var out bytes.Buffer
	globals := &Globals{Stdout: &out}
	sign := &SignCmd{
		ContainerFlags: ContainerFlags{P12: p12, PasswordEnv: "LOTWSIGN_PASSWORD"},
		PayloadFlags:   PayloadFlags{Data: "<CALL:4>W1AW<EOR>"},
	}
	require.NoError(t, sign.Run(context.Background(), globals))
	sig := strings.TrimSpace(out.String())
	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.Len(t, raw, id.Key.Size())

	certPath := filepath.Join(t.TempDir(), "cert.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.Cert.Raw}), 0o600))

	out.Reset()
	verify := &VerifyCmd{Cert: certPath, Signature: sig, PayloadFlags: PayloadFlags{Data: "<CALL:4>W1AW<EOR>"}}
	require.NoError(t, verify.Run(context.Background(), globals))
	assert.Contains(t, out.String(), "signature OK")

	verify.Data = "<CALL:4>W1AX<EOR>"
	assert.Error(t, verify.Run(context.Background(), globals))
}

func TestSignWrongPassword(t *testing.T) {
	p12, _ := writeContainer(t, "secret")
	pwFile := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(pwFile, []byte("wrong\n"), 0o600))

	sign := &SignCmd{
		ContainerFlags: ContainerFlags{P12: p12, PasswordFile: pwFile},
		PayloadFlags:   PayloadFlags{Data: "x"},
	}
	err := sign.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestSignEmptyPayload(t *testing.T) {
	p12, _ := writeContainer(t, "")

	sign := &SignCmd{ContainerFlags: ContainerFlags{P12: p12, PasswordEnv: "LOTWSIGN_TEST_UNSET"}}
	err := sign.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
	assert.EqualError(t, err, "data is empty")
}

func TestPasswordFileFirstLine(t *testing.T) {
	pwFile := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(pwFile, []byte("s3cret\r\nignored\n"), 0o600))

	pw, err := (&ContainerFlags{PasswordFile: pwFile}).password()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)
}

func TestCertPEM(t *testing.T) {
	p12, id := writeContainer(t, "secret")
	pwFile := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(pwFile, []byte("secret"), 0o600))

	var out bytes.Buffer
	cmd := &CertCmd{ContainerFlags: ContainerFlags{P12: p12, PasswordFile: pwFile}, PEM: true}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &out}))

	block, _ := pem.Decode(out.Bytes())
	require.NotNil(t, block)
	assert.Equal(t, id.Cert.Raw, block.Bytes)
}

func TestInfoWritesJSON(t *testing.T) {
	p12, _ := writeContainer(t, "secret")
	t.Setenv("LOTWSIGN_PASSWORD", "secret")

	var out bytes.Buffer
	cmd := &InfoCmd{ContainerFlags: ContainerFlags{P12: p12, PasswordEnv: "LOTWSIGN_PASSWORD"}}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &out}))

	var info model.CertificateInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, "K1ABC", info.Callsign)
}

func TestChainToFile(t *testing.T) {
	p12, id := writeContainer(t, "secret")
	t.Setenv("LOTWSIGN_PASSWORD", "secret")
	outPath := filepath.Join(t.TempDir(), "chain.p7b")

	cmd := &ChainCmd{ContainerFlags: ContainerFlags{P12: p12, PasswordEnv: "LOTWSIGN_PASSWORD"}, Out: outPath}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}}))

	der, err := os.ReadFile(outPath)
	require.NoError(t, err)
	certs, err := chain.Certificates(der)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, id.Cert.Raw, certs[0].Raw)
}

func TestAuditDir(t *testing.T) {
	p12, _ := writeContainer(t, "secret")
	t.Setenv("LOTWSIGN_PASSWORD", "secret")
	auditDir := t.TempDir()

	cmd := &CertCmd{ContainerFlags: ContainerFlags{P12: p12, PasswordEnv: "LOTWSIGN_PASSWORD"}}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}, AuditDir: auditDir}))

	audit, err := storage.NewAuditLogger(auditDir)
	require.NoError(t, err)
	entries, err := audit.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "getCertificate", entries[0].Method)
	assert.True(t, entries[0].OK)
	assert.NotEmpty(t, entries[0].CertFingerprint)
}
