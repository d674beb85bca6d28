package commands

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/vocdoni/gofirma/lotwsign/internal/crypto/signer"
)

type VerifyCmd struct {
	Cert         string `help:"certificate file: PEM, DER or single-line base64 DER" required:"" type:"existingfile"`
	Signature    string `help:"base64 signature to check" required:""`
	PayloadFlags `embed:""`
}

func (cmd *VerifyCmd) Run(ctx context.Context, globals *Globals) error {
	cert, err := readCertificate(cmd.Cert)
	if err != nil {
		return err
	}
	payload, err := cmd.payload()
	if err != nil {
		return err
	}
	if err := signer.Verify(cert.PublicKey, payload, cmd.Signature); err != nil {
		return err
	}
	_, err = fmt.Fprintf(globals.out(), "signature OK (%s)\n", cert.Subject.CommonName)
	return err
}

func readCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	} else if decoded, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data))); err == nil {
		der = decoded
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}
