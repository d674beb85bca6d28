package commands

import (
	"context"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/vocdoni/gofirma/lotwsign/internal/canon"
	"github.com/vocdoni/gofirma/lotwsign/internal/channel"
)

type CertCmd struct {
	ContainerFlags `embed:""`
	PEM            bool `help:"write PEM instead of single-line base64 DER"`
}

func (cmd *CertCmd) Run(ctx context.Context, globals *Globals) error {
	args, err := cmd.arguments()
	if err != nil {
		return err
	}

	res, err := invoke(ctx, globals, channel.MethodGetCertificate, args)
	if err != nil {
		return err
	}
	if !cmd.PEM {
		_, err = fmt.Fprintln(globals.out(), res.Certificate)
		return err
	}
	der, err := base64.StdEncoding.DecodeString(res.Certificate)
	if err != nil {
		return fmt.Errorf("failed to decode certificate: %w", err)
	}
	return pem.Encode(globals.out(), &pem.Block{Type: "CERTIFICATE", Bytes: der})
}

type InfoCmd struct {
	ContainerFlags `embed:""`
}

func (cmd *InfoCmd) Run(ctx context.Context, globals *Globals) error {
	args, err := cmd.arguments()
	if err != nil {
		return err
	}

	res, err := invoke(ctx, globals, channel.MethodGetCertificateInfo, args)
	if err != nil {
		return err
	}
	return canon.WriteLine(globals.out(), res.CertificateInfo)
}
