package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/vocdoni/gofirma/lotwsign/internal/channel"
)

type ChainCmd struct {
	ContainerFlags `embed:""`
	Out            string `help:"write the DER .p7b bundle to this file instead of base64 to stdout" type:"path"`
}

func (cmd *ChainCmd) Run(ctx context.Context, globals *Globals) error {
	args, err := cmd.arguments()
	if err != nil {
		return err
	}

	res, err := invoke(ctx, globals, channel.MethodGetCertificateChain, args)
	if err != nil {
		return err
	}
	if cmd.Out == "" {
		_, err = fmt.Fprintln(globals.out(), res.ChainP7B)
		return err
	}

	der, err := base64.StdEncoding.DecodeString(res.ChainP7B)
	if err != nil {
		return fmt.Errorf("failed to decode bundle: %w", err)
	}
	if err := os.WriteFile(cmd.Out, der, 0o644); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	log.Info().Str("path", cmd.Out).Int("bytes", len(der)).Msg("certificate bundle written")
	return nil
}
