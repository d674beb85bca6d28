package commands

import (
	"context"
	"fmt"

	"github.com/vocdoni/gofirma/lotwsign/internal/channel"
)

type SignCmd struct {
	ContainerFlags `embed:""`
	PayloadFlags   `embed:""`
}

func (cmd *SignCmd) Run(ctx context.Context, globals *Globals) error {
	args, err := cmd.arguments()
	if err != nil {
		return err
	}
	if args.Data, err = cmd.payload(); err != nil {
		return err
	}

	res, err := invoke(ctx, globals, channel.MethodSign, args)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(globals.out(), res.SignatureB64)
	return err
}
