package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/vocdoni/gofirma/lotwsign/cmd/lotwsign/internal/commands"
	"github.com/vocdoni/gofirma/lotwsign/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Sign     commands.SignCmd   `cmd:"" help:"Sign a payload with the container's private key (SHA1withRSA)"`
		Cert     commands.CertCmd   `cmd:"" help:"Export the container's certificate"`
		Info     commands.InfoCmd   `cmd:"" help:"Show the container certificate's LoTW details"`
		Chain    commands.ChainCmd  `cmd:"" help:"Export certificate and CA chain as a .p7b bundle"`
		Verify   commands.VerifyCmd `cmd:"" help:"Verify a base64 SHA1withRSA signature"`
		Serve    commands.ServeCmd  `cmd:"" help:"Serve calls over HTTP"`
		Stdio    commands.StdioCmd  `cmd:"" help:"Serve JSON-lines calls on stdin/stdout"`
		Debug    bool               `help:"Enable debug mode." env:"LOTWSIGN_DEBUG"`
		AuditDir string             `help:"Directory for the call audit log (disabled when empty)" env:"LOTWSIGN_AUDIT_DIR"`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("lotwsign"),
		kong.Description("Sign Logbook of The World records with a PKCS#12 certificate."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	err := cmd.Run(&commands.Globals{
		Debug:    cli.Debug,
		Version:  version,
		AuditDir: cli.AuditDir,
		Stdout:   os.Stdout,
	})
	cmd.FatalIfErrorf(err)
}
