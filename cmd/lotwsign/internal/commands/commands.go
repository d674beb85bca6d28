package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vocdoni/gofirma/lotwsign/internal/channel"
	"github.com/vocdoni/gofirma/lotwsign/internal/model"
	"github.com/vocdoni/gofirma/lotwsign/internal/storage"
)

type Globals struct {
	Debug    bool
	Version  string
	AuditDir string
	Stdout   io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Globals) router() (*channel.Router, error) {
	var opts []channel.Option
	if g.AuditDir != "" {
		audit, err := storage.NewAuditLogger(g.AuditDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		log.Debug().Str("path", audit.Path()).Msg("audit log enabled")
		opts = append(opts, channel.WithAudit(audit))
	}
	return channel.NewRouter(opts...), nil
}

// ContainerFlags locate the PKCS#12 container and its password. The
// password is never taken from the command line.
type ContainerFlags struct {
	P12          string `help:"path to the PKCS#12 (.p12/.pfx) container" required:"" type:"existingfile" env:"LOTWSIGN_P12"`
	PasswordEnv  string `help:"environment variable holding the container password" default:"LOTWSIGN_PASSWORD"`
	PasswordFile string `help:"file holding the container password (first line)" type:"existingfile" env:"LOTWSIGN_PASSWORD_FILE"`
}

func (c *ContainerFlags) arguments() (model.Arguments, error) {
	data, err := os.ReadFile(c.P12)
	if err != nil {
		return model.Arguments{}, fmt.Errorf("failed to read container: %w", err)
	}
	password, err := c.password()
	if err != nil {
		return model.Arguments{}, err
	}
	return model.Arguments{P12: data, Password: password}, nil
}

func (c *ContainerFlags) password() (string, error) {
	if c.PasswordFile != "" {
		data, err := os.ReadFile(c.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		line, _, _ := strings.Cut(string(data), "\n")
		return strings.TrimSuffix(line, "\r"), nil
	}
	// An unset variable is the empty password, which is valid.
	return os.Getenv(c.PasswordEnv), nil
}

// PayloadFlags select the text to sign or verify.
type PayloadFlags struct {
	Data     string `help:"payload text" xor:"payload"`
	DataFile string `help:"file holding the payload text ('-' for stdin)" xor:"payload"`
}

func (p *PayloadFlags) payload() (string, error) {
	switch p.DataFile {
	case "":
		return p.Data, nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read payload: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(p.DataFile)
		if err != nil {
			return "", fmt.Errorf("failed to read payload: %w", err)
		}
		return string(data), nil
	}
}

// invoke runs method and turns a failed envelope into an error.
func invoke(ctx context.Context, globals *Globals, method string, args model.Arguments) (model.Result, error) {
	router, err := globals.router()
	if err != nil {
		return model.Result{}, err
	}
	res, err := router.Invoke(ctx, method, args)
	if err != nil {
		return model.Result{}, err
	}
	if !res.OK {
		return res, errors.New(res.Error)
	}
	return res, nil
}
