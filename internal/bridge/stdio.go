package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vocdoni/gofirma/lotwsign/internal/canon"
	"github.com/vocdoni/gofirma/lotwsign/internal/channel"
	"github.com/vocdoni/gofirma/lotwsign/internal/model"
)

// maxLineBytes bounds one request line; base64 containers are small but
// payloads may be long.
const maxLineBytes = 16 << 20

// ServeStdio reads one model.CallRequest per line from in and writes one
// canonical model.CallResponse per line to out, in request order. It
// returns nil at end of input.
func ServeStdio(ctx context.Context, inv Invoker, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := canon.WriteLine(out, handleLine(ctx, inv, line)); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

func handleLine(ctx context.Context, inv Invoker, line []byte) model.CallResponse {
	var req model.CallRequest
	if err := json.Unmarshal(line, &req); err != nil {
		log.Debug().Err(err).Msg("undecodable stdio request")
		return model.CallResponse{Error: "invalid request: " + err.Error()}
	}
	if req.Method == "" {
		return model.CallResponse{ID: req.ID, Error: "invalid request: method is empty"}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	res, err := inv.Invoke(channel.WithCallID(ctx, req.ID), req.Method, req.Args)
	switch {
	case errors.Is(err, channel.ErrNotImplemented):
		return model.CallResponse{ID: req.ID, NotImplemented: true}
	case err != nil:
		return model.CallResponse{ID: req.ID, Error: err.Error()}
	}
	return model.CallResponse{ID: req.ID, Result: &res}
}
