package pkcs12store

import (
	"bytes"
	"crypto/sha256"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

type decodeAttempt struct {
	name string
	data []byte
	pass string
}

type decodeBagsFunc func(pfxData []byte, password string) ([]*pem.Block, error)

type attemptSource interface {
	Build(data []byte, password string) []decodeAttempt
}

// defaultAttemptSource builds a small, deterministic list of decode attempts:
// raw bytes first, then BER-normalized bytes, then BER-normalized with
// recomputed MAC. A single-safe container also gets a two-safe rewrite of
// whichever of those payloads is DER. Every attempt uses the caller's
// password; there is no alternate-password fallback, so a wrong password can
// never succeed.
type defaultAttemptSource struct{}

func newDefaultAttemptSource() attemptSource {
	return defaultAttemptSource{}
}

func (defaultAttemptSource) Build(data []byte, password string) []decodeAttempt {
	var attempts []decodeAttempt
	seen := make(map[[32]byte]struct{})
	add := func(name string, payload []byte) {
		sum := sha256.Sum256(payload)
		if _, ok := seen[sum]; ok {
			return
		}
		seen[sum] = struct{}{}
		attempts = append(attempts, decodeAttempt{name: name, data: payload, pass: password})
	}

	addPadded := func(name string, payload []byte) {
		if padded, err := padAuthSafe(payload, password); err == nil {
			add(name, padded)
		}
	}

	add("raw", data)

	normalized, err := normalizeBER(data)
	if err != nil || bytes.Equal(normalized, data) {
		addPadded("two-safe", data)
		return attempts
	}
	add("ber-normalized", normalized)

	// BER normalization can invalidate MAC bytes, so retry with recomputed MAC.
	// Already-DER input never gets here: its MAC verdict stands.
	if rewritten, err := recomputePFXMAC(normalized, password); err == nil {
		add("mac-recomputed", rewritten)
		addPadded("mac-recomputed-two-safe", rewritten)
	}

	return attempts
}

// decodeWithAttempts runs attempts in order and returns the payload that
// decoded together with its bags. Each attempt repairs the failure mode of
// the one before it, so a total failure is classified by the last error.
func decodeWithAttempts(decode decodeBagsFunc, attempts []decodeAttempt, userPassword string) ([]byte, []*pem.Block, error) {
	lastErr := errors.New("unknown parse error")
	for _, attempt := range attempts {
		blocks, err := decode(attempt.data, attempt.pass)
		if err == nil {
			if attempt.name != "raw" {
				log.Debug().Str("attempt", attempt.name).Msg("pkcs12 decoded after normalization")
			}
			return attempt.data, blocks, nil
		}
		log.Debug().Str("attempt", attempt.name).Err(err).Msg("pkcs12 decode attempt failed")
		lastErr = err
	}
	return nil, nil, classifyDecodeError(lastErr, userPassword)
}

func classifyDecodeError(err error, userPassword string) error {
	switch {
	case isIncorrectPasswordError(err):
		if userPassword == "" {
			return fmt.Errorf("%w: %w", ErrInvalidContainer, ErrPasswordRequired)
		}
		return fmt.Errorf("%w: %w", ErrInvalidContainer, ErrWrongPassword)
	case isLikelyInvalidFileError(err):
		return fmt.Errorf("%w: %w: %v", ErrInvalidContainer, ErrInvalidFile, err)
	default:
		return fmt.Errorf("%w: %w: %v", ErrInvalidContainer, ErrUnsupported, err)
	}
}
