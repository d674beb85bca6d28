// Package signer produces and checks SHA1withRSA signatures: a SHA-1 digest
// of the payload signed with RSASSA-PKCS1-v1_5.
package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrSigningFailure is wrapped by every signing and verification failure.
var ErrSigningFailure = errors.New("signing failure")

// Sign hashes everything read from r with SHA-1 and signs the digest with
// key. Only RSA keys are accepted; PKCS#1 v1.5 makes the result
// deterministic for a given key and payload.
func Sign(key crypto.Signer, r io.Reader) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: no private key", ErrSigningFailure)
	}
	pub, ok := key.Public().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: key type %T is not RSA", ErrSigningFailure, key.Public())
	}

	h := sha1.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return nil, fmt.Errorf("%w: read payload: %w", ErrSigningFailure, err)
	}
	digest := h.Sum(nil)

	sig, err := key.Sign(rand.Reader, digest, crypto.SHA1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailure, err)
	}
	log.Debug().Int64("payload_bytes", n).Int("modulus_bits", pub.N.BitLen()).Msg("payload signed")
	return sig, nil
}

// SignBase64 signs the UTF-8 bytes of payload and returns the signature in
// standard base64 without line breaks.
func SignBase64(key crypto.Signer, payload string) (string, error) {
	sig, err := Sign(key, strings.NewReader(payload))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 signature produced by SignBase64.
func Verify(pub crypto.PublicKey, payload, sigB64 string) error {
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: key type %T is not RSA", ErrSigningFailure, pub)
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigB64))
	if err != nil {
		return fmt.Errorf("%w: decode signature: %w", ErrSigningFailure, err)
	}
	digest := sha1.Sum([]byte(payload))
	if err := rsa.VerifyPKCS1v15(rsaPub, crypto.SHA1, digest[:], sig); err != nil {
		return fmt.Errorf("%w: %w", ErrSigningFailure, err)
	}
	return nil
}
