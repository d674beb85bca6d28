package pkcs12store

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Fingerprint returns the SHA-256 fingerprint for a certificate.
func Fingerprint(cert *x509.Certificate) [32]byte {
	return sha256.Sum256(cert.Raw)
}

// OpenKeystore decrypts and parses a PKCS#12/PFX container. The empty
// password is a valid password. Legacy BER-encoded files are retried after
// BER-to-DER normalization.
func OpenKeystore(data []byte, password string) (Keystore, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty container", ErrInvalidContainer)
	}

	attempts := newDefaultAttemptSource().Build(data, password)
	payload, blocks, err := decodeWithAttempts(decodeBags, attempts, password)
	if err != nil {
		return nil, err
	}
	entries, chain, err := buildEntries(blocks)
	if err != nil {
		wipeBlocks(blocks)
		return nil, fmt.Errorf("%w: %w: %v", ErrInvalidContainer, ErrInvalidFile, err)
	}

	log.Debug().
		Int("bytes", len(data)).
		Int("entries", len(entries)).
		Int("chain", len(chain)).
		Msg("pkcs12 container decoded")

	return &bagKeystore{
		data:     payload,
		password: password,
		decode:   decodeBags,
		entries:  entries,
		chain:    chain,
	}, nil
}

// decodeBags lists the container's safe bags as PEM blocks, keeping bag
// order and the friendlyName/localKeyId attributes. Containers ToPEM cannot
// represent (unknown bag attributes, non-RSA/EC keys, certificate-only trust
// stores) fall back to DecodeChain and DecodeTrustStore.
func decodeBags(data []byte, password string) ([]*pem.Block, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err == nil {
		return blocks, nil
	}
	if isIncorrectPasswordError(err) {
		return nil, err
	}

	chainBlocks, chainErr := decodeChainBlocks(data, password)
	if chainErr == nil {
		return chainBlocks, nil
	}
	if isIncorrectPasswordError(chainErr) {
		return nil, chainErr
	}

	if trustBlocks, trustErr := decodeTrustStoreBlocks(data, password); trustErr == nil {
		return trustBlocks, nil
	}
	return nil, err
}

func decodeChainBlocks(data []byte, password string) ([]*pem.Block, error) {
	priv, cert, caCerts, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}

	sum := sha1.Sum(cert.Raw)
	keyID := hex.EncodeToString(sum[:])
	blocks := []*pem.Block{
		{Type: pemTypePrivateKey, Headers: map[string]string{"localKeyId": keyID}, Bytes: keyDER},
		{Type: pemTypeCertificate, Headers: map[string]string{"localKeyId": keyID}, Bytes: cert.Raw},
	}
	for _, ca := range caCerts {
		blocks = append(blocks, &pem.Block{Type: pemTypeCertificate, Headers: map[string]string{}, Bytes: ca.Raw})
	}
	return blocks, nil
}

func decodeTrustStoreBlocks(data []byte, password string) ([]*pem.Block, error) {
	certs, err := pkcs12.DecodeTrustStore(data, password)
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, errors.New("pkcs12: trust store holds no certificates")
	}
	blocks := make([]*pem.Block, 0, len(certs))
	for _, c := range certs {
		blocks = append(blocks, &pem.Block{
			Type:    pemTypeCertificate,
			Headers: map[string]string{"friendlyName": c.Subject.String()},
			Bytes:   c.Raw,
		})
	}
	return blocks, nil
}

// parsePrivateKey accepts the PKCS#1 and SEC 1 encodings ToPEM emits as well
// as PKCS#8.
func parsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: unrecognized private key encoding", ErrInvalidContainer, ErrUnsupported)
	}
	if _, ok := key.(crypto.Signer); !ok {
		return nil, fmt.Errorf("%w: %w: key type %T", ErrInvalidContainer, ErrUnsupported, key)
	}
	return key, nil
}
