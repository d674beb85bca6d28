package pkcs12store

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"math/big"

	"github.com/rs/zerolog/log"
)

// Need selects which parts of the identity a load must produce.
type Need uint8

const (
	NeedPrivateKey Need = 1 << iota
	NeedCertificate
)

// Identity is the signing identity found under a container's first alias.
// It stays usable until Destroy, which also closes the source keystore.
type Identity struct {
	Alias       string
	Signer      crypto.Signer
	Certificate *x509.Certificate
	Chain       []*x509.Certificate

	ks Keystore
}

// Fingerprint returns the SHA-256 fingerprint of the identity certificate,
// or the zero value when the identity has none.
func (id *Identity) Fingerprint() [32]byte {
	if id.Certificate == nil {
		return [32]byte{}
	}
	return Fingerprint(id.Certificate)
}

// Destroy zeroes the exported RSA private parameters (D, the primes and the
// CRT values), closes the keystore and drops every reference the identity
// holds. The unexported precomputed state inside crypto/rsa cannot be
// reached.
func (id *Identity) Destroy() {
	if key, ok := id.Signer.(*rsa.PrivateKey); ok {
		zeroRSA(key)
	}
	if id.ks != nil {
		id.ks.Close()
	}
	id.Signer = nil
	id.Certificate = nil
	id.Chain = nil
	id.ks = nil
}

func zeroRSA(key *rsa.PrivateKey) {
	pre := &key.Precomputed
	for _, n := range []*big.Int{key.D, pre.Dp, pre.Dq, pre.Qinv} {
		if n != nil {
			n.SetInt64(0)
		}
	}
	for _, p := range key.Primes {
		p.SetInt64(0)
	}
	for _, crt := range pre.CRTValues {
		for _, n := range []*big.Int{crt.Exp, crt.Coeff, crt.R} {
			if n != nil {
				n.SetInt64(0)
			}
		}
	}
}

// OpenFunc opens a container into a Keystore.
type OpenFunc func(data []byte, password string) (Keystore, error)

// Loader locates signing identities inside containers. It keeps no state
// between calls.
type Loader struct {
	Open OpenFunc
}

// NewLoader returns a Loader backed by go-pkcs12.
func NewLoader() *Loader {
	return &Loader{Open: OpenKeystore}
}

// Load opens data with password and extracts the identity stored under the
// first alias. The password is reused as the key password. The caller owns
// the returned identity and must Destroy it.
func (l *Loader) Load(data []byte, password string, need Need) (*Identity, error) {
	open := l.Open
	if open == nil {
		open = OpenKeystore
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty container", ErrInvalidContainer)
	}

	ks, err := open(data, password)
	if err != nil {
		return nil, err
	}

	id, err := locate(ks, password, need)
	if err != nil {
		ks.Close()
		return nil, err
	}
	log.Debug().
		Str("alias", id.Alias).
		Bool("key", id.Signer != nil).
		Bool("certificate", id.Certificate != nil).
		Msg("signing identity located")
	return id, nil
}

// WithIdentity loads the identity, hands it to fn and destroys it when fn
// returns. The identity must not be retained past fn.
func (l *Loader) WithIdentity(data []byte, password string, need Need, fn func(*Identity) error) error {
	id, err := l.Load(data, password, need)
	if err != nil {
		return err
	}
	defer id.Destroy()
	return fn(id)
}

func locate(ks Keystore, password string, need Need) (*Identity, error) {
	aliases := ks.Aliases()
	if len(aliases) == 0 {
		return nil, &EntryError{Kind: ErrNoIdentity}
	}
	if len(aliases) > 1 {
		log.Debug().Strs("aliases", aliases).Msg("container holds several aliases, using the first")
	}
	alias := aliases[0]
	id := &Identity{Alias: alias, ks: ks}

	if need&NeedPrivateKey != 0 {
		key, err := ks.PrivateKey(alias, password)
		if err != nil {
			return nil, err
		}
		if key == nil {
			return nil, &EntryError{Alias: alias, Kind: ErrNoPrivateKey}
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("%w: %w: key type %T cannot sign", ErrInvalidContainer, ErrUnsupported, key)
		}
		id.Signer = signer
	}

	cert, err := ks.Certificate(alias)
	if err != nil {
		return nil, err
	}
	if cert == nil && need&NeedCertificate != 0 {
		return nil, &EntryError{Alias: alias, Kind: ErrNoCertificate}
	}
	id.Certificate = cert

	chain, err := ks.Chain(alias)
	if err != nil {
		return nil, err
	}
	id.Chain = chain
	return id, nil
}
