package pkcs12store

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sort"
	"sync"
)

// Keystore is the capability the loader needs from a decrypted container.
// Implementations hold decrypted key material until Close is called.
type Keystore interface {
	// Aliases lists entry names in container order.
	Aliases() []string
	// PrivateKey returns the key stored under alias, decrypted with password.
	// It returns nil and no error when the entry has no key.
	PrivateKey(alias, password string) (crypto.PrivateKey, error)
	// Certificate returns nil and no error when the entry has no certificate.
	Certificate(alias string) (*x509.Certificate, error)
	// Chain returns the CA certificates that accompany alias.
	Chain(alias string) ([]*x509.Certificate, error)
	Close()
}

const (
	pemTypeCertificate = "CERTIFICATE"
	pemTypePrivateKey  = "PRIVATE KEY"
)

type entry struct {
	alias      string
	pos        int
	localKeyID string
	keyDER     []byte
	cert       *x509.Certificate
}

type bagKeystore struct {
	mu       sync.Mutex
	data     []byte
	password string
	decode   decodeBagsFunc
	entries  []*entry
	chain    []*x509.Certificate
	closed   bool
}

func (ks *bagKeystore) Aliases() []string {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	aliases := make([]string, 0, len(ks.entries))
	for _, e := range ks.entries {
		aliases = append(aliases, e.alias)
	}
	return aliases
}

func (ks *bagKeystore) PrivateKey(alias, password string) (crypto.PrivateKey, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.closed {
		return nil, errKeystoreClosed
	}
	e := ks.lookup(alias)
	if e == nil || e.keyDER == nil {
		return nil, nil
	}
	if password == ks.password {
		return parsePrivateKey(e.keyDER)
	}

	// The entry is protected by its own password; decode the container again
	// with it and keep only the key we were asked for.
	blocks, err := ks.decode(ks.data, password)
	if err != nil {
		return nil, classifyDecodeError(err, password)
	}
	defer wipeBlocks(blocks)
	entries, _, err := buildEntries(blocks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrInvalidContainer, ErrInvalidFile, err)
	}
	for _, candidate := range entries {
		if candidate.alias == alias && candidate.keyDER != nil {
			return parsePrivateKey(candidate.keyDER)
		}
	}
	return nil, nil
}

func (ks *bagKeystore) Certificate(alias string) (*x509.Certificate, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.closed {
		return nil, errKeystoreClosed
	}
	if e := ks.lookup(alias); e != nil {
		return e.cert, nil
	}
	return nil, nil
}

func (ks *bagKeystore) Chain(alias string) ([]*x509.Certificate, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.closed {
		return nil, errKeystoreClosed
	}
	e := ks.lookup(alias)
	if e == nil || e.keyDER == nil {
		return nil, nil
	}
	return append([]*x509.Certificate(nil), ks.chain...), nil
}

// Close zeroes the decrypted key bytes and drops every reference the
// keystore holds.
func (ks *bagKeystore) Close() {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	for _, e := range ks.entries {
		wipe(e.keyDER)
		e.keyDER = nil
		e.cert = nil
	}
	ks.entries = nil
	ks.chain = nil
	ks.data = nil
	ks.password = ""
	ks.closed = true
}

func (ks *bagKeystore) lookup(alias string) *entry {
	for _, e := range ks.entries {
		if e.alias == alias {
			return e
		}
	}
	return nil
}

// buildEntries groups decoded bags into aliased entries. Key bags become
// entries; certificate bags attach to the key sharing their localKeyId, or
// failing that, to the key whose public half they carry. When the container
// holds keys, every unattached certificate belongs to the CA chain, whatever
// its friendlyName. Only a container without keys lists its certificates as
// certificate-only entries. Entries keep container order.
func buildEntries(blocks []*pem.Block) ([]*entry, []*x509.Certificate, error) {
	var entries []*entry
	byKeyID := make(map[string]*entry)
	keys := 0
	for i, b := range blocks {
		if b.Type != pemTypePrivateKey {
			continue
		}
		keys++
		e := &entry{
			pos:        i,
			localKeyID: b.Headers["localKeyId"],
			keyDER:     b.Bytes,
		}
		e.alias = firstNonEmpty(b.Headers["friendlyName"], e.localKeyID, fmt.Sprintf("key-%d", keys))
		entries = append(entries, e)
		if e.localKeyID != "" {
			byKeyID[e.localKeyID] = e
		}
	}

	type looseCert struct {
		pos          int
		friendlyName string
		localKeyID   string
		cert         *x509.Certificate
	}
	var loose []looseCert
	for i, b := range blocks {
		if b.Type != pemTypeCertificate {
			continue
		}
		cert, err := x509.ParseCertificate(b.Bytes)
		if err != nil {
			return nil, nil, fmt.Errorf("parse certificate bag: %w", err)
		}
		if id := b.Headers["localKeyId"]; id != "" {
			if e, ok := byKeyID[id]; ok && e.cert == nil {
				e.cert = cert
				continue
			}
		}
		loose = append(loose, looseCert{
			pos:          i,
			friendlyName: b.Headers["friendlyName"],
			localKeyID:   b.Headers["localKeyId"],
			cert:         cert,
		})
	}

	for _, e := range entries {
		if e.cert != nil || len(loose) == 0 {
			continue
		}
		key, err := parsePrivateKey(e.keyDER)
		if err != nil {
			continue
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			continue
		}
		pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
		if !ok {
			continue
		}
		for i, lc := range loose {
			if pub.Equal(lc.cert.PublicKey) {
				e.cert = lc.cert
				loose = append(loose[:i], loose[i+1:]...)
				break
			}
		}
	}

	var chain []*x509.Certificate
	for i, lc := range loose {
		if keys > 0 {
			chain = append(chain, lc.cert)
			continue
		}
		entries = append(entries, &entry{
			alias: firstNonEmpty(lc.friendlyName, lc.localKeyID, fmt.Sprintf("cert-%d", i+1)),
			pos:   lc.pos,
			cert:  lc.cert,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })
	return entries, chain, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func wipeBlocks(blocks []*pem.Block) {
	for _, b := range blocks {
		if b.Type == pemTypePrivateKey {
			wipe(b.Bytes)
		}
	}
}
