package pkcs12store

import (
	"crypto"
	"crypto/hmac"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"unicode/utf16"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Normalizing BER changes the byte-level AuthSafe encoding, which invalidates
// the original MAC. To keep decoding delegated to go-pkcs12 while still
// accepting legacy BER files, the MAC is recomputed with the RFC 7292
// appendix B KDF and HMAC over the normalized AuthSafe.

var oidDataContent = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}

var macHashes = []struct {
	oid  asn1.ObjectIdentifier
	hash crypto.Hash
}{
	{asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}, crypto.SHA1},
	{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}, crypto.SHA256},
	{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}, crypto.SHA384},
	{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}, crypto.SHA512},
}

type pfxForMAC struct {
	Version  int
	AuthSafe contentInfoForMAC
	MacData  macDataForMAC `asn1:"optional"`
}

type contentInfoForMAC struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"tag:0,explicit,optional"`
}

type macDataForMAC struct {
	Mac        digestInfoForMAC
	MacSalt    []byte
	Iterations int `asn1:"optional,default:1"`
}

type digestInfoForMAC struct {
	Algorithm pkix.AlgorithmIdentifier
	Digest    []byte
}

func recomputePFXMAC(der []byte, password string) ([]byte, error) {
	var pfx pfxForMAC
	if _, err := asn1.Unmarshal(der, &pfx); err != nil {
		return nil, err
	}
	hash, err := pfxMACHash(&pfx)
	if err != nil {
		return nil, err
	}

	var authSafeBytes []byte
	if _, err := asn1.Unmarshal(pfx.AuthSafe.Content.Bytes, &authSafeBytes); err != nil {
		return nil, err
	}

	encodedPassword, err := bmpStringZeroTerminated(password)
	if err != nil {
		return nil, err
	}
	pfx.MacData.Mac.Digest = computePKCS12MAC(hash, authSafeBytes, pfx.MacData.MacSalt, encodedPassword, macIterations(&pfx))
	return asn1.Marshal(pfx)
}

// padAuthSafe rewrites a PFX whose AuthSafe holds a single ContentInfo, as
// key-only and certificate-only exports do, into the two-item layout ToPEM
// reads, by appending an empty SafeContents. The MAC is checked with
// password first and only then recomputed, so the rewrite never turns a
// wrong password into a readable container.
func padAuthSafe(der []byte, password string) ([]byte, error) {
	var pfx pfxForMAC
	if _, err := asn1.Unmarshal(der, &pfx); err != nil {
		return nil, err
	}
	var authSafeBytes []byte
	if _, err := asn1.Unmarshal(pfx.AuthSafe.Content.Bytes, &authSafeBytes); err != nil {
		return nil, err
	}
	var authSafe []contentInfoForMAC
	if _, err := asn1.Unmarshal(authSafeBytes, &authSafe); err != nil {
		return nil, err
	}
	if len(authSafe) != 1 {
		return nil, fmt.Errorf("authenticated safe holds %d items", len(authSafe))
	}

	var (
		hash        crypto.Hash
		macPassword []byte
		err         error
	)
	hasMAC := len(pfx.MacData.Mac.Algorithm.Algorithm) != 0
	if hasMAC {
		if hash, err = pfxMACHash(&pfx); err != nil {
			return nil, err
		}
		if macPassword, err = matchMACPassword(hash, &pfx, authSafeBytes, password); err != nil {
			return nil, err
		}
	} else if password != "" {
		return nil, errors.New("pkcs12 has no mac")
	}

	emptySafe, err := asn1.Marshal([]byte{0x30, 0x00})
	if err != nil {
		return nil, err
	}
	authSafe = append(authSafe, contentInfoForMAC{
		ContentType: oidDataContent,
		Content:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: emptySafe},
	})
	if authSafeBytes, err = asn1.Marshal(authSafe); err != nil {
		return nil, err
	}
	wrapped, err := asn1.Marshal(authSafeBytes)
	if err != nil {
		return nil, err
	}
	pfx.AuthSafe.Content = asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: wrapped}

	if hasMAC {
		pfx.MacData.Mac.Digest = computePKCS12MAC(hash, authSafeBytes, pfx.MacData.MacSalt, macPassword, macIterations(&pfx))
	}
	return asn1.Marshal(pfx)
}

// matchMACPassword returns the password encoding that verifies the existing
// MAC. An empty password is also tried as zero bytes, which some writers use.
func matchMACPassword(hash crypto.Hash, pfx *pfxForMAC, authSafeBytes []byte, password string) ([]byte, error) {
	encoded, err := bmpStringZeroTerminated(password)
	if err != nil {
		return nil, err
	}
	candidates := [][]byte{encoded}
	if password == "" {
		candidates = append(candidates, nil)
	}
	for _, candidate := range candidates {
		mac := computePKCS12MAC(hash, authSafeBytes, pfx.MacData.MacSalt, candidate, macIterations(pfx))
		if hmac.Equal(mac, pfx.MacData.Mac.Digest) {
			return candidate, nil
		}
	}
	return nil, pkcs12.ErrIncorrectPassword
}

func pfxMACHash(pfx *pfxForMAC) (crypto.Hash, error) {
	if len(pfx.MacData.Mac.Algorithm.Algorithm) == 0 {
		return 0, errors.New("pkcs12 has no mac")
	}
	hash, ok := macHashFor(pfx.MacData.Mac.Algorithm.Algorithm)
	if !ok {
		return 0, errors.New("unsupported mac algorithm")
	}
	return hash, nil
}

func macIterations(pfx *pfxForMAC) int {
	if pfx.MacData.Iterations < 1 {
		return 1
	}
	return pfx.MacData.Iterations
}

func macHashFor(oid asn1.ObjectIdentifier) (crypto.Hash, bool) {
	for _, m := range macHashes {
		if m.oid.Equal(oid) {
			return m.hash, true
		}
	}
	return 0, false
}

func computePKCS12MAC(hash crypto.Hash, message, salt, password []byte, iterations int) []byte {
	key := pkcs12KDF(hash, salt, password, iterations, 3, hash.Size())
	mac := hmac.New(hash.New, key)
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}

// pkcs12KDF is the RFC 7292 appendix B.2 key derivation. id 3 derives MAC
// keys.
func pkcs12KDF(hash crypto.Hash, salt, password []byte, iterations int, id byte, size int) []byte {
	u := hash.Size()
	v := hash.New().BlockSize()

	D := make([]byte, v)
	for i := range D {
		D[i] = id
	}

	var S, P []byte
	if len(salt) > 0 {
		S = make([]byte, v*((len(salt)+v-1)/v))
		for i := range S {
			S[i] = salt[i%len(salt)]
		}
	}
	if len(password) > 0 {
		P = make([]byte, v*((len(password)+v-1)/v))
		for i := range P {
			P[i] = password[i%len(password)]
		}
	}

	I := append(S, P...)
	result := make([]byte, size)
	for i := 0; i < (size+u-1)/u; i++ {
		h := hash.New()
		_, _ = h.Write(D)
		_, _ = h.Write(I)
		Ai := h.Sum(nil)
		for j := 1; j < iterations; j++ {
			h = hash.New()
			_, _ = h.Write(Ai)
			Ai = h.Sum(nil)
		}
		copy(result[i*u:], Ai)

		if i*u+u < size {
			B := make([]byte, v)
			for j := range B {
				B[j] = Ai[j%u]
			}
			for j := 0; j < len(I)/v; j++ {
				block := I[j*v : (j+1)*v]
				carry := uint16(1)
				for k := v - 1; k >= 0; k-- {
					sum := uint16(block[k]) + uint16(B[k]) + carry
					block[k] = byte(sum)
					carry = sum >> 8
				}
			}
		}
	}
	return result
}

func bmpStringZeroTerminated(s string) ([]byte, error) {
	for _, r := range s {
		if r > 0xFFFF {
			return nil, errors.New("password contains unsupported unicode character")
		}
	}
	utf16Data := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(utf16Data)*2+2)
	for _, r := range utf16Data {
		out = append(out, byte(r>>8), byte(r))
	}
	// PKCS#12 BMPString passwords are NUL-terminated.
	out = append(out, 0x00, 0x00)
	return out, nil
}
