package pkcs12store

import (
	"errors"
	"strings"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// ErrInvalidContainer is wrapped by every failure to decrypt or parse the
// container bytes. The refinements below are wrapped alongside it.
var ErrInvalidContainer = errors.New("invalid PKCS#12 container")

var (
	ErrPasswordRequired = errors.New("certificate password required")
	ErrWrongPassword    = errors.New("certificate password incorrect")
	ErrInvalidFile      = errors.New("not a valid .p12/.pfx file or corrupted")
	ErrUnsupported      = errors.New("unsupported certificate format")
)

// Identity shape errors, reported through *EntryError.
var (
	ErrNoIdentity    = errors.New("no identity")
	ErrNoPrivateKey  = errors.New("no private key")
	ErrNoCertificate = errors.New("no certificate")
)

var errKeystoreClosed = errors.New("keystore closed")

// EntryError reports a container that parsed but lacked the expected
// identity shape for Alias.
type EntryError struct {
	Alias string
	Kind  error
}

func (e *EntryError) Error() string {
	switch e.Kind {
	case ErrNoIdentity:
		return "No alias in PKCS12"
	case ErrNoPrivateKey:
		return "No private key for alias=" + e.Alias
	case ErrNoCertificate:
		return "No certificate for alias=" + e.Alias
	default:
		return e.Kind.Error() + " for alias=" + e.Alias
	}
}

func (e *EntryError) Unwrap() error { return e.Kind }

// FriendlyError returns a user-facing message for a container failure.
func FriendlyError(err error) string {
	var entryErr *EntryError
	switch {
	case errors.As(err, &entryErr):
		return entryErr.Error()
	case errors.Is(err, ErrPasswordRequired):
		return "This certificate requires a password. Enter the certificate password and try again."
	case errors.Is(err, ErrWrongPassword):
		return "The certificate password is incorrect."
	case errors.Is(err, ErrInvalidFile):
		return "The selected file is not a valid .p12/.pfx certificate or is corrupted."
	case errors.Is(err, ErrUnsupported):
		return "The certificate uses an unsupported format or key type."
	default:
		return "Certificate loading failed. Please verify the file and password."
	}
}

func isIncorrectPasswordError(err error) bool {
	if errors.Is(err, pkcs12.ErrIncorrectPassword) || errors.Is(err, pkcs12.ErrDecryption) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "decryption password incorrect") ||
		strings.Contains(msg, "incorrect padding")
}

func isLikelyInvalidFileError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not der") ||
		strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "trailing data") ||
		strings.Contains(msg, "certificate missing") ||
		strings.Contains(msg, "private key missing") ||
		strings.Contains(msg, "error reading p12 data") ||
		strings.Contains(msg, "invalid ber")
}
