// Package channel dispatches named calls to handlers and turns every
// handler outcome into a model.Result envelope.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vocdoni/gofirma/lotwsign/internal/crypto/certs"
	"github.com/vocdoni/gofirma/lotwsign/internal/crypto/chain"
	"github.com/vocdoni/gofirma/lotwsign/internal/crypto/pkcs12store"
	"github.com/vocdoni/gofirma/lotwsign/internal/crypto/signer"
	"github.com/vocdoni/gofirma/lotwsign/internal/model"
	"github.com/vocdoni/gofirma/lotwsign/internal/storage"
)

var (
	// ErrNotImplemented is returned by Invoke for unknown method names. It is
	// never folded into a Result.
	ErrNotImplemented  = errors.New("not implemented")
	ErrInvalidArgument = model.ErrInvalidArgument
	ErrInternal        = errors.New("internal error")
)

// Handler serves one method. A returned error becomes a failed envelope.
type Handler func(ctx context.Context, args model.Arguments) (model.Result, error)

// Auditor receives one entry per invoked call.
type Auditor interface {
	Log(entry storage.CallEntry) error
}

type Option func(*Router)

func WithAudit(a Auditor) Option {
	return func(r *Router) { r.audit = a }
}

// WithLoader replaces the container loader used by the default handlers.
func WithLoader(l *pkcs12store.Loader) Option {
	return func(r *Router) { r.loader = l }
}

// Router maps method names to handlers. It is safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	loader   *pkcs12store.Loader
	audit    Auditor
}

// NewRouter returns a router with the sign, getCertificate,
// getCertificateInfo and getCertificateChain methods registered.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		handlers: make(map[string]Handler),
		loader:   pkcs12store.NewLoader(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Register(MethodSign, r.sign)
	r.Register(MethodGetCertificate, r.getCertificate)
	r.Register(MethodGetCertificateInfo, r.getCertificateInfo)
	r.Register(MethodGetCertificateChain, r.getCertificateChain)
	return r
}

// Register installs h under name, replacing any previous handler.
func (r *Router) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Methods lists the registered method names in sorted order.
func (r *Router) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the handler registered for method. Unknown methods return
// ErrNotImplemented; everything else, including handler panics, comes back
// as a Result with a nil error.
func (r *Router) Invoke(ctx context.Context, method string, args model.Arguments) (model.Result, error) {
	r.mu.RLock()
	h, ok := r.handlers[method]
	r.mu.RUnlock()
	if !ok {
		log.Debug().Str("method", method).Msg("method not implemented")
		return model.Result{}, fmt.Errorf("%w: %s", ErrNotImplemented, method)
	}

	callID := CallID(ctx)
	if callID == "" {
		callID = uuid.NewString()
		ctx = WithCallID(ctx, callID)
	}
	n := &note{}
	ctx = context.WithValue(ctx, noteKey{}, n)

	start := time.Now()
	res, err := r.run(ctx, method, h, args)
	if err != nil {
		res = model.Failure(Message(err))
	}

	log.Debug().
		Str("call_id", callID).
		Str("method", method).
		Bool("ok", res.OK).
		Str("error_kind", Kind(err)).
		Dur("elapsed", time.Since(start)).
		Msg("call finished")

	if r.audit != nil {
		entry := storage.CallEntry{
			CallID:          callID,
			Method:          method,
			OK:              res.OK,
			ErrorKind:       Kind(err),
			Error:           res.Error,
			CertFingerprint: n.fingerprint,
		}
		if aerr := r.audit.Log(entry); aerr != nil {
			log.Warn().Err(aerr).Str("call_id", callID).Msg("failed to write audit entry")
		}
	}
	return res, nil
}

func (r *Router) run(ctx context.Context, method string, h Handler, args model.Arguments) (res model.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("method", method).Interface("panic", p).Msg("handler panicked")
			res, err = model.Result{}, fmt.Errorf("%w: %v", ErrInternal, p)
		}
	}()
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}
	return h(ctx, args)
}

// Message returns the text shown to the caller for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Kind names the error category of err for logs and audit entries.
func Kind(err error) string {
	var entryErr *pkcs12store.EntryError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "InvalidArgument"
	case errors.Is(err, ErrNotImplemented):
		return "NotImplemented"
	case errors.As(err, &entryErr):
		switch entryErr.Kind {
		case pkcs12store.ErrNoIdentity:
			return "NoIdentity"
		case pkcs12store.ErrNoPrivateKey:
			return "NoPrivateKey"
		case pkcs12store.ErrNoCertificate:
			return "NoCertificate"
		}
		return "InvalidContainer"
	case errors.Is(err, pkcs12store.ErrPasswordRequired):
		return "PasswordRequired"
	case errors.Is(err, pkcs12store.ErrWrongPassword):
		return "WrongPassword"
	case errors.Is(err, pkcs12store.ErrInvalidFile):
		return "InvalidFile"
	case errors.Is(err, pkcs12store.ErrUnsupported):
		return "Unsupported"
	case errors.Is(err, pkcs12store.ErrInvalidContainer):
		return "InvalidContainer"
	case errors.Is(err, signer.ErrSigningFailure):
		return "SigningFailure"
	case errors.Is(err, certs.ErrEncodingFailure):
		return "EncodingFailure"
	case errors.Is(err, chain.ErrBundleFailure):
		return "BundleFailure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Canceled"
	default:
		return "Internal"
	}
}

type callIDKey struct{}

// WithCallID attaches the identifier Invoke reports for the call.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

func CallID(ctx context.Context) string {
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}

// note collects per-call facts handlers learn while running.
type note struct {
	fingerprint string
}

type noteKey struct{}

func noteFrom(ctx context.Context) *note {
	n, _ := ctx.Value(noteKey{}).(*note)
	return n
}
