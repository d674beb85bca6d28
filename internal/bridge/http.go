package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/vocdoni/gofirma/lotwsign/internal/canon"
	"github.com/vocdoni/gofirma/lotwsign/internal/channel"
	"github.com/vocdoni/gofirma/lotwsign/internal/model"
)

// DefaultMaxBodyBytes bounds an HTTP call body.
const DefaultMaxBodyBytes = 16 << 20

type HTTPOptions struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// NewHTTPHandler serves d under /v1:
//
//	POST /v1/call/{method}  body: model.Arguments, reply: model.Result
//	GET  /v1/methods        reply: {"methods":[...]}
//	GET  /healthz
//
// Unknown methods answer 501 and undecodable bodies 400.
func NewHTTPHandler(d Dispatcher, opts HTTPOptions) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/call/{method}", func(w http.ResponseWriter, r *http.Request) {
		method := r.PathValue("method")
		callID := r.Header.Get(CallIDHeader)
		if callID == "" {
			callID = uuid.NewString()
		}
		w.Header().Set(CallIDHeader, callID)

		var args model.Arguments
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, opts.MaxBodyBytes))
		if err := dec.Decode(&args); err != nil {
			writeJSON(w, http.StatusBadRequest, model.CallResponse{ID: callID, Error: "invalid request: " + err.Error()})
			return
		}

		res, err := d.Invoke(channel.WithCallID(r.Context(), callID), method, args)
		switch {
		case errors.Is(err, channel.ErrNotImplemented):
			writeJSON(w, http.StatusNotImplemented, model.CallResponse{ID: callID, NotImplemented: true})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, model.CallResponse{ID: callID, Error: err.Error()})
		default:
			writeJSON(w, http.StatusOK, res)
		}
	})
	mux.HandleFunc("GET /v1/methods", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"methods": d.Methods()})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return withCORS(opts.AllowedOrigins, logRequests(mux))
}

// NewServer wraps h in an http.Server with conservative timeouts.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		return h
	}
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", CallIDHeader},
		ExposedHeaders: []string{CallIDHeader},
	})
	return middleware.Handler(h)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(started)).
			Msg("http call")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := canon.Encode(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
