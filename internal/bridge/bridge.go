// Package bridge exposes a call router over JSON-lines stdio and HTTP, and
// provides the matching HTTP client.
package bridge

import (
	"context"

	"github.com/vocdoni/gofirma/lotwsign/internal/model"
)

// Invoker runs one named call.
type Invoker interface {
	Invoke(ctx context.Context, method string, args model.Arguments) (model.Result, error)
}

// Dispatcher is an Invoker that can list its methods.
type Dispatcher interface {
	Invoker
	Methods() []string
}

// CallIDHeader carries the call identifier on HTTP requests and responses.
const CallIDHeader = "X-Call-Id"
