package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vocdoni/gofirma/lotwsign/internal/channel"
	"github.com/vocdoni/gofirma/lotwsign/internal/model"
)

// Client calls a remote HTTP bridge.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Call invokes method remotely. An unknown method yields an error wrapping
// channel.ErrNotImplemented; failed calls come back as a Result with OK
// false and a nil error.
func (c *Client) Call(ctx context.Context, method string, args model.Arguments) (model.Result, error) {
	jsonBytes, err := json.Marshal(args)
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to marshal arguments: %w", err)
	}

	endpoint := c.BaseURL + "/v1/call/" + url.PathEscape(method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBytes))
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := channel.CallID(ctx); id != "" {
		req.Header.Set(CallIDHeader, id)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	httpResp, err := client.Do(req)
	if err != nil {
		return model.Result{}, fmt.Errorf("call failed: %w", err)
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK:
	case http.StatusNotImplemented:
		return model.Result{}, fmt.Errorf("%w: %s", channel.ErrNotImplemented, method)
	default:
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		if len(body) > 0 {
			return model.Result{}, fmt.Errorf("unexpected status code: %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
		}
		return model.Result{}, fmt.Errorf("unexpected status code: %d", httpResp.StatusCode)
	}

	var res model.Result
	if err := json.NewDecoder(httpResp.Body).Decode(&res); err != nil {
		return model.Result{}, fmt.Errorf("failed to decode result: %w", err)
	}
	return res, nil
}
