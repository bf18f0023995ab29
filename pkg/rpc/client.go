package rpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// CallError is a protocol-level rejection: the remote end was reachable
// and answered, but refused or failed the call. Distinct from transport
// errors (connection refused, timeout), which surface as-is.
type CallError struct {
	Status  int
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("rpc call rejected (%d): %s", e.Status, e.Message)
}

// IsProtocolError reports whether err is a CallError anywhere in its
// chain. The liveness prober uses this to tell fatal rejections apart
// from transient unreachability.
func IsProtocolError(err error) bool {
	var ce *CallError
	return errors.As(err, &ce)
}

// Client issues calls against one remote instance or dispatcher.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithTLSConfig sets the TLS material used when dialing https targets.
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(c *Client) {
		c.hc.Transport = &http.Transport{TLSClientConfig: cfg}
	}
}

// NewClient builds a client for addr ("host:port" or a full URL) using
// the shared token for auth.
func NewClient(addr, token string, opts ...ClientOption) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL: strings.TrimSuffix(base, "/"),
		token:   token,
		hc:      &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type callResult struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Call invokes handler.method with params marshaled as the JSON body
// and unmarshals the result into out when out is non-nil.
func (c *Client) Call(ctx context.Context, handler, method string, params, out interface{}) error {
	var body bytes.Buffer
	if params != nil {
		if err := json.NewEncoder(&body).Encode(params); err != nil {
			return errors.Wrap(err, "failed to encode rpc params")
		}
	}

	url := fmt.Sprintf("%s/rpc/%s/%s", c.baseURL, handler, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return errors.Wrap(err, "failed to build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		// transport failure, left unwrapped so callers can retry on it
		return err
	}
	defer resp.Body.Close()

	var result callResult
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode != http.StatusOK {
		msg := result.Error
		if msg == "" {
			msg = resp.Status
		}
		return &CallError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return errors.Wrap(decodeErr, "failed to decode rpc response")
	}
	if out == nil || len(result.Result) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(result.Result, out), "failed to decode rpc result")
}
