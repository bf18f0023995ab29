package instance

import (
	"context"

	retry "github.com/avast/retry-go"

	"github.com/magictoy/arachni/pkg/retrier"
	"github.com/magictoy/arachni/pkg/rpc"
	"github.com/magictoy/arachni/scan"
)

// Client talks to one remote instance. Alive and Shutdown issue exactly
// one attempt each: the liveness prober owns the retry policy for the
// former and the shutdown coordinator swallows failures of the latter.
type Client struct {
	client *rpc.Client
}

func New(addr, token string, opts ...rpc.ClientOption) *Client {
	return &Client{client: rpc.NewClient(addr, token, opts...)}
}

// NewForSlave builds a client from a provisioned descriptor.
func NewForSlave(slave *scan.SlaveDescriptor) scan.SlaveClient {
	return New(slave.URL, slave.Token)
}

func (c *Client) Alive(ctx context.Context) error {
	return c.client.Call(ctx, "service", "alive", nil, nil)
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.client.Call(ctx, "service", "shutdown", nil, nil)
}

// call retries transport failures; a protocol-level rejection will not
// self-resolve and aborts the retrier immediately.
func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	return retrier.Retry(func() error {
		err := c.client.Call(ctx, "service", method, params, out)
		if err != nil && rpc.IsProtocolError(err) {
			return retry.Unrecoverable(err)
		}
		return err
	})
}

// Scan starts a scan on the remote instance. A false result means the
// instance was already busy, which is safe to treat as success when
// retrying after an ambiguous network failure.
func (c *Client) Scan(ctx context.Context, opts map[string]interface{}) (bool, error) {
	var accepted bool
	err := c.call(ctx, "scan", opts, &accepted)
	return accepted, err
}

func (c *Client) Progress(ctx context.Context, opts map[string]interface{}) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := c.call(ctx, "progress", opts, &out)
	return out, err
}

func (c *Client) Pause(ctx context.Context) error {
	return c.call(ctx, "pause", nil, nil)
}

func (c *Client) Resume(ctx context.Context) error {
	return c.call(ctx, "resume", nil, nil)
}
