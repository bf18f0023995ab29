package dispatcher

import (
	"context"

	retry "github.com/avast/retry-go"

	"github.com/magictoy/arachni/pkg/retrier"
	"github.com/magictoy/arachni/pkg/rpc"
	"github.com/magictoy/arachni/scan"
)

type Client struct {
	client *rpc.Client
}

func New(addr, token string, opts ...rpc.ClientOption) *Client {
	return &Client{client: rpc.NewClient(addr, token, opts...)}
}

type dispatchRequest struct {
	CallerURL string `json:"caller_url"`
}

// Dispatch allocates one ready slave from the dispatcher pool. The
// returned descriptor is live by contract and needs no probing.
func (c *Client) Dispatch(ctx context.Context, callerURL string) (*scan.SlaveDescriptor, error) {
	in := &dispatchRequest{CallerURL: callerURL}

	var out scan.SlaveDescriptor
	err := retrier.Retry(func() error {
		err := c.client.Call(ctx, "service", "dispatch", in, &out)
		if err != nil && rpc.IsProtocolError(err) {
			return retry.Unrecoverable(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Alive(ctx context.Context) error {
	return c.client.Call(ctx, "service", "alive", nil, nil)
}
