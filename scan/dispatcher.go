package scan

import "context"

// DispatcherService allocates ready slave instances from a pool. A
// descriptor returned by Dispatch is guaranteed live by contract and
// needs no probing.
type DispatcherService interface {
	Dispatch(ctx context.Context, callerURL string) (*SlaveDescriptor, error)
	Alive(ctx context.Context) error
}
