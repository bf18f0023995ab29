package mock

import (
	"context"
	"sync/atomic"

	"github.com/magictoy/arachni/scan"
)

// DispatcherService mocks the pool-allocating dispatcher contract.
type DispatcherService struct {
	DispatchFn      func(ctx context.Context, callerURL string) (*scan.SlaveDescriptor, error)
	DispatchCount   int32
	DispatchInvoked bool

	AliveFn      func(ctx context.Context) error
	AliveInvoked bool
}

func (d *DispatcherService) Dispatch(ctx context.Context, callerURL string) (*scan.SlaveDescriptor, error) {
	d.DispatchInvoked = true
	atomic.AddInt32(&d.DispatchCount, 1)
	if d.DispatchFn == nil {
		return &scan.SlaveDescriptor{URL: "127.0.0.1:0", Token: "mock"}, nil
	}
	return d.DispatchFn(ctx, callerURL)
}

func (d *DispatcherService) Alive(ctx context.Context) error {
	d.AliveInvoked = true
	if d.AliveFn == nil {
		return nil
	}
	return d.AliveFn(ctx)
}
