package mock

import (
	"context"
	"sync/atomic"
)

// SlaveClient mocks the per-slave RPC client.
type SlaveClient struct {
	AliveFn      func(ctx context.Context) error
	AliveCount   int32
	AliveInvoked bool

	ShutdownFn      func(ctx context.Context) error
	ShutdownCount   int32
	ShutdownInvoked bool

	ScanFn      func(ctx context.Context, opts map[string]interface{}) (bool, error)
	ScanInvoked bool

	ProgressFn      func(ctx context.Context, opts map[string]interface{}) (map[string]interface{}, error)
	ProgressInvoked bool

	PauseFn      func(ctx context.Context) error
	PauseInvoked bool

	ResumeFn      func(ctx context.Context) error
	ResumeInvoked bool
}

func (c *SlaveClient) Alive(ctx context.Context) error {
	c.AliveInvoked = true
	atomic.AddInt32(&c.AliveCount, 1)
	if c.AliveFn == nil {
		return nil
	}
	return c.AliveFn(ctx)
}

func (c *SlaveClient) Shutdown(ctx context.Context) error {
	c.ShutdownInvoked = true
	atomic.AddInt32(&c.ShutdownCount, 1)
	if c.ShutdownFn == nil {
		return nil
	}
	return c.ShutdownFn(ctx)
}

func (c *SlaveClient) Scan(ctx context.Context, opts map[string]interface{}) (bool, error) {
	c.ScanInvoked = true
	if c.ScanFn == nil {
		return true, nil
	}
	return c.ScanFn(ctx, opts)
}

func (c *SlaveClient) Progress(ctx context.Context, opts map[string]interface{}) (map[string]interface{}, error) {
	c.ProgressInvoked = true
	if c.ProgressFn == nil {
		return map[string]interface{}{}, nil
	}
	return c.ProgressFn(ctx, opts)
}

func (c *SlaveClient) Pause(ctx context.Context) error {
	c.PauseInvoked = true
	if c.PauseFn == nil {
		return nil
	}
	return c.PauseFn(ctx)
}

func (c *SlaveClient) Resume(ctx context.Context) error {
	c.ResumeInvoked = true
	if c.ResumeFn == nil {
		return nil
	}
	return c.ResumeFn(ctx)
}
