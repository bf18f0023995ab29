package mock

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/magictoy/arachni/scan"
	"github.com/magictoy/arachni/services/instance/spawner"
)

// Spawner mocks process spawning for provisioner tests.
type Spawner struct {
	SpawnFn      func(ctx context.Context, port int, token string) (*spawner.Worker, error)
	SpawnCount   int32
	SpawnInvoked bool

	KillFn      func(worker *spawner.Worker) error
	KillInvoked bool
}

func (s *Spawner) Spawn(ctx context.Context, port int, token string) (*spawner.Worker, error) {
	s.SpawnInvoked = true
	n := atomic.AddInt32(&s.SpawnCount, 1)
	if s.SpawnFn == nil {
		return &spawner.Worker{
			ID:         fmt.Sprintf("mock-worker-%d", n),
			PID:        int(n),
			Descriptor: &scan.SlaveDescriptor{URL: fmt.Sprintf("127.0.0.1:%d", port), Token: token},
		}, nil
	}
	return s.SpawnFn(ctx, port, token)
}

func (s *Spawner) Kill(worker *spawner.Worker) error {
	s.KillInvoked = true
	if s.KillFn == nil {
		return nil
	}
	return s.KillFn(worker)
}
