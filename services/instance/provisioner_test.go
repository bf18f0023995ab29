package instance_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/magictoy/arachni/mock"
	"github.com/magictoy/arachni/scan"
	"github.com/magictoy/arachni/services/instance"
	"github.com/magictoy/arachni/services/instance/spawner"
)

func TestProvisionZeroIsANoop(t *testing.T) {
	dispatcher := &mock.DispatcherService{}
	spawn := &mock.Spawner{}
	prober := spawner.NewProber(okClients(&mock.SlaveClient{}))
	p := instance.NewProvisioner(dispatcher, spawn, prober, func() string { return "127.0.0.1:7331" })

	slaves, err := p.Provision(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if len(slaves) != 0 {
		t.Fatalf("expected no slaves got %d\n", len(slaves))
	}
	if dispatcher.DispatchInvoked || spawn.SpawnInvoked {
		t.Fatalf("nothing may be contacted for a zero count\n")
	}
}

func TestProvisionDispatcherPath(t *testing.T) {
	dispatcher := &mock.DispatcherService{}
	dispatcher.DispatchFn = func(ctx context.Context, callerURL string) (*scan.SlaveDescriptor, error) {
		if callerURL != "127.0.0.1:7331" {
			t.Errorf("expected caller url to be forwarded, got %s\n", callerURL)
		}
		n := atomic.AddInt32(&dispatcher.DispatchCount, 0)
		return &scan.SlaveDescriptor{URL: fmt.Sprintf("10.0.0.%d:7331", n), Token: "t"}, nil
	}
	spawn := &mock.Spawner{}
	prober := spawner.NewProber(okClients(&mock.SlaveClient{}))
	p := instance.NewProvisioner(dispatcher, spawn, prober, func() string { return "127.0.0.1:7331" })

	if mode := p.Mode(); mode != scan.SpawnModeDispatcher {
		t.Fatalf("expected dispatcher mode got %s\n", mode)
	}

	slaves, err := p.Provision(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if len(slaves) != 3 {
		t.Fatalf("expected 3 slaves got %d\n", len(slaves))
	}
	if n := atomic.LoadInt32(&dispatcher.DispatchCount); n != 3 {
		t.Fatalf("expected exactly 3 dispatch calls got %d\n", n)
	}
	if spawn.SpawnInvoked {
		t.Fatalf("dispatcher path must not fork processes\n")
	}
}

func TestProvisionForkPathProbesEachWorker(t *testing.T) {
	spawn := &mock.Spawner{}
	probed := &mock.SlaveClient{}
	prober := spawner.NewProber(okClients(probed), spawner.WithProbeDelay(time.Millisecond))
	p := instance.NewProvisioner(nil, spawn, prober, func() string { return "127.0.0.1:7331" })

	if mode := p.Mode(); mode != scan.SpawnModeFork {
		t.Fatalf("expected fork mode got %s\n", mode)
	}

	slaves, err := p.Provision(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if len(slaves) != 2 {
		t.Fatalf("expected 2 slaves got %d\n", len(slaves))
	}
	if n := atomic.LoadInt32(&spawn.SpawnCount); n != 2 {
		t.Fatalf("expected 2 forks got %d\n", n)
	}
	if atomic.LoadInt32(&probed.AliveCount) < 2 {
		t.Fatalf("every forked worker must be probed\n")
	}
	for _, slave := range slaves {
		if slave.Token == "" {
			t.Fatalf("forked slave is missing its token\n")
		}
	}
}

func TestProvisionFailedSlotFailsTheRound(t *testing.T) {
	dispatcher := &mock.DispatcherService{}
	dispatcher.DispatchFn = func(ctx context.Context, callerURL string) (*scan.SlaveDescriptor, error) {
		if atomic.LoadInt32(&dispatcher.DispatchCount) == 2 {
			return nil, errors.New("pool exhausted")
		}
		return &scan.SlaveDescriptor{URL: "10.0.0.1:7331", Token: "t"}, nil
	}
	prober := spawner.NewProber(okClients(&mock.SlaveClient{}))
	p := instance.NewProvisioner(dispatcher, &mock.Spawner{}, prober, func() string { return "127.0.0.1:7331" })

	slaves, err := p.Provision(context.Background(), 3)
	if err == nil {
		t.Fatalf("expected the round to fail\n")
	}
	if slaves != nil {
		t.Fatalf("a failed round must not return a short list, got %#v\n", slaves)
	}
}

func TestProvisionKillsWorkerThatNeverAnswers(t *testing.T) {
	spawn := &mock.Spawner{}
	var killed int32
	spawn.KillFn = func(worker *spawner.Worker) error {
		atomic.AddInt32(&killed, 1)
		return nil
	}

	dead := &mock.SlaveClient{}
	dead.AliveFn = func(ctx context.Context) error {
		return errors.New("connection refused")
	}
	prober := spawner.NewProber(okClients(dead),
		spawner.WithMaxProbes(3), spawner.WithProbeDelay(time.Millisecond))
	p := instance.NewProvisioner(nil, spawn, prober, func() string { return "127.0.0.1:7331" })

	_, err := p.Provision(context.Background(), 1)
	if !errors.Is(err, scan.ErrProbeExhausted) {
		t.Fatalf("expected probe exhaustion got %v\n", err)
	}
	if atomic.LoadInt32(&killed) != 1 {
		t.Fatalf("an unready worker must be killed, kill count %d\n", killed)
	}
}
