package instance

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/magictoy/arachni/pkg/generators"
	"github.com/magictoy/arachni/pkg/metrics"
	"github.com/magictoy/arachni/pkg/ports"
	"github.com/magictoy/arachni/scan"
	"github.com/magictoy/arachni/services/instance/spawner"
)

// Provisioner produces exactly count ready slave descriptors, either by
// asking the dispatcher for allocations or by forking local processes
// and probing each one. Both paths run the slots concurrently and
// converge on a single join; a fatal failure on any slot fails the
// whole round rather than returning a short list.
type Provisioner struct {
	dispatcher scan.DispatcherService
	spawn      spawner.Spawner
	prober     *spawner.Prober
	selfURL    func() string
	collector  *metrics.Collector
	log        zerolog.Logger
}

type ProvisionerOption func(*Provisioner)

func WithProvisionerMetrics(c *metrics.Collector) ProvisionerOption {
	return func(p *Provisioner) { p.collector = c }
}

func WithProvisionerLogger(log zerolog.Logger) ProvisionerOption {
	return func(p *Provisioner) { p.log = log }
}

// NewProvisioner builds a provisioner. A nil dispatcher selects the
// fork path; selfURL is handed to the dispatcher so allocated slaves
// know their master.
func NewProvisioner(dispatcher scan.DispatcherService, spawn spawner.Spawner, prober *spawner.Prober, selfURL func() string, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		dispatcher: dispatcher,
		spawn:      spawn,
		prober:     prober,
		selfURL:    selfURL,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mode reports how this provisioner obtains slaves.
func (p *Provisioner) Mode() scan.SpawnMode {
	if p.dispatcher != nil {
		return scan.SpawnModeDispatcher
	}
	return scan.SpawnModeFork
}

// Provision blocks until count ready descriptors exist or a slot failed
// fatally. Output order carries no meaning; workers are interchangeable.
func (p *Provisioner) Provision(ctx context.Context, count int) ([]*scan.SlaveDescriptor, error) {
	if count <= 0 {
		return []*scan.SlaveDescriptor{}, nil
	}

	req := &scan.SpawnRequest{Count: count, Mode: p.Mode()}
	p.log.Info().Int("count", req.Count).Str("mode", req.Mode.String()).Msg("provisioning slaves")

	results := make(chan *scan.SlaveDescriptor, req.Count)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < req.Count; i++ {
		g.Go(func() error {
			slave, err := p.provisionOne(gctx, req.Mode)
			if err != nil {
				return err
			}
			results <- slave
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "provisioning round failed")
	}
	close(results)

	slaves := make([]*scan.SlaveDescriptor, 0, req.Count)
	for slave := range results {
		slaves = append(slaves, slave)
	}

	if p.collector != nil {
		p.collector.SlavesProvisioned.WithLabelValues(req.Mode.String()).Add(float64(len(slaves)))
	}
	return slaves, nil
}

func (p *Provisioner) provisionOne(ctx context.Context, mode scan.SpawnMode) (*scan.SlaveDescriptor, error) {
	if mode == scan.SpawnModeDispatcher {
		return p.dispatcher.Dispatch(ctx, p.selfURL())
	}

	port, err := ports.Free()
	if err != nil {
		return nil, err
	}

	worker, err := p.spawn.Spawn(ctx, port, generators.Token())
	if err != nil {
		return nil, err
	}

	if err := p.prober.Probe(ctx, worker.Descriptor); err != nil {
		if killErr := p.spawn.Kill(worker); killErr != nil {
			p.log.Warn().Err(killErr).Str("worker", worker.ID).Msg("failed to kill unready worker")
		}
		return nil, err
	}
	return worker.Descriptor, nil
}
