package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/magictoy/arachni/scan"
	"github.com/magictoy/arachni/services/instance"
)

const DefaultPoolSize = 3

// Service hands out ready slave instances from a pre-spawned pool.
// Allocation is plain FIFO; a drained pool spawns synchronously so
// Dispatch never returns an unready descriptor.
type Service struct {
	provisioner *instance.Provisioner
	poolSize    int
	log         zerolog.Logger

	mu   sync.Mutex
	pool []*scan.SlaveDescriptor

	replenishing atomic.Bool
}

type Option func(*Service)

func WithPoolSize(n int) Option {
	return func(s *Service) { s.poolSize = n }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New builds the dispatcher around a fork-mode provisioner.
func New(provisioner *instance.Provisioner, opts ...Option) *Service {
	s := &Service{
		provisioner: provisioner,
		poolSize:    DefaultPoolSize,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init pre-fills the pool.
func (s *Service) Init(ctx context.Context) error {
	slaves, err := s.provisioner.Provision(ctx, s.poolSize)
	if err != nil {
		return errors.Wrap(err, "failed to fill instance pool")
	}

	s.mu.Lock()
	s.pool = slaves
	s.mu.Unlock()

	s.log.Info().Int("pool", len(slaves)).Msg("instance pool ready")
	return nil
}

// Dispatch pops one ready descriptor and replenishes in the background.
func (s *Service) Dispatch(ctx context.Context, callerURL string) (*scan.SlaveDescriptor, error) {
	s.mu.Lock()
	var slave *scan.SlaveDescriptor
	if len(s.pool) > 0 {
		slave = s.pool[0]
		s.pool = s.pool[1:]
	}
	s.mu.Unlock()

	if slave == nil {
		slaves, err := s.provisioner.Provision(ctx, 1)
		if err != nil {
			return nil, err
		}
		slave = slaves[0]
	}

	s.log.Info().Str("caller", callerURL).Str("slave", slave.URL).Msg("dispatched instance")
	go s.replenish()
	return slave, nil
}

func (s *Service) Alive(ctx context.Context) error {
	return nil
}

// PoolSize reports how many ready instances are waiting.
func (s *Service) PoolSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pool)
}

// Pool returns a snapshot of the waiting descriptors, used when the
// dispatcher itself shuts down.
func (s *Service) Pool() []*scan.SlaveDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*scan.SlaveDescriptor(nil), s.pool...)
}

func (s *Service) replenish() {
	if !s.replenishing.CompareAndSwap(false, true) {
		return
	}
	defer s.replenishing.Store(false)

	for {
		s.mu.Lock()
		missing := s.poolSize - len(s.pool)
		s.mu.Unlock()
		if missing <= 0 {
			return
		}

		slaves, err := s.provisioner.Provision(context.Background(), missing)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to replenish instance pool")
			return
		}

		s.mu.Lock()
		s.pool = append(s.pool, slaves...)
		s.mu.Unlock()
	}
}
