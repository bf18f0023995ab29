package spawner

import (
	"context"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/magictoy/arachni/pkg/retrier"
	"github.com/magictoy/arachni/pkg/rpc"
	"github.com/magictoy/arachni/scan"
)

const (
	// DefaultMaxProbes bounds how many alive calls a probe may issue.
	DefaultMaxProbes = 100

	defaultProbeDelay     = time.Millisecond * 200
	defaultAttemptTimeout = time.Second * 10
)

// Prober confirms that a freshly spawned worker is ready. The retry
// budget exists to absorb the fork to listen startup race, so only
// connection-refused and timeout style failures are retried; a
// protocol-level rejection (bad token, refused call) will never
// self-resolve and aborts the probe on the spot.
type Prober struct {
	clients        scan.SlaveClientFactory
	maxProbes      uint
	delay          time.Duration
	attemptTimeout time.Duration
	attempts       prometheus.Counter
	log            zerolog.Logger
}

type ProberOption func(*Prober)

func WithMaxProbes(n uint) ProberOption {
	return func(p *Prober) { p.maxProbes = n }
}

func WithProbeDelay(d time.Duration) ProberOption {
	return func(p *Prober) { p.delay = d }
}

func WithAttemptTimeout(d time.Duration) ProberOption {
	return func(p *Prober) { p.attemptTimeout = d }
}

func WithProbeCounter(c prometheus.Counter) ProberOption {
	return func(p *Prober) { p.attempts = c }
}

func WithProbeLogger(log zerolog.Logger) ProberOption {
	return func(p *Prober) { p.log = log }
}

func NewProber(clients scan.SlaveClientFactory, opts ...ProberOption) *Prober {
	p := &Prober{
		clients:        clients,
		maxProbes:      DefaultMaxProbes,
		delay:          defaultProbeDelay,
		attemptTimeout: defaultAttemptTimeout,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe blocks until the slave answers alive, the retry budget runs out
// or a fatal rejection arrives.
func (p *Prober) Probe(ctx context.Context, slave *scan.SlaveDescriptor) error {
	client := p.clients(slave)

	err := retrier.RetryAttempts(ctx, func() error {
		if p.attempts != nil {
			p.attempts.Inc()
		}
		actx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
		defer cancel()

		err := client.Alive(actx)
		if err == nil {
			return nil
		}
		if rpc.IsProtocolError(err) {
			return retry.Unrecoverable(err)
		}
		return err
	}, p.maxProbes, p.delay)

	if err == nil {
		p.log.Info().Str("slave", slave.URL).Msg("slave is ready")
		return nil
	}
	if rpc.IsProtocolError(err) {
		return errors.Wrapf(err, "%s: slave %s", scan.ErrSlaveRejected, slave.URL)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return errors.Wrapf(scan.ErrProbeExhausted, "slave %s after %d attempts: %v", slave.URL, p.maxProbes, err)
}
