package instance

import (
	"context"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/magictoy/arachni/scan"
)

const defaultSlaveShutdownTimeout = time.Second * 15

// ShutdownCoordinator fans a forceful shutdown out to every known
// slave. Each slave gets its own worker so an unreachable one cannot
// block the rest; per-slave failures are logged and swallowed.
type ShutdownCoordinator struct {
	clients scan.SlaveClientFactory
	timeout time.Duration
	log     zerolog.Logger
}

func NewShutdownCoordinator(clients scan.SlaveClientFactory, log zerolog.Logger) *ShutdownCoordinator {
	return &ShutdownCoordinator{clients: clients, timeout: defaultSlaveShutdownTimeout, log: log}
}

// ShutdownSlaves blocks until every per-slave attempt finished, success
// or failure alike. A snapshot must be passed in: slaves appended to
// the engine mid-shutdown are not this coordinator's problem.
func (c *ShutdownCoordinator) ShutdownSlaves(ctx context.Context, slaves []*scan.SlaveDescriptor) {
	if len(slaves) == 0 {
		return
	}

	pool := workerpool.New(len(slaves))
	for _, slave := range slaves {
		slave := slave
		pool.Submit(func() {
			sctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			if err := c.clients(slave).Shutdown(sctx); err != nil {
				c.log.Warn().Err(err).Str("slave", slave.URL).Msg("failed to shut down slave")
				return
			}
			c.log.Info().Str("slave", slave.URL).Msg("slave shut down")
		})
	}
	pool.StopWait()
}
