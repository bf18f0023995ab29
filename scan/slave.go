package scan

import "context"

// SlaveDescriptor identifies one ready worker instance. Immutable once
// created; lives only for the duration of the owning scan.
type SlaveDescriptor struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// SpawnMode selects how slave instances are obtained.
type SpawnMode int

const (
	// SpawnModeDispatcher allocates slaves from a dispatcher pool.
	SpawnModeDispatcher SpawnMode = iota
	// SpawnModeFork spawns fresh local processes and probes them.
	SpawnModeFork
)

func (m SpawnMode) String() string {
	if m == SpawnModeDispatcher {
		return "dispatcher"
	}
	return "fork"
}

// SpawnRequest is the provisioning order derived from scan options.
type SpawnRequest struct {
	Count int
	Mode  SpawnMode
}

// SlaveClient talks to one remote instance on behalf of the local one.
type SlaveClient interface {
	Alive(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Scan(ctx context.Context, opts map[string]interface{}) (bool, error)
	Progress(ctx context.Context, opts map[string]interface{}) (map[string]interface{}, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// SlaveClientFactory builds a client for a descriptor. Injected so the
// facade, engine and prober share one dialing policy and tests can swap
// the transport out.
type SlaveClientFactory func(slave *SlaveDescriptor) SlaveClient
