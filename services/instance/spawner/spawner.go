package spawner

import (
	"context"

	"github.com/magictoy/arachni/scan"
)

// Worker is one spawned instance process.
type Worker struct {
	ID         string
	PID        int
	Descriptor *scan.SlaveDescriptor
	StartTime  int64
}

// Spawner brings up fresh instance processes for the provisioner and
// the dispatcher pool.
type Spawner interface {
	Spawn(ctx context.Context, port int, token string) (*Worker, error)
	Kill(worker *Worker) error
}
