package framework

import (
	"context"

	"github.com/pkg/errors"

	"github.com/magictoy/arachni/scan"
)

// SetAsMaster marks this instance as the coordinator of a distributed
// scan; slave acquisition becomes the grid's responsibility.
func (f *Framework) SetAsMaster() {
	f.mu.Lock()
	f.master = true
	f.mu.Unlock()
}

func (f *Framework) Master() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.master
}

func (f *Framework) SetMaxSlaves(n int) {
	f.mu.Lock()
	f.maxSlaves = n
	f.mu.Unlock()
}

// IgnoreGrid keeps a grid-aware instance from distributing a scan the
// caller wanted local.
func (f *Framework) IgnoreGrid() {
	f.mu.Lock()
	f.ignoreGrid = true
	f.mu.Unlock()
}

// Enslave registers a ready worker and pushes the scan to it. The
// descriptor has either passed a liveness probe or came from the
// dispatcher, which guarantees readiness by contract.
func (f *Framework) Enslave(ctx context.Context, slave *scan.SlaveDescriptor) error {
	f.mu.Lock()
	if f.maxSlaves > 0 && len(f.slaves) >= f.maxSlaves {
		f.mu.Unlock()
		return errors.Errorf("slave limit of %d reached", f.maxSlaves)
	}
	for _, known := range f.slaves {
		if known.URL == slave.URL {
			f.mu.Unlock()
			return errors.Errorf("slave %s already enslaved", slave.URL)
		}
	}
	f.mu.Unlock()

	accepted, err := f.clients(slave).Scan(ctx, f.slaveOptions())
	if err != nil {
		return errors.Wrapf(err, "failed to enslave %s", slave.URL)
	}
	if !accepted {
		return errors.Errorf("slave %s is busy with another scan", slave.URL)
	}

	f.mu.Lock()
	f.slaves = append(f.slaves, slave)
	f.mu.Unlock()

	f.log.Info().Str("slave", slave.URL).Msg("slave enslaved")
	return nil
}

// slaveOptions derives the option set a slave scans with: the shared
// configuration minus anything that would make the slave distribute
// further, plus its master's address.
func (f *Framework) slaveOptions() map[string]interface{} {
	opts := f.opts.Snapshot()
	delete(opts, "grid")
	delete(opts, "spawns")
	delete(opts, "slaves")
	opts["master"] = f.selfURL
	return opts
}

// Slaves returns a stable snapshot; the shutdown coordinator must not
// observe slaves added mid-shutdown.
func (f *Framework) Slaves() []*scan.SlaveDescriptor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*scan.SlaveDescriptor(nil), f.slaves...)
}
