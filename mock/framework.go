package mock

import (
	"context"

	"github.com/magictoy/arachni/scan"
)

// Framework mocks the engine contract the facade consumes.
type Framework struct {
	BusyFn      func() bool
	BusyInvoked bool

	StatusFn      func() scan.Status
	StatusInvoked bool

	SelfURLFn      func() string
	SelfURLInvoked bool

	RunFn      func(ctx context.Context) error
	RunInvoked bool

	PauseFn      func(ctx context.Context) error
	PauseInvoked bool

	ResumeFn      func(ctx context.Context) error
	ResumeInvoked bool

	CleanUpFn      func(ctx context.Context) error
	CleanUpInvoked bool

	ProgressFn      func(ctx context.Context, query *scan.ProgressQuery) (*scan.Progress, error)
	ProgressInvoked bool

	ErrorsFn      func(ctx context.Context, offset int) ([]string, error)
	ErrorsInvoked bool

	ReportFn      func(ctx context.Context) (map[string]interface{}, error)
	ReportInvoked bool

	ReportAsFn      func(ctx context.Context, name string) ([]byte, error)
	ReportAsInvoked bool

	AuditStoreFn      func(ctx context.Context) (*scan.AuditStore, error)
	AuditStoreInvoked bool

	EnslaveFn      func(ctx context.Context, slave *scan.SlaveDescriptor) error
	EnslaveInvoked bool

	SlavesFn      func() []*scan.SlaveDescriptor
	SlavesInvoked bool

	SetAsMasterFn      func()
	SetAsMasterInvoked bool

	SetMaxSlavesFn      func(n int)
	SetMaxSlavesInvoked bool

	IgnoreGridFn      func()
	IgnoreGridInvoked bool

	UpdatePageQueueFn      func(pages []string) error
	UpdatePageQueueInvoked bool

	PageQueueFn      func() []string
	PageQueueInvoked bool

	RestrictToElementsFn      func(ids []string) error
	RestrictToElementsInvoked bool

	LoadModulesFn      func(names []string) error
	LoadModulesInvoked bool

	LoadPluginsFn      func(plugins map[string]map[string]interface{}) error
	LoadPluginsInvoked bool
}

func (f *Framework) Busy() bool {
	f.BusyInvoked = true
	if f.BusyFn == nil {
		return false
	}
	return f.BusyFn()
}

func (f *Framework) Status() scan.Status {
	f.StatusInvoked = true
	if f.StatusFn == nil {
		return scan.StatusReady
	}
	return f.StatusFn()
}

func (f *Framework) SelfURL() string {
	f.SelfURLInvoked = true
	if f.SelfURLFn == nil {
		return "127.0.0.1:0"
	}
	return f.SelfURLFn()
}

func (f *Framework) Run(ctx context.Context) error {
	f.RunInvoked = true
	if f.RunFn == nil {
		return nil
	}
	return f.RunFn(ctx)
}

func (f *Framework) Pause(ctx context.Context) error {
	f.PauseInvoked = true
	if f.PauseFn == nil {
		return nil
	}
	return f.PauseFn(ctx)
}

func (f *Framework) Resume(ctx context.Context) error {
	f.ResumeInvoked = true
	if f.ResumeFn == nil {
		return nil
	}
	return f.ResumeFn(ctx)
}

func (f *Framework) CleanUp(ctx context.Context) error {
	f.CleanUpInvoked = true
	if f.CleanUpFn == nil {
		return nil
	}
	return f.CleanUpFn(ctx)
}

func (f *Framework) Progress(ctx context.Context, query *scan.ProgressQuery) (*scan.Progress, error) {
	f.ProgressInvoked = true
	if f.ProgressFn == nil {
		return &scan.Progress{Status: scan.StatusReady}, nil
	}
	return f.ProgressFn(ctx, query)
}

func (f *Framework) Errors(ctx context.Context, offset int) ([]string, error) {
	f.ErrorsInvoked = true
	if f.ErrorsFn == nil {
		return nil, nil
	}
	return f.ErrorsFn(ctx, offset)
}

func (f *Framework) Report(ctx context.Context) (map[string]interface{}, error) {
	f.ReportInvoked = true
	if f.ReportFn == nil {
		return map[string]interface{}{}, nil
	}
	return f.ReportFn(ctx)
}

func (f *Framework) ReportAs(ctx context.Context, name string) ([]byte, error) {
	f.ReportAsInvoked = true
	if f.ReportAsFn == nil {
		return nil, nil
	}
	return f.ReportAsFn(ctx, name)
}

func (f *Framework) AuditStore(ctx context.Context) (*scan.AuditStore, error) {
	f.AuditStoreInvoked = true
	if f.AuditStoreFn == nil {
		return &scan.AuditStore{}, nil
	}
	return f.AuditStoreFn(ctx)
}

func (f *Framework) Enslave(ctx context.Context, slave *scan.SlaveDescriptor) error {
	f.EnslaveInvoked = true
	if f.EnslaveFn == nil {
		return nil
	}
	return f.EnslaveFn(ctx, slave)
}

func (f *Framework) Slaves() []*scan.SlaveDescriptor {
	f.SlavesInvoked = true
	if f.SlavesFn == nil {
		return nil
	}
	return f.SlavesFn()
}

func (f *Framework) SetAsMaster() {
	f.SetAsMasterInvoked = true
	if f.SetAsMasterFn != nil {
		f.SetAsMasterFn()
	}
}

func (f *Framework) SetMaxSlaves(n int) {
	f.SetMaxSlavesInvoked = true
	if f.SetMaxSlavesFn != nil {
		f.SetMaxSlavesFn(n)
	}
}

func (f *Framework) IgnoreGrid() {
	f.IgnoreGridInvoked = true
	if f.IgnoreGridFn != nil {
		f.IgnoreGridFn()
	}
}

func (f *Framework) UpdatePageQueue(pages []string) error {
	f.UpdatePageQueueInvoked = true
	if f.UpdatePageQueueFn == nil {
		return nil
	}
	return f.UpdatePageQueueFn(pages)
}

func (f *Framework) PageQueue() []string {
	f.PageQueueInvoked = true
	if f.PageQueueFn == nil {
		return nil
	}
	return f.PageQueueFn()
}

func (f *Framework) RestrictToElements(ids []string) error {
	f.RestrictToElementsInvoked = true
	if f.RestrictToElementsFn == nil {
		return nil
	}
	return f.RestrictToElementsFn(ids)
}

func (f *Framework) LoadModules(names []string) error {
	f.LoadModulesInvoked = true
	if f.LoadModulesFn == nil {
		return nil
	}
	return f.LoadModulesFn(names)
}

func (f *Framework) LoadPlugins(plugins map[string]map[string]interface{}) error {
	f.LoadPluginsInvoked = true
	if f.LoadPluginsFn == nil {
		return nil
	}
	return f.LoadPluginsFn(plugins)
}
