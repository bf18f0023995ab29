package scan

import "context"

const (
	InstanceServiceKey   = "instanceservice"
	DispatcherServiceKey = "dispatcherservice"
)

// Status of the scan engine lifecycle.
type Status string

const (
	StatusReady     Status = "ready"
	StatusPreparing Status = "preparing"
	StatusScanning  Status = "scanning"
	StatusPaused    Status = "paused"
	StatusDone      Status = "done"
	StatusAborted   Status = "aborted"
)

// InstanceService is the public operation surface a running instance
// exposes to remote callers. Scan returns false without touching engine
// state when a scan is already initializing or running, so clients may
// safely retry after an ambiguous network outcome.
type InstanceService interface {
	Scan(ctx context.Context, opts map[string]interface{}) (bool, error)
	Progress(ctx context.Context, opts map[string]interface{}) (map[string]interface{}, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
	Busy(ctx context.Context) (bool, error)
	Errors(ctx context.Context, offset int) ([]string, error)
	Report(ctx context.Context) (map[string]interface{}, error)
	ReportAs(ctx context.Context, name string) ([]byte, error)
	AuditStore(ctx context.Context) (*AuditStore, error)
	AbortAndReport(ctx context.Context) (map[string]interface{}, error)
	AbortAndReportAs(ctx context.Context, name string) ([]byte, error)
	Shutdown(ctx context.Context) error
	Alive(ctx context.Context) (bool, error)
}
