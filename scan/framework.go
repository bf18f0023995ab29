package scan

import "context"

// Issue is a single finding reported by the engine, keyed by its digest.
type Issue struct {
	Digest   string `json:"digest"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Element  string `json:"element,omitempty"`
	Severity string `json:"severity,omitempty"`
	Module   string `json:"module,omitempty"`
}

// Statistics for a single engine, local or remote.
type Statistics struct {
	RequestCount  int64   `json:"request_count"`
	ResponseCount int64   `json:"response_count"`
	PageCount     int64   `json:"page_count"`
	AuditedPages  int64   `json:"audited_pages"`
	CurrentPage   string  `json:"current_page,omitempty"`
	Runtime       float64 `json:"runtime"`
}

// InstanceProgress is the per-slave slice of an aggregated progress report.
type InstanceProgress struct {
	URL        string                 `json:"url"`
	Status     Status                 `json:"status"`
	Statistics *Statistics            `json:"statistics,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// ProgressQuery selects which parts of a progress report the engine
// should assemble.
type ProgressQuery struct {
	Statistics   bool
	Issues       bool
	AsNative     bool
	Instances    bool
	Errors       bool
	ErrorsOffset int
}

// Progress is the engine's answer to a ProgressQuery.
type Progress struct {
	Status     Status              `json:"status"`
	Busy       bool                `json:"busy"`
	Statistics *Statistics         `json:"stats,omitempty"`
	Instances  []*InstanceProgress `json:"instances,omitempty"`
	Issues     []*Issue            `json:"issues,omitempty"`
	Errors     []string            `json:"errors,omitempty"`
}

// AuditStore is a point-in-time snapshot of everything the engine knows
// about the scan.
type AuditStore struct {
	Version    string                 `json:"version"`
	Options    map[string]interface{} `json:"options"`
	StartTime  int64                  `json:"start_time"`
	FinishTime int64                  `json:"finish_time"`
	Issues     []*Issue               `json:"issues"`
	Sitemap    []string               `json:"sitemap,omitempty"`
}

// Framework is the engine contract the orchestration facade consumes.
// The facade never looks inside the engine; it only shapes options,
// drives the lifecycle and relays results.
type Framework interface {
	Busy() bool
	Status() Status
	SelfURL() string

	Run(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	CleanUp(ctx context.Context) error

	Progress(ctx context.Context, query *ProgressQuery) (*Progress, error)
	Errors(ctx context.Context, offset int) ([]string, error)
	Report(ctx context.Context) (map[string]interface{}, error)
	ReportAs(ctx context.Context, name string) ([]byte, error)
	AuditStore(ctx context.Context) (*AuditStore, error)

	Enslave(ctx context.Context, slave *SlaveDescriptor) error
	Slaves() []*SlaveDescriptor
	SetAsMaster()
	SetMaxSlaves(n int)
	IgnoreGrid()

	UpdatePageQueue(pages []string) error
	RestrictToElements(ids []string) error
	LoadModules(names []string) error
	LoadPlugins(plugins map[string]map[string]interface{}) error
}
