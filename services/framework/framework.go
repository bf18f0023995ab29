package framework

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	instanceclient "github.com/magictoy/arachni/clients/instance"
	"github.com/magictoy/arachni/scan"
)

// Version stamped into reports and audit store snapshots.
const Version = "1.0.0"

var (
	defaultModules = []string{"xss", "sqli", "csrf", "path_traversal", "insecure_headers"}
	defaultPlugins = []string{"autologin", "rate_limiter", "webhook_notify"}
)

// Sink receives findings from an Auditor while a scan runs.
type Sink interface {
	AddIssue(issue *scan.Issue)
	AddError(msg string)
	PageAudited(url string)
}

// Auditor performs the actual crawl and audit work. The engine shell
// only drives its lifecycle; swapping the auditor swaps the scanner.
type Auditor interface {
	Audit(ctx context.Context, target string, pages []string, sink Sink) error
}

// inertAuditor is the default: it audits nothing and returns at once.
type inertAuditor struct{}

func (inertAuditor) Audit(ctx context.Context, target string, pages []string, sink Sink) error {
	return nil
}

// Framework is the engine shell: lifecycle state machine, module and
// plugin registries, slave registry and progress aggregation. One is
// built per process at bootstrap.
type Framework struct {
	opts    *scan.Options
	selfURL string
	clients scan.SlaveClientFactory
	auditor Auditor
	log     zerolog.Logger

	availableModules []string
	availablePlugins []string

	mu         sync.RWMutex
	status     scan.Status
	master     bool
	ignoreGrid bool
	maxSlaves  int
	modules    []string
	plugins    map[string]map[string]interface{}
	pageQueue  []string
	elements   []string
	slaves     []*scan.SlaveDescriptor
	issues     []*scan.Issue
	seen       map[string]struct{}
	errs       []string
	stats      scan.Statistics
	startTime  time.Time
	finishTime time.Time
	cancelRun  context.CancelFunc
}

type Option func(*Framework)

func WithAuditor(a Auditor) Option {
	return func(f *Framework) { f.auditor = a }
}

func WithClients(factory scan.SlaveClientFactory) Option {
	return func(f *Framework) { f.clients = factory }
}

func WithLogger(log zerolog.Logger) Option {
	return func(f *Framework) { f.log = log }
}

func WithAvailableModules(names []string) Option {
	return func(f *Framework) { f.availableModules = names }
}

func WithAvailablePlugins(names []string) Option {
	return func(f *Framework) { f.availablePlugins = names }
}

func New(opts *scan.Options, selfURL string, options ...Option) *Framework {
	f := &Framework{
		opts:             opts,
		selfURL:          selfURL,
		clients:          instanceclient.NewForSlave,
		auditor:          inertAuditor{},
		log:              zerolog.Nop(),
		availableModules: defaultModules,
		availablePlugins: defaultPlugins,
		status:           scan.StatusReady,
		plugins:          make(map[string]map[string]interface{}),
		seen:             make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

func (f *Framework) SelfURL() string {
	return f.selfURL
}

func (f *Framework) Status() scan.Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

func (f *Framework) Busy() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return busyStatus(f.status)
}

func busyStatus(s scan.Status) bool {
	return s == scan.StatusPreparing || s == scan.StatusScanning || s == scan.StatusPaused
}

// Run starts the scan and returns once the engine is going; the audit
// itself proceeds on its own goroutine.
func (f *Framework) Run(ctx context.Context) error {
	f.mu.Lock()
	if busyStatus(f.status) {
		f.mu.Unlock()
		return scan.ErrAlreadyRunning
	}

	// the run outlives the RPC call that started it
	runCtx, cancel := context.WithCancel(context.Background())
	f.cancelRun = cancel
	f.status = scan.StatusPreparing
	f.startTime = time.Now()
	f.finishTime = time.Time{}
	target := f.opts.URL()
	pages := append([]string(nil), f.pageQueue...)
	f.mu.Unlock()

	go f.audit(runCtx, target, pages)
	return nil
}

func (f *Framework) audit(ctx context.Context, target string, pages []string) {
	f.mu.Lock()
	if f.status == scan.StatusPreparing {
		f.status = scan.StatusScanning
	}
	f.mu.Unlock()

	if err := f.auditor.Audit(ctx, target, pages, f); err != nil {
		f.AddError(err.Error())
	}

	f.waitForSlaves(ctx)

	f.mu.Lock()
	if busyStatus(f.status) {
		f.status = scan.StatusDone
		f.finishTime = time.Now()
	}
	f.mu.Unlock()
	f.log.Info().Str("target", target).Msg("scan finished")
}

// waitForSlaves blocks until every enslaved instance reports idle, so a
// master does not declare the scan done while workers still audit.
func (f *Framework) waitForSlaves(ctx context.Context) {
	ticker := time.NewTicker(time.Second * 2)
	defer ticker.Stop()

	for {
		if !f.slavesBusy(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (f *Framework) slavesBusy(ctx context.Context) bool {
	for _, slave := range f.Slaves() {
		progress, err := f.clients(slave).Progress(ctx, map[string]interface{}{})
		if err != nil {
			f.log.Warn().Err(err).Str("slave", slave.URL).Msg("failed to poll slave")
			continue
		}
		if busy, _ := progress["busy"].(bool); busy {
			return true
		}
	}
	return false
}

// Pause suspends the local audit and every enslaved instance.
func (f *Framework) Pause(ctx context.Context) error {
	f.mu.Lock()
	if f.status != scan.StatusScanning && f.status != scan.StatusPreparing {
		f.mu.Unlock()
		return scan.ErrNotScanning
	}
	f.status = scan.StatusPaused
	f.mu.Unlock()

	return f.eachSlave(ctx, func(ctx context.Context, client scan.SlaveClient) error {
		return client.Pause(ctx)
	})
}

func (f *Framework) Resume(ctx context.Context) error {
	f.mu.Lock()
	if f.status != scan.StatusPaused {
		f.mu.Unlock()
		return scan.ErrNotScanning
	}
	f.status = scan.StatusScanning
	f.mu.Unlock()

	return f.eachSlave(ctx, func(ctx context.Context, client scan.SlaveClient) error {
		return client.Resume(ctx)
	})
}

func (f *Framework) eachSlave(ctx context.Context, fn func(ctx context.Context, client scan.SlaveClient) error) error {
	slaves := f.Slaves()
	if len(slaves) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, slave := range slaves {
		slave := slave
		g.Go(func() error {
			return fn(gctx, f.clients(slave))
		})
	}
	return g.Wait()
}

// CleanUp aborts the run. Loaded configuration, issues and statistics
// survive so a report can still be produced.
func (f *Framework) CleanUp(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelRun != nil {
		f.cancelRun()
		f.cancelRun = nil
	}
	if busyStatus(f.status) {
		f.status = scan.StatusAborted
		f.finishTime = time.Now()
	}
	return nil
}
