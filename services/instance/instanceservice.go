package instance

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	instanceclient "github.com/magictoy/arachni/clients/instance"
	"github.com/magictoy/arachni/pkg/set"
	"github.com/magictoy/arachni/scan"
)

// Transport is the local RPC server the service tears down last.
type Transport interface {
	Shutdown(ctx context.Context) error
}

// Service is the orchestration facade of one scanning instance: the
// single entry point remote callers use to configure a scan, poll
// aggregated progress, pause or resume, and tear everything down. It
// owns the scan-initializing guard and composes the provisioner, the
// engine and the shutdown coordinator.
type Service struct {
	opts        *scan.Options
	framework   scan.Framework
	dispatcher  scan.DispatcherService
	provisioner *Provisioner
	coordinator *ShutdownCoordinator
	clients     scan.SlaveClientFactory
	transport   Transport
	log         zerolog.Logger

	scanInitializing atomic.Bool
	shuttingDown     atomic.Bool
}

type Option func(*Service)

// WithDispatcher marks this instance as grid aware.
func WithDispatcher(d scan.DispatcherService) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithSlaveClients(factory scan.SlaveClientFactory) Option {
	return func(s *Service) { s.clients = factory }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func New(opts *scan.Options, framework scan.Framework, provisioner *Provisioner, options ...Option) *Service {
	s := &Service{
		opts:        opts,
		framework:   framework,
		provisioner: provisioner,
		clients:     instanceclient.NewForSlave,
		log:         zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.coordinator = NewShutdownCoordinator(s.clients, s.log)
	return s
}

// SetTransport hands the service its own RPC server, once built, so
// Shutdown can take it down last.
func (s *Service) SetTransport(t Transport) {
	s.transport = t
}

// Scan validates options, resolves slaves and starts the engine. A
// false result with a nil error is the duplicate-scan no-op: a scan is
// already initializing or running and nothing was touched, so clients
// may retry safely after an ambiguous network outcome.
func (s *Service) Scan(ctx context.Context, opts map[string]interface{}) (bool, error) {
	if !s.scanInitializing.CompareAndSwap(false, true) {
		return false, nil
	}
	// cleared on every path; once the engine is started its own busy
	// flag takes over guarding duplicates
	defer s.scanInitializing.Store(false)

	if s.framework.Busy() {
		return false, nil
	}

	req, err := parseScanRequest(opts)
	if err != nil {
		return false, err
	}

	s.opts.SetMany(req.Rest)
	if s.opts.URL() == "" {
		return false, scan.ErrMissingURL
	}

	if len(req.Pages) > 0 {
		if err := s.framework.UpdatePageQueue(req.Pages); err != nil {
			return false, err
		}
	}
	if len(req.Elements) > 0 {
		if err := s.framework.RestrictToElements(req.Elements); err != nil {
			return false, err
		}
	}
	if len(req.Modules) > 0 {
		if err := s.framework.LoadModules(req.Modules); err != nil {
			return false, err
		}
	}
	if len(req.Plugins) > 0 {
		if err := s.framework.LoadPlugins(req.Plugins); err != nil {
			return false, err
		}
	}

	// a known dispatcher must not silently distribute a scan the
	// caller wanted local
	if s.dispatcher != nil && !req.Grid {
		s.framework.IgnoreGrid()
	}

	if req.Grid {
		s.framework.SetAsMaster()
		s.framework.SetMaxSlaves(req.Spawns)
	} else {
		if err := s.resolveSlaves(ctx, req); err != nil {
			return false, err
		}
	}

	if err := s.framework.Run(ctx); err != nil {
		return false, err
	}

	s.log.Info().Str("url", s.opts.URL()).Bool("grid", req.Grid).Int("spawns", req.Spawns).Msg("scan started")
	return true, nil
}

// resolveSlaves provisions the requested workers, merges explicitly
// supplied descriptors in and enslaves the lot concurrently. The engine
// only starts once every enslavement completed.
func (s *Service) resolveSlaves(ctx context.Context, req *scanRequest) error {
	slaves, err := s.provisioner.Provision(ctx, req.Spawns)
	if err != nil {
		return err
	}
	slaves = append(slaves, req.Slaves...)
	if len(slaves) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, slave := range slaves {
		slave := slave
		g.Go(func() error {
			return s.framework.Enslave(gctx, slave)
		})
	}
	return errors.Wrap(g.Wait(), "enslavement failed")
}

// Progress assembles an aggregated progress report shaped by the with
// and without option sets.
func (s *Service) Progress(ctx context.Context, opts map[string]interface{}) (map[string]interface{}, error) {
	if opts == nil {
		opts = map[string]interface{}{}
	}
	with := ParseOptions(opts, "with")
	without := ParseOptions(opts, "without")

	_, wantNative := with["native_issues"]
	_, wantDigest := with["issues"]
	_, wantInstances := with["instances"]
	errorsValue, wantErrors := with["errors"]
	_, skipStats := without["stats"]

	query := &scan.ProgressQuery{
		Statistics:   !skipStats,
		Issues:       wantNative || wantDigest,
		AsNative:     wantNative,
		Instances:    wantInstances,
		Errors:       wantErrors,
		ErrorsOffset: intValue(errorsValue),
	}

	progress, err := s.framework.Progress(ctx, query)
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{
		"status": progress.Status,
		// the engine's busy flag alone would miss the initializing window
		"busy": s.scanInitializing.Load() || s.framework.Busy(),
	}
	if query.Statistics {
		out["stats"] = progress.Statistics
	}
	if wantInstances {
		instances := progress.Instances
		if instances == nil {
			instances = []*scan.InstanceProgress{}
		}
		out["instances"] = instances
	}
	if query.Issues {
		issues := progress.Issues
		if excluded, ok := without["issues"]; ok {
			issues = filterIssues(issues, stringListValue(excluded))
		}
		if issues == nil {
			issues = []*scan.Issue{}
		}
		out["issues"] = issues
	}
	if wantErrors {
		out["errors"] = progress.Errors
	}
	return out, nil
}

func filterIssues(issues []*scan.Issue, digests []string) []*scan.Issue {
	if len(digests) == 0 {
		return issues
	}
	out := make([]*scan.Issue, 0, len(issues))
	for _, issue := range issues {
		if set.StrContains(digests, issue.Digest) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

func (s *Service) Pause(ctx context.Context) error {
	return s.framework.Pause(ctx)
}

func (s *Service) Resume(ctx context.Context) error {
	return s.framework.Resume(ctx)
}

func (s *Service) Status(ctx context.Context) (scan.Status, error) {
	return s.framework.Status(), nil
}

func (s *Service) Busy(ctx context.Context) (bool, error) {
	return s.scanInitializing.Load() || s.framework.Busy(), nil
}

func (s *Service) Errors(ctx context.Context, offset int) ([]string, error) {
	return s.framework.Errors(ctx, offset)
}

func (s *Service) Report(ctx context.Context) (map[string]interface{}, error) {
	return s.framework.Report(ctx)
}

func (s *Service) ReportAs(ctx context.Context, name string) ([]byte, error) {
	return s.framework.ReportAs(ctx, name)
}

func (s *Service) AuditStore(ctx context.Context) (*scan.AuditStore, error) {
	return s.framework.AuditStore(ctx)
}

// AbortAndReport cleans the engine up first, then produces the report.
func (s *Service) AbortAndReport(ctx context.Context) (map[string]interface{}, error) {
	if err := s.framework.CleanUp(ctx); err != nil {
		return nil, err
	}
	return s.framework.Report(ctx)
}

func (s *Service) AbortAndReportAs(ctx context.Context, name string) ([]byte, error) {
	if err := s.framework.CleanUp(ctx); err != nil {
		return nil, err
	}
	return s.framework.ReportAs(ctx, name)
}

// Shutdown fans out to every known slave, waits for all attempts to
// finish, then takes the local transport down. Safe to call repeatedly
// and with zero slaves.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	slaves := s.framework.Slaves()
	s.log.Info().Int("slaves", len(slaves)).Msg("shutting down")
	s.coordinator.ShutdownSlaves(ctx, slaves)

	if s.transport == nil {
		return nil
	}
	return s.transport.Shutdown(ctx)
}

func (s *Service) Alive(ctx context.Context) (bool, error) {
	return true, nil
}
