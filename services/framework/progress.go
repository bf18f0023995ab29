package framework

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/magictoy/arachni/scan"
)

// AddIssue records a finding, deduplicated by digest.
func (f *Framework) AddIssue(issue *scan.Issue) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[issue.Digest]; ok {
		return
	}
	f.seen[issue.Digest] = struct{}{}
	f.issues = append(f.issues, issue)
}

func (f *Framework) AddError(msg string) {
	f.mu.Lock()
	f.errs = append(f.errs, msg)
	f.mu.Unlock()
}

func (f *Framework) PageAudited(url string) {
	f.mu.Lock()
	f.stats.RequestCount++
	f.stats.ResponseCount++
	f.stats.PageCount++
	f.stats.AuditedPages++
	f.stats.CurrentPage = url
	f.mu.Unlock()
}

// Progress assembles the parts of a progress report selected by query.
// Slave progress is polled live and merged in; an unreachable slave is
// reported inside the progress errors rather than failing the call.
func (f *Framework) Progress(ctx context.Context, query *scan.ProgressQuery) (*scan.Progress, error) {
	if query == nil {
		query = &scan.ProgressQuery{Statistics: true}
	}

	f.mu.RLock()
	progress := &scan.Progress{
		Status: f.status,
		Busy:   busyStatus(f.status),
	}
	if query.Statistics {
		stats := f.stats
		if !f.startTime.IsZero() {
			end := f.finishTime
			if end.IsZero() {
				end = time.Now()
			}
			stats.Runtime = end.Sub(f.startTime).Seconds()
		}
		progress.Statistics = &stats
	}
	if query.Issues {
		progress.Issues = append([]*scan.Issue(nil), f.issues...)
	}
	if query.Errors {
		errs := f.errs
		if query.ErrorsOffset > 0 && query.ErrorsOffset < len(errs) {
			errs = errs[query.ErrorsOffset:]
		} else if query.ErrorsOffset >= len(errs) {
			errs = nil
		}
		progress.Errors = append([]string(nil), errs...)
	}
	f.mu.RUnlock()

	if query.Instances {
		progress.Instances = f.pollSlaves(ctx)
	}
	return progress, nil
}

func (f *Framework) pollSlaves(ctx context.Context) []*scan.InstanceProgress {
	slaves := f.Slaves()
	instances := make([]*scan.InstanceProgress, 0, len(slaves))
	if len(slaves) == 0 {
		return instances
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, slave := range slaves {
		slave := slave
		wg.Add(1)
		go func() {
			defer wg.Done()

			report, err := f.clients(slave).Progress(ctx, map[string]interface{}{})
			if err != nil {
				f.log.Warn().Err(err).Str("slave", slave.URL).Msg("failed to poll slave progress")
				f.AddError(errors.Wrapf(err, "slave %s", slave.URL).Error())
				return
			}

			entry := &scan.InstanceProgress{URL: slave.URL, Extra: report}
			if status, ok := report["status"].(string); ok {
				entry.Status = scan.Status(status)
			}
			mu.Lock()
			instances = append(instances, entry)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return instances
}

func (f *Framework) Errors(ctx context.Context, offset int) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(f.errs) {
		return []string{}, nil
	}
	return append([]string(nil), f.errs[offset:]...), nil
}

// Report renders everything known about the scan as a plain map.
func (f *Framework) Report(ctx context.Context) (map[string]interface{}, error) {
	store, err := f.AuditStore(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"version":     store.Version,
		"options":     store.Options,
		"start_time":  store.StartTime,
		"finish_time": store.FinishTime,
		"issues":      store.Issues,
		"sitemap":     store.Sitemap,
	}, nil
}

// ReportAs renders the report in the named format.
func (f *Framework) ReportAs(ctx context.Context, name string) ([]byte, error) {
	report, err := f.Report(ctx)
	if err != nil {
		return nil, err
	}
	switch name {
	case "json":
		return json.MarshalIndent(report, "", "  ")
	case "yaml", "yml":
		return yaml.Marshal(report)
	default:
		return nil, errors.Wrap(scan.ErrUnknownFormat, name)
	}
}

// AuditStore snapshots the scan state.
func (f *Framework) AuditStore(ctx context.Context) (*scan.AuditStore, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	store := &scan.AuditStore{
		Version: Version,
		Options: f.opts.Snapshot(),
		Issues:  append([]*scan.Issue(nil), f.issues...),
		Sitemap: append([]string(nil), f.pageQueue...),
	}
	if !f.startTime.IsZero() {
		store.StartTime = f.startTime.Unix()
	}
	if !f.finishTime.IsZero() {
		store.FinishTime = f.finishTime.Unix()
	}
	return store, nil
}
