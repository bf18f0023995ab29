package framework_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/magictoy/arachni/mock"
	"github.com/magictoy/arachni/scan"
	"github.com/magictoy/arachni/services/framework"
)

// blockingAuditor holds the audit open until released, so lifecycle
// transitions can be observed mid-scan.
type blockingAuditor struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingAuditor() *blockingAuditor {
	return &blockingAuditor{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (a *blockingAuditor) Audit(ctx context.Context, target string, pages []string, sink framework.Sink) error {
	close(a.started)
	select {
	case <-a.release:
	case <-ctx.Done():
	}
	return nil
}

func waitStatus(t *testing.T, f *framework.Framework, want scan.Status) {
	t.Helper()
	deadline := time.Now().Add(time.Second * 2)
	for time.Now().Before(deadline) {
		if f.Status() == want {
			return
		}
		time.Sleep(time.Millisecond * 5)
	}
	t.Fatalf("status never reached %s, stuck at %s\n", want, f.Status())
}

func newEngine(t *testing.T, options ...framework.Option) *framework.Framework {
	t.Helper()
	opts := scan.NewOptions()
	opts.Set("url", "http://example.test/")
	return framework.New(opts, "127.0.0.1:7331", options...)
}

func TestRunLifecycle(t *testing.T) {
	auditor := newBlockingAuditor()
	engine := newEngine(t, framework.WithAuditor(auditor))

	if engine.Busy() {
		t.Fatalf("fresh engine must be idle\n")
	}
	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	<-auditor.started

	if !engine.Busy() {
		t.Fatalf("running engine must report busy\n")
	}
	if err := engine.Run(context.Background()); !errors.Is(err, scan.ErrAlreadyRunning) {
		t.Fatalf("expected duplicate run rejection got %v\n", err)
	}

	close(auditor.release)
	waitStatus(t, engine, scan.StatusDone)
	if engine.Busy() {
		t.Fatalf("finished engine must be idle\n")
	}
}

func TestCleanUpAbortsTheRun(t *testing.T) {
	auditor := newBlockingAuditor()
	engine := newEngine(t, framework.WithAuditor(auditor))

	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	<-auditor.started

	if err := engine.CleanUp(context.Background()); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if got := engine.Status(); got != scan.StatusAborted {
		t.Fatalf("expected aborted status got %s\n", got)
	}

	// an aborted scan must still be reportable
	report, err := engine.Report(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if report["version"] != framework.Version {
		t.Fatalf("unexpected report %#v\n", report)
	}
}

func TestPauseResume(t *testing.T) {
	auditor := newBlockingAuditor()
	engine := newEngine(t, framework.WithAuditor(auditor))

	if err := engine.Pause(context.Background()); !errors.Is(err, scan.ErrNotScanning) {
		t.Fatalf("expected pause of an idle engine to fail, got %v\n", err)
	}

	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	<-auditor.started

	if err := engine.Pause(context.Background()); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if got := engine.Status(); got != scan.StatusPaused {
		t.Fatalf("expected paused status got %s\n", got)
	}
	if !engine.Busy() {
		t.Fatalf("paused engine still holds the scan slot\n")
	}

	if err := engine.Resume(context.Background()); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if got := engine.Status(); got != scan.StatusScanning {
		t.Fatalf("expected scanning status got %s\n", got)
	}
	if err := engine.Resume(context.Background()); !errors.Is(err, scan.ErrNotScanning) {
		t.Fatalf("expected resume of a running engine to fail, got %v\n", err)
	}

	close(auditor.release)
	waitStatus(t, engine, scan.StatusDone)
}

func TestLoadModulesRejectsUnknownNames(t *testing.T) {
	engine := newEngine(t)

	err := engine.LoadModules([]string{"xss", "does_not_exist", "nor_this"})
	if !errors.Is(err, scan.ErrUnknownModule) {
		t.Fatalf("expected unknown module error got %v\n", err)
	}
	if !strings.Contains(err.Error(), "does_not_exist") || !strings.Contains(err.Error(), "nor_this") {
		t.Fatalf("expected every unknown name to be reported, got %v\n", err)
	}
	if loaded := engine.LoadedModules(); len(loaded) != 0 {
		t.Fatalf("a failed load must not load anything, got %v\n", loaded)
	}

	if err := engine.LoadModules([]string{"xss", "sqli"}); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if loaded := engine.LoadedModules(); len(loaded) != 2 {
		t.Fatalf("expected 2 loaded modules got %v\n", loaded)
	}
}

func TestLoadPluginsRejectsUnknownNames(t *testing.T) {
	engine := newEngine(t)

	err := engine.LoadPlugins(map[string]map[string]interface{}{"bogus": {}})
	if !errors.Is(err, scan.ErrUnknownPlugin) {
		t.Fatalf("expected unknown plugin error got %v\n", err)
	}

	if err := engine.LoadPlugins(map[string]map[string]interface{}{
		"autologin": {"username": "admin"},
	}); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if loaded := engine.LoadedPlugins(); len(loaded) != 1 || loaded[0] != "autologin" {
		t.Fatalf("expected autologin loaded got %v\n", loaded)
	}
}

func TestEnslavePushesDerivedOptions(t *testing.T) {
	var pushed map[string]interface{}
	client := &mock.SlaveClient{}
	client.ScanFn = func(ctx context.Context, opts map[string]interface{}) (bool, error) {
		pushed = opts
		return true, nil
	}
	factory := func(slave *scan.SlaveDescriptor) scan.SlaveClient { return client }

	opts := scan.NewOptions()
	opts.SetMany(map[string]interface{}{
		"url": "http://example.test/", "grid": true, "spawns": 2,
	})
	engine := framework.New(opts, "127.0.0.1:7331", framework.WithClients(factory))

	slave := &scan.SlaveDescriptor{URL: "10.0.0.9:7331", Token: "t"}
	if err := engine.Enslave(context.Background(), slave); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}

	if pushed["master"] != "127.0.0.1:7331" {
		t.Fatalf("slave was not told its master, got %#v\n", pushed)
	}
	for _, forbidden := range []string{"grid", "spawns", "slaves"} {
		if _, ok := pushed[forbidden]; ok {
			t.Fatalf("distribution option %q leaked to the slave\n", forbidden)
		}
	}
	if pushed["url"] != "http://example.test/" {
		t.Fatalf("target url was not forwarded, got %#v\n", pushed)
	}

	if err := engine.Enslave(context.Background(), slave); err == nil {
		t.Fatalf("expected duplicate enslavement to fail\n")
	}
	if got := engine.Slaves(); len(got) != 1 {
		t.Fatalf("expected 1 slave got %d\n", len(got))
	}
}

func TestEnslaveRespectsSlaveLimit(t *testing.T) {
	factory := func(slave *scan.SlaveDescriptor) scan.SlaveClient { return &mock.SlaveClient{} }
	engine := newEngine(t, framework.WithClients(factory))
	engine.SetMaxSlaves(1)

	if err := engine.Enslave(context.Background(), &scan.SlaveDescriptor{URL: "10.0.0.1:7331"}); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	err := engine.Enslave(context.Background(), &scan.SlaveDescriptor{URL: "10.0.0.2:7331"})
	if err == nil || !strings.Contains(err.Error(), "limit") {
		t.Fatalf("expected the slave limit to hold, got %v\n", err)
	}
}

func TestEnslaveRejectsBusySlave(t *testing.T) {
	client := &mock.SlaveClient{}
	client.ScanFn = func(ctx context.Context, opts map[string]interface{}) (bool, error) {
		return false, nil
	}
	engine := newEngine(t, framework.WithClients(func(slave *scan.SlaveDescriptor) scan.SlaveClient {
		return client
	}))

	err := engine.Enslave(context.Background(), &scan.SlaveDescriptor{URL: "10.0.0.1:7331"})
	if err == nil {
		t.Fatalf("expected enslavement of a busy worker to fail\n")
	}
	if got := engine.Slaves(); len(got) != 0 {
		t.Fatalf("a rejected worker must not be registered, got %v\n", got)
	}
}

func TestAddIssueDeduplicatesByDigest(t *testing.T) {
	engine := newEngine(t)

	engine.AddIssue(&scan.Issue{Digest: "deadbeef", Name: "XSS"})
	engine.AddIssue(&scan.Issue{Digest: "deadbeef", Name: "XSS again"})
	engine.AddIssue(&scan.Issue{Digest: "cafebabe", Name: "SQLi"})

	progress, err := engine.Progress(context.Background(), &scan.ProgressQuery{Issues: true})
	if err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if len(progress.Issues) != 2 {
		t.Fatalf("expected 2 unique issues got %d\n", len(progress.Issues))
	}
}

func TestErrorsOffset(t *testing.T) {
	engine := newEngine(t)
	engine.AddError("first")
	engine.AddError("second")
	engine.AddError("third")

	errs, err := engine.Errors(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if len(errs) != 2 || errs[0] != "second" {
		t.Fatalf("unexpected error window %v\n", errs)
	}

	errs, err = engine.Errors(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if len(errs) != 0 {
		t.Fatalf("expected empty window past the end, got %v\n", errs)
	}
}

func TestReportAsFormats(t *testing.T) {
	engine := newEngine(t)
	engine.AddIssue(&scan.Issue{Digest: "deadbeef", Name: "XSS"})

	raw, err := engine.ReportAs(context.Background(), "json")
	if err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("json report does not decode: %s\n", err)
	}
	if decoded["version"] != framework.Version {
		t.Fatalf("unexpected report %#v\n", decoded)
	}

	raw, err = engine.ReportAs(context.Background(), "yaml")
	if err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	decoded = nil
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("yaml report does not decode: %s\n", err)
	}

	if _, err := engine.ReportAs(context.Background(), "pdf"); !errors.Is(err, scan.ErrUnknownFormat) {
		t.Fatalf("expected unknown format error got %v\n", err)
	}
}

func TestPageQueueSnapshot(t *testing.T) {
	engine := newEngine(t)

	if err := engine.UpdatePageQueue([]string{"/a", "/b", "/a"}); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if err := engine.UpdatePageQueue([]string{"/b", "/c"}); err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}

	queue := engine.PageQueue()
	if len(queue) != 3 || queue[0] != "/a" || queue[2] != "/c" {
		t.Fatalf("expected deduplicated queue in order, got %v\n", queue)
	}

	queue[0] = "/mutated"
	if engine.PageQueue()[0] != "/a" {
		t.Fatalf("mutating the snapshot leaked into the queue\n")
	}
}

func TestProgressTracksAuditedPages(t *testing.T) {
	engine := newEngine(t)
	engine.PageAudited("http://example.test/")
	engine.PageAudited("http://example.test/login")

	progress, err := engine.Progress(context.Background(), &scan.ProgressQuery{Statistics: true})
	if err != nil {
		t.Fatalf("unexpected error: %s\n", err)
	}
	if progress.Statistics == nil || progress.Statistics.AuditedPages != 2 {
		t.Fatalf("unexpected statistics %#v\n", progress.Statistics)
	}
	if progress.Statistics.CurrentPage != "http://example.test/login" {
		t.Fatalf("expected last audited page to be current, got %s\n", progress.Statistics.CurrentPage)
	}
}
