package instance_test

import (
	"context"
	"testing"
	"time"

	instanceclient "github.com/magictoy/arachni/clients/instance"
	"github.com/magictoy/arachni/mock"
	"github.com/magictoy/arachni/pkg/rpc"
	"github.com/magictoy/arachni/scan"
	"github.com/magictoy/arachni/services/instance"
)

func TestIsAsync(t *testing.T) {
	async := []string{"scan", "pause", "resume", "progress", "errors", "abort_and_report", "abort_and_report_as"}
	for _, method := range async {
		if !instance.IsAsync("service", method) {
			t.Fatalf("expected service.%s to be async\n", method)
		}
	}
	sync := []string{"status", "busy", "alive", "shutdown"}
	for _, method := range sync {
		if instance.IsAsync("service", method) {
			t.Fatalf("expected service.%s to be sync\n", method)
		}
	}
	if instance.IsAsync("framework", "busy") {
		t.Fatalf("expected framework.busy to be sync\n")
	}
}

// TestHandlersOverTransport drives the registered handlers through a
// live transport with the production client.
func TestHandlersOverTransport(t *testing.T) {
	fw := &mock.Framework{}
	service := newTestService(t, fw, nil)

	srv := rpc.NewServer("127.0.0.1:0", "t0ken")
	if err := srv.Listen(); err != nil {
		t.Fatalf("failed to listen: %s\n", err)
	}
	service.RegisterHandlers(srv)
	service.SetTransport(srv)
	go srv.Serve()
	defer srv.Shutdown(context.Background())

	client := instanceclient.New(srv.Addr(), "t0ken")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := client.Alive(ctx); err != nil {
		t.Fatalf("alive failed: %s\n", err)
	}

	accepted, err := client.Scan(ctx, map[string]interface{}{"url": "http://example.test/"})
	if err != nil {
		t.Fatalf("scan failed: %s\n", err)
	}
	if !accepted {
		t.Fatalf("expected scan to be accepted\n")
	}
	if !fw.RunInvoked {
		t.Fatalf("expected the engine to be started\n")
	}

	fw.BusyFn = func() bool { return true }
	progress, err := client.Progress(ctx, map[string]interface{}{"with": []interface{}{"instances"}})
	if err != nil {
		t.Fatalf("progress failed: %s\n", err)
	}
	if busy, _ := progress["busy"].(bool); !busy {
		t.Fatalf("expected a busy progress report, got %#v\n", progress)
	}
	if _, ok := progress["instances"]; !ok {
		t.Fatalf("expected an instances entry, got %#v\n", progress)
	}

	if err := client.Pause(ctx); err != nil {
		t.Fatalf("pause failed: %s\n", err)
	}
	if !fw.PauseInvoked {
		t.Fatalf("expected the engine to be paused\n")
	}

	bad := instanceclient.New(srv.Addr(), "wrong")
	if err := bad.Alive(ctx); !rpc.IsProtocolError(err) {
		t.Fatalf("expected a bad token to be a protocol error, got %v\n", err)
	}
}

func TestSpiderHandler(t *testing.T) {
	fw := &mock.Framework{}
	var queued []string
	fw.UpdatePageQueueFn = func(pages []string) error {
		queued = append(queued, pages...)
		return nil
	}
	fw.PageQueueFn = func() []string { return queued }
	service := newTestService(t, fw, nil)

	srv := rpc.NewServer("127.0.0.1:0", "t0ken")
	if err := srv.Listen(); err != nil {
		t.Fatalf("failed to listen: %s\n", err)
	}
	service.RegisterHandlers(srv)
	go srv.Serve()
	defer srv.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	raw := rpc.NewClient(srv.Addr(), "t0ken")

	pages := map[string]interface{}{"pages": []string{"/admin", "/login"}}
	if err := raw.Call(ctx, "spider", "update_page_queue", pages, nil); err != nil {
		t.Fatalf("update_page_queue failed: %s\n", err)
	}
	if !fw.UpdatePageQueueInvoked || len(queued) != 2 {
		t.Fatalf("pages did not reach the engine, got %v\n", queued)
	}

	var sitemap []string
	if err := raw.Call(ctx, "spider", "sitemap", nil, &sitemap); err != nil {
		t.Fatalf("sitemap failed: %s\n", err)
	}
	if len(sitemap) != 2 || sitemap[0] != "/admin" {
		t.Fatalf("unexpected sitemap %v\n", sitemap)
	}

	var target string
	if err := raw.Call(ctx, "spider", "url", nil, &target); err != nil {
		t.Fatalf("url failed: %s\n", err)
	}
	if target != "" {
		t.Fatalf("expected no target before a scan, got %q\n", target)
	}
}

func TestHandlersScanValidationCrossesTransport(t *testing.T) {
	fw := &mock.Framework{}
	service := newTestService(t, fw, nil)

	srv := rpc.NewServer("127.0.0.1:0", "t0ken")
	if err := srv.Listen(); err != nil {
		t.Fatalf("failed to listen: %s\n", err)
	}
	service.RegisterHandlers(srv)
	go srv.Serve()
	defer srv.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	raw := rpc.NewClient(srv.Addr(), "t0ken")
	err := raw.Call(ctx, "service", "scan", map[string]interface{}{"grid": true, "spawns": 0}, nil)
	if !rpc.IsProtocolError(err) {
		t.Fatalf("expected a validation failure across the wire, got %v\n", err)
	}
	if fw.RunInvoked {
		t.Fatalf("the engine must not start on invalid options\n")
	}
}

var _ scan.InstanceService = (*instance.Service)(nil)
