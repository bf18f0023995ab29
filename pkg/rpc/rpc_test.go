package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/magictoy/arachni/pkg/rpc"
)

func startServer(t *testing.T, token string, handlers map[string]map[string]rpc.HandlerFunc) *rpc.Server {
	t.Helper()
	srv := rpc.NewServer("127.0.0.1:0", token)
	for name, methods := range handlers {
		srv.Register(name, methods)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("error listening: %s\n", err)
	}
	go srv.Serve()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func TestCall(t *testing.T) {
	handlers := map[string]map[string]rpc.HandlerFunc{
		"service": {
			"alive": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
				return true, nil
			},
			"echo": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
				var in map[string]interface{}
				if err := json.Unmarshal(params, &in); err != nil {
					return nil, err
				}
				return in, nil
			},
		},
	}
	srv := startServer(t, "secret", handlers)
	client := rpc.NewClient(srv.Addr(), "secret")

	var alive bool
	if err := client.Call(context.Background(), "service", "alive", nil, &alive); err != nil {
		t.Fatalf("error calling alive: %s\n", err)
	}
	if !alive {
		t.Fatalf("expected alive true\n")
	}

	var echoed map[string]interface{}
	err := client.Call(context.Background(), "service", "echo", map[string]interface{}{"url": "http://example.test/"}, &echoed)
	if err != nil {
		t.Fatalf("error calling echo: %s\n", err)
	}
	if echoed["url"] != "http://example.test/" {
		t.Fatalf("expected echoed url, got %#v\n", echoed)
	}
}

func TestCallBadToken(t *testing.T) {
	handlers := map[string]map[string]rpc.HandlerFunc{
		"service": {
			"alive": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
				return true, nil
			},
		},
	}
	srv := startServer(t, "secret", handlers)
	client := rpc.NewClient(srv.Addr(), "wrong")

	err := client.Call(context.Background(), "service", "alive", nil, nil)
	if err == nil {
		t.Fatalf("expected auth failure\n")
	}
	if !rpc.IsProtocolError(err) {
		t.Fatalf("expected protocol error, got %v\n", err)
	}
}

func TestCallUnknownMethod(t *testing.T) {
	srv := startServer(t, "secret", map[string]map[string]rpc.HandlerFunc{"service": {}})
	client := rpc.NewClient(srv.Addr(), "secret")

	err := client.Call(context.Background(), "service", "nope", nil, nil)
	if !rpc.IsProtocolError(err) {
		t.Fatalf("expected protocol error for unknown method, got %v\n", err)
	}
}

func TestCallHandlerError(t *testing.T) {
	handlers := map[string]map[string]rpc.HandlerFunc{
		"service": {
			"boom": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
				return nil, errors.New("engine exploded")
			},
		},
	}
	srv := startServer(t, "secret", handlers)
	client := rpc.NewClient(srv.Addr(), "secret")

	err := client.Call(context.Background(), "service", "boom", nil, nil)
	if !rpc.IsProtocolError(err) {
		t.Fatalf("expected protocol error, got %v\n", err)
	}
}

func TestCallUnreachable(t *testing.T) {
	client := rpc.NewClient("127.0.0.1:1", "secret", rpc.WithCallTimeout(time.Second))

	err := client.Call(context.Background(), "service", "alive", nil, nil)
	if err == nil {
		t.Fatalf("expected transport error\n")
	}
	if rpc.IsProtocolError(err) {
		t.Fatalf("transport failure must not classify as protocol error: %v\n", err)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	srv := startServer(t, "secret", map[string]map[string]rpc.HandlerFunc{})
	ctx := context.Background()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("error on first shutdown: %s\n", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("error on repeated shutdown: %s\n", err)
	}
}
