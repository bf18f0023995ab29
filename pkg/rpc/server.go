package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/magictoy/arachni/pkg/metrics"
)

const defaultSyncTimeout = time.Second * 30

// HandlerFunc serves one named RPC method. Params is the raw JSON body
// of the call, nil when the caller sent none.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// AsyncFunc classifies a method as asynchronous. Async methods are
// expected to run long (provisioning, enslavement, engine start) and
// are served without a deadline; everything else gets the sync timeout.
type AsyncFunc func(handler, method string) bool

type envelope struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Server is the instance's RPC transport. Named handler objects are
// registered as method tables and dispatched as POST /rpc/{handler}/{method}
// with shared-token bearer auth.
type Server struct {
	addr        string
	token       string
	log         zerolog.Logger
	isAsync     AsyncFunc
	syncTimeout time.Duration
	collector   *metrics.Collector

	certFile string
	keyFile  string

	mu       sync.RWMutex
	handlers map[string]map[string]HandlerFunc

	listener net.Listener
	srv      *http.Server
	down     atomic.Bool
}

type ServerOption func(*Server)

func WithLogger(log zerolog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

func WithMetrics(c *metrics.Collector) ServerOption {
	return func(s *Server) { s.collector = c }
}

func WithSyncTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.syncTimeout = d }
}

// WithTLS serves the transport over the supplied certificate pair.
func WithTLS(certFile, keyFile string) ServerOption {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

func NewServer(addr, token string, opts ...ServerOption) *Server {
	s := &Server{
		addr:        addr,
		token:       token,
		log:         zerolog.Nop(),
		syncTimeout: defaultSyncTimeout,
		isAsync:     func(string, string) bool { return false },
		handlers:    make(map[string]map[string]HandlerFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register installs a named handler object's method table. Registering
// the same name again replaces the previous table.
func (s *Server) Register(name string, methods map[string]HandlerFunc) {
	s.mu.Lock()
	s.handlers[name] = methods
	s.mu.Unlock()
}

// ClassifyAsync installs the predicate the transport consults to decide
// whether a method call may run without a deadline.
func (s *Server) ClassifyAsync(fn AsyncFunc) {
	s.isAsync = fn
}

// Listen binds the transport address. Must be called before Serve; kept
// separate so callers can read Addr when binding port 0.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = l

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc/{handler}/{method}", s.dispatch)
	if s.collector != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.collector.Registry(), promhttp.HandlerOpts{}))
	}
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: time.Second * 10}
	return nil
}

// Addr returns the bound address, empty before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve blocks until the server is shut down.
func (s *Server) Serve() error {
	var err error
	if s.certFile != "" {
		err = s.srv.ServeTLS(s.listener, s.certFile, s.keyFile)
	} else {
		err = s.srv.Serve(s.listener)
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown stops the transport. Safe to call repeatedly and before
// Listen; later calls are no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.down.CompareAndSwap(false, true) {
		return nil
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	supplied, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.token)) == 1
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	handler := r.PathValue("handler")
	method := r.PathValue("method")

	if !s.authorized(r) {
		s.reply(w, http.StatusUnauthorized, envelope{Error: "invalid token"})
		s.count(handler, method, "unauthorized")
		return
	}

	s.mu.RLock()
	methods, ok := s.handlers[handler]
	s.mu.RUnlock()
	if !ok {
		s.reply(w, http.StatusNotFound, envelope{Error: "unknown handler " + handler})
		s.count(handler, method, "not_found")
		return
	}
	fn, ok := methods[method]
	if !ok {
		s.reply(w, http.StatusNotFound, envelope{Error: "unknown method " + handler + "." + method})
		s.count(handler, method, "not_found")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<22))
	if err != nil {
		s.reply(w, http.StatusBadRequest, envelope{Error: "unreadable request body"})
		s.count(handler, method, "bad_request")
		return
	}

	ctx := r.Context()
	if !s.isAsync(handler, method) {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.syncTimeout)
		defer cancel()
	}

	var params json.RawMessage
	if len(body) > 0 {
		params = json.RawMessage(body)
	}

	start := time.Now()
	result, err := fn(ctx, params)
	if s.collector != nil {
		s.collector.RPCDuration.WithLabelValues(handler, method).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.log.Warn().Err(err).Str("handler", handler).Str("method", method).Msg("rpc call failed")
		s.reply(w, http.StatusInternalServerError, envelope{Error: err.Error()})
		s.count(handler, method, "error")
		return
	}

	s.reply(w, http.StatusOK, envelope{Result: result})
	s.count(handler, method, "ok")
}

func (s *Server) reply(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.log.Warn().Err(err).Msg("failed to encode rpc response")
	}
}

func (s *Server) count(handler, method, status string) {
	if s.collector != nil {
		s.collector.RPCRequests.WithLabelValues(handler, method, status).Inc()
	}
}
