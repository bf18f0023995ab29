package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/magictoy/arachni/pkg/rpc"
)

// IsAsync classifies dispatcher methods for the transport; dispatch may
// spawn and probe a fresh process when the pool is drained.
func IsAsync(handler, method string) bool {
	return handler == "service" && method == "dispatch"
}

// RegisterHandlers installs the dispatcher's RPC surface.
func (s *Service) RegisterHandlers(srv *rpc.Server) {
	srv.ClassifyAsync(IsAsync)
	srv.Register("service", map[string]rpc.HandlerFunc{
		"dispatch": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var in struct {
				CallerURL string `json:"caller_url"`
			}
			if len(params) > 0 {
				if err := json.Unmarshal(params, &in); err != nil {
					return nil, err
				}
			}
			return s.Dispatch(ctx, in.CallerURL)
		},
		"alive": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return true, s.Alive(ctx)
		},
		"pool": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.PoolSize(), nil
		},
	})
}
