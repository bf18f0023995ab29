package instance

import (
	"context"
	"encoding/json"

	"github.com/magictoy/arachni/pkg/rpc"
)

// asyncMethods are the operations the transport must serve without a
// deadline: they suspend on remote instances or on engine startup.
var asyncMethods = map[string]struct{}{
	"service.scan":                {},
	"service.pause":               {},
	"service.resume":              {},
	"service.progress":            {},
	"service.errors":              {},
	"service.abort_and_report":    {},
	"service.abort_and_report_as": {},
}

// IsAsync classifies a method as asynchronous for the transport.
func IsAsync(handler, method string) bool {
	_, ok := asyncMethods[handler+"."+method]
	return ok
}

type moduleManager interface {
	AvailableModules() []string
	LoadedModules() []string
}

type pluginManager interface {
	AvailablePlugins() []string
	LoadedPlugins() []string
}

type crawler interface {
	PageQueue() []string
}

// RegisterHandlers installs the named handler objects on the transport
// and supplies the async classification predicate.
func (s *Service) RegisterHandlers(srv *rpc.Server) {
	srv.ClassifyAsync(IsAsync)
	srv.Register("service", s.serviceMethods())
	srv.Register("framework", s.frameworkMethods())
	srv.Register("spider", s.spiderMethods())
	srv.Register("opts", s.optsMethods())
	srv.Register("modules", s.moduleMethods())
	srv.Register("plugins", s.pluginMethods())
}

func decodeParams(params json.RawMessage, out interface{}) error {
	if len(params) == 0 {
		return nil
	}
	return json.Unmarshal(params, out)
}

func (s *Service) serviceMethods() map[string]rpc.HandlerFunc {
	return map[string]rpc.HandlerFunc{
		"scan": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var opts map[string]interface{}
			if err := decodeParams(params, &opts); err != nil {
				return nil, err
			}
			return s.Scan(ctx, opts)
		},
		"progress": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var opts map[string]interface{}
			if err := decodeParams(params, &opts); err != nil {
				return nil, err
			}
			return s.Progress(ctx, opts)
		},
		"pause": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return true, s.Pause(ctx)
		},
		"resume": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return true, s.Resume(ctx)
		},
		"status": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.Status(ctx)
		},
		"busy": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.Busy(ctx)
		},
		"errors": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var in struct {
				Offset int `json:"offset"`
			}
			if err := decodeParams(params, &in); err != nil {
				return nil, err
			}
			return s.Errors(ctx, in.Offset)
		},
		"report": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.Report(ctx)
		},
		"report_as": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var in struct {
				Name string `json:"name"`
			}
			if err := decodeParams(params, &in); err != nil {
				return nil, err
			}
			data, err := s.ReportAs(ctx, in.Name)
			return string(data), err
		},
		"auditstore": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.AuditStore(ctx)
		},
		"abort_and_report": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.AbortAndReport(ctx)
		},
		"abort_and_report_as": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var in struct {
				Name string `json:"name"`
			}
			if err := decodeParams(params, &in); err != nil {
				return nil, err
			}
			data, err := s.AbortAndReportAs(ctx, in.Name)
			return string(data), err
		},
		"shutdown": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			// detach from the request context: shutting the transport
			// down cancels in-flight requests, this one included
			return true, s.Shutdown(context.WithoutCancel(ctx))
		},
		"alive": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.Alive(ctx)
		},
	}
}

func (s *Service) frameworkMethods() map[string]rpc.HandlerFunc {
	return map[string]rpc.HandlerFunc{
		"busy": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.framework.Busy(), nil
		},
		"status": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.framework.Status(), nil
		},
		"self_url": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.framework.SelfURL(), nil
		},
	}
}

// spiderMethods expose the crawl side of the engine: the seed target,
// the page queue and the sitemap it accumulates into.
func (s *Service) spiderMethods() map[string]rpc.HandlerFunc {
	methods := map[string]rpc.HandlerFunc{
		"url": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.opts.URL(), nil
		},
		"update_page_queue": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var in struct {
				Pages []string `json:"pages"`
			}
			if err := decodeParams(params, &in); err != nil {
				return nil, err
			}
			return true, s.framework.UpdatePageQueue(in.Pages)
		},
	}
	if c, ok := s.framework.(crawler); ok {
		methods["sitemap"] = func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return c.PageQueue(), nil
		}
	}
	return methods
}

func (s *Service) optsMethods() map[string]rpc.HandlerFunc {
	return map[string]rpc.HandlerFunc{
		"get": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var in struct {
				Key string `json:"key"`
			}
			if err := decodeParams(params, &in); err != nil {
				return nil, err
			}
			v, _ := s.opts.Get(in.Key)
			return v, nil
		},
		"set": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var in map[string]interface{}
			if err := decodeParams(params, &in); err != nil {
				return nil, err
			}
			s.opts.SetMany(in)
			return true, nil
		},
		"snapshot": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return s.opts.Snapshot(), nil
		},
	}
}

func (s *Service) moduleMethods() map[string]rpc.HandlerFunc {
	methods := map[string]rpc.HandlerFunc{
		"load": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var in struct {
				Names []string `json:"names"`
			}
			if err := decodeParams(params, &in); err != nil {
				return nil, err
			}
			return true, s.framework.LoadModules(in.Names)
		},
	}
	if mm, ok := s.framework.(moduleManager); ok {
		methods["available"] = func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return mm.AvailableModules(), nil
		}
		methods["loaded"] = func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return mm.LoadedModules(), nil
		}
	}
	return methods
}

func (s *Service) pluginMethods() map[string]rpc.HandlerFunc {
	methods := map[string]rpc.HandlerFunc{
		"load": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var in map[string]map[string]interface{}
			if err := decodeParams(params, &in); err != nil {
				return nil, err
			}
			return true, s.framework.LoadPlugins(in)
		},
	}
	if pm, ok := s.framework.(pluginManager); ok {
		methods["available"] = func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return pm.AvailablePlugins(), nil
		}
		methods["loaded"] = func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return pm.LoadedPlugins(), nil
		}
	}
	return methods
}
