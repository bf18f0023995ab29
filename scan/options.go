package scan

import "sync"

// Options is the shared scan configuration an instance owns. One is
// built per process at bootstrap; the facade pushes normalized scan
// options into it and the engine reads them back. Exposed remotely as
// the "opts" handler.
type Options struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

func NewOptions() *Options {
	return &Options{values: make(map[string]interface{})}
}

func (o *Options) Set(key string, value interface{}) {
	o.mu.Lock()
	o.values[key] = value
	o.mu.Unlock()
}

// SetMany merges values in, overwriting existing keys.
func (o *Options) SetMany(values map[string]interface{}) {
	o.mu.Lock()
	for k, v := range values {
		o.values[k] = v
	}
	o.mu.Unlock()
}

func (o *Options) Get(key string) (interface{}, bool) {
	o.mu.RLock()
	v, ok := o.values[key]
	o.mu.RUnlock()
	return v, ok
}

// URL returns the mandatory scan target, empty if unset.
func (o *Options) URL() string {
	v, ok := o.Get("url")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Snapshot copies the current values, safe for the caller to mutate.
func (o *Options) Snapshot() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]interface{}, len(o.values))
	for k, v := range o.values {
		out[k] = v
	}
	return out
}
