package instance

// ParseOptions normalizes the heterogeneous value found under key in a
// progress request. The value may be absent, a bare name, a list mixing
// bare names and maps, or a single map. Bare names become entries with
// a nil value; maps merge in encounter order with later entries winning
// on key collision. The key is always removed from opts so downstream
// code never sees the raw shape.
func ParseOptions(opts map[string]interface{}, key string) map[string]interface{} {
	raw, ok := opts[key]
	delete(opts, key)

	out := make(map[string]interface{})
	if !ok || raw == nil {
		return out
	}

	switch v := raw.(type) {
	case string:
		out[v] = nil
	case []string:
		for _, name := range v {
			out[name] = nil
		}
	case []interface{}:
		for _, item := range v {
			switch entry := item.(type) {
			case string:
				out[entry] = nil
			case map[string]interface{}:
				for k, val := range entry {
					out[k] = val
				}
			}
		}
	case map[string]interface{}:
		for k, val := range v {
			out[k] = val
		}
	}
	return out
}
