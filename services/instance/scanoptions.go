package instance

import (
	"strconv"
	"strings"

	"github.com/magictoy/arachni/scan"
)

// scanRequest is the typed form of a raw scan options map after
// normalization and validation.
type scanRequest struct {
	Grid     bool
	Spawns   int
	Slaves   []*scan.SlaveDescriptor
	Modules  []string
	Plugins  map[string]map[string]interface{}
	Pages    []string
	Elements []string

	// Rest is pushed into the shared configuration object untouched.
	Rest map[string]interface{}
}

// parseScanRequest normalizes incoming option keys to a canonical key
// space and validates the distribution settings.
func parseScanRequest(opts map[string]interface{}) (*scanRequest, error) {
	norm := normalizeKeys(opts)

	req := &scanRequest{
		Grid:    boolValue(norm["grid"]),
		Spawns:  intValue(norm["spawns"]),
		Plugins: pluginValue(norm["plugins"]),
	}

	if req.Grid && req.Spawns <= 0 {
		return nil, scan.ErrInvalidSpawns
	}

	_, restricted := norm["restrict_paths"]
	if restricted && (req.Grid || req.Spawns > 0) {
		return nil, scan.ErrRestrictedOpts
	}

	req.Slaves = slaveValue(norm["slaves"])
	req.Pages = append(stringListValue(norm["pages"]), stringListValue(norm["extend_paths"])...)
	req.Elements = stringListValue(norm["elements"])

	// either spelling is accepted for the module name list
	req.Modules = stringListValue(norm["modules"])
	if len(req.Modules) == 0 {
		req.Modules = stringListValue(norm["checks"])
	}

	for _, consumed := range []string{"grid", "spawns", "plugins", "slaves", "pages", "extend_paths", "elements", "modules", "checks"} {
		delete(norm, consumed)
	}
	req.Rest = norm

	return req, nil
}

// normalizeKeys lowercases option keys so callers may use any casing.
func normalizeKeys(opts map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(opts))
	for k, v := range opts {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

func boolValue(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		return err == nil && parsed
	}
	return false
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}

func stringListValue(v interface{}) []string {
	switch list := v.(type) {
	case string:
		return []string{list}
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// pluginValue coerces a bare list of plugin names into a mapping from
// name to an empty option set.
func pluginValue(v interface{}) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{})
	switch plugins := v.(type) {
	case string:
		out[plugins] = map[string]interface{}{}
	case []string:
		for _, name := range plugins {
			out[name] = map[string]interface{}{}
		}
	case []interface{}:
		for _, item := range plugins {
			if name, ok := item.(string); ok {
				out[name] = map[string]interface{}{}
			}
		}
	case map[string]interface{}:
		for name, popts := range plugins {
			if m, ok := popts.(map[string]interface{}); ok {
				out[name] = m
				continue
			}
			out[name] = map[string]interface{}{}
		}
	}
	return out
}

func slaveValue(v interface{}) []*scan.SlaveDescriptor {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]*scan.SlaveDescriptor, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		url, _ := m["url"].(string)
		token, _ := m["token"].(string)
		if url == "" {
			continue
		}
		out = append(out, &scan.SlaveDescriptor{URL: url, Token: token})
	}
	return out
}
