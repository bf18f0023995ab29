package instance_test

import (
	"testing"

	"github.com/magictoy/arachni/services/instance"
)

func TestParseOptionsAbsent(t *testing.T) {
	opts := map[string]interface{}{}
	parsed := instance.ParseOptions(opts, "with")
	if len(parsed) != 0 {
		t.Fatalf("expected empty result got %#v\n", parsed)
	}
}

func TestParseOptionsBareName(t *testing.T) {
	opts := map[string]interface{}{"with": "issues"}
	parsed := instance.ParseOptions(opts, "with")

	v, ok := parsed["issues"]
	if !ok {
		t.Fatalf("expected issues entry\n")
	}
	if v != nil {
		t.Fatalf("expected nil value for bare name got %#v\n", v)
	}
	if _, ok := opts["with"]; ok {
		t.Fatalf("expected key to be consumed from source\n")
	}
}

func TestParseOptionsMixedList(t *testing.T) {
	opts := map[string]interface{}{
		"with": []interface{}{
			"instances",
			map[string]interface{}{"errors": float64(10)},
			map[string]interface{}{"errors": float64(20), "issues": nil},
		},
	}
	parsed := instance.ParseOptions(opts, "with")

	if _, ok := parsed["instances"]; !ok {
		t.Fatalf("expected instances entry\n")
	}
	if parsed["errors"] != float64(20) {
		t.Fatalf("expected last-seen value to win, got %#v\n", parsed["errors"])
	}
	if _, ok := parsed["issues"]; !ok {
		t.Fatalf("expected issues entry\n")
	}
	if _, ok := opts["with"]; ok {
		t.Fatalf("expected key to be consumed from source\n")
	}
}

func TestParseOptionsSingleMap(t *testing.T) {
	opts := map[string]interface{}{
		"without": map[string]interface{}{"issues": []interface{}{"deadbeef"}},
	}
	parsed := instance.ParseOptions(opts, "without")

	digests, ok := parsed["issues"].([]interface{})
	if !ok {
		t.Fatalf("expected issues digest list got %#v\n", parsed["issues"])
	}
	if len(digests) != 1 || digests[0] != "deadbeef" {
		t.Fatalf("unexpected digests %#v\n", digests)
	}
	if _, ok := opts["without"]; ok {
		t.Fatalf("expected key to be consumed from source\n")
	}
}

func TestParseOptionsStringList(t *testing.T) {
	opts := map[string]interface{}{"with": []string{"issues", "instances"}}
	parsed := instance.ParseOptions(opts, "with")
	if len(parsed) != 2 {
		t.Fatalf("expected two entries got %#v\n", parsed)
	}
}
