package scan_test

import (
	"testing"

	"github.com/magictoy/arachni/scan"
)

func TestOptionsSetMany(t *testing.T) {
	opts := scan.NewOptions()
	opts.Set("url", "http://example.test/")
	opts.SetMany(map[string]interface{}{"depth": 5, "url": "http://other.test/"})

	if opts.URL() != "http://other.test/" {
		t.Fatalf("expected later writes to win, got %s\n", opts.URL())
	}
	if v, ok := opts.Get("depth"); !ok || v != 5 {
		t.Fatalf("expected depth 5 got %v %v\n", v, ok)
	}
}

func TestOptionsSnapshotIsDetached(t *testing.T) {
	opts := scan.NewOptions()
	opts.Set("url", "http://example.test/")

	snap := opts.Snapshot()
	snap["url"] = "http://mutated.test/"

	if opts.URL() != "http://example.test/" {
		t.Fatalf("mutating a snapshot leaked into the store\n")
	}
}
