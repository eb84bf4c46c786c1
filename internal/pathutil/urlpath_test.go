package pathutil

import (
	"strings"
	"testing"
)

func TestTraversalRisk(t *testing.T) {
	cases := map[string]bool{
		"/":                 false,
		"/listings/villa-1": false,
		"/assets//app.js":   false,
		"/...":              false,
		"/.well-known/x":    false,
		"/a/./b":            true,
		"/a/../b":           true,
		"..":                true,
		"/blog/.":           true,
		"/a\\..\\b":         true,
		"/img\x00.png":      true,
	}
	for in, want := range cases {
		if got := TraversalRisk(in); got != want {
			t.Errorf("TraversalRisk(%q) = %v, want %v", in, got, want)
		}
	}
}

func FuzzTraversalRisk(f *testing.F) {
	for _, s := range []string{"/a/../b", "/a/b", "..", "/...", "a\\b"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, p string) {
		if TraversalRisk(p) {
			return
		}
		if strings.ContainsAny(p, "\x00\\") {
			t.Fatalf("%q not flagged", p)
		}
		for _, seg := range strings.Split(p, "/") {
			if seg == "." || seg == ".." {
				t.Fatalf("%q has segment %q", p, seg)
			}
		}
	})
}
