package webassets

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"strings"
	"testing"
)

func TestFallbackFS_Pages(t *testing.T) {
	fsys := FallbackFS()

	for name, want := range map[string]string{
		"maintenance.html": "maintenance",
		"404.html":         "not found",
	} {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(strings.ToLower(string(data)), want) {
			t.Errorf("%s does not mention %q", name, want)
		}
	}
}

func TestFallbackFS_DoesNotExposeDefaults(t *testing.T) {
	if _, err := fs.Stat(FallbackFS(), "content.json"); err == nil {
		t.Fatal("content.json reachable through fallback FS")
	}
}

func TestDefaultContent_IsObject(t *testing.T) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(DefaultContent(), &doc); err != nil {
		t.Fatalf("default content is not a JSON object: %v", err)
	}
	for _, key := range []string{"brand", "navItems", "propertyTypes", "hero", "contact", "listings", "spotlight", "blogs"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("default content missing %q", key)
		}
	}
}

func TestDefaultContent_Collections(t *testing.T) {
	var doc struct {
		Brand    string `json:"brand"`
		Listings []struct {
			ID     string   `json:"id"`
			Images []string `json:"images"`
		} `json:"listings"`
		Spotlight []struct {
			ID string `json:"id"`
		} `json:"spotlight"`
		Blogs []struct {
			ID string `json:"id"`
		} `json:"blogs"`
	}
	if err := json.Unmarshal(DefaultContent(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Brand != "Lamgara Properties" {
		t.Errorf("brand = %q", doc.Brand)
	}
	if len(doc.Listings) != 4 || len(doc.Spotlight) != 4 || len(doc.Blogs) != 2 {
		t.Fatalf("collection sizes = %d/%d/%d, want 4/4/2", len(doc.Listings), len(doc.Spotlight), len(doc.Blogs))
	}
	if doc.Listings[0].ID != "l1" {
		t.Errorf("first listing id = %q, want l1", doc.Listings[0].ID)
	}
}

func TestDefaultContent_CopyPerCall(t *testing.T) {
	a := DefaultContent()
	a[0] = 'X'
	if b := DefaultContent(); bytes.Equal(a, b) {
		t.Fatal("DefaultContent returned shared backing array")
	}
}
