package content

import (
	"bytes"
	"encoding/json"
	"time"
)

// StampLayout is the ISO-8601 UTC form stored in updated_at.
const StampLayout = "2006-01-02T15:04:05.000Z"

// Snapshot is the document as of one read or write.
type Snapshot struct {
	Document json.RawMessage
	// UpdatedAt is the stored stamp, empty when no row exists and the
	// built-in default is being served.
	UpdatedAt string
	// Hash is the lowercase SHA-256 hex digest of Document.
	Hash string
}

// Updated parses UpdatedAt. It accepts StampLayout and any RFC 3339 stamp
// written by other tools.
func (s Snapshot) Updated() (time.Time, bool) {
	if s.UpdatedAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s.UpdatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Stamp formats t in StampLayout, rounding up to the next millisecond so the
// stamp is never earlier than t.
func Stamp(t time.Time) string {
	t = t.UTC()
	ms := t.Truncate(time.Millisecond)
	if ms.Before(t) {
		ms = ms.Add(time.Millisecond)
	}
	return ms.Format(StampLayout)
}

// IsObject reports whether raw is a JSON object. Arrays, scalars and null
// are not.
func IsObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return false
	}
	return json.Valid(raw)
}

// Summary counts the ordered collections of a document.
type Summary struct {
	Listings  int `json:"listings"`
	Spotlight int `json:"spotlight"`
	Blogs     int `json:"blogs"`
}

// Summarize decodes the collection arrays leniently; a missing or
// mistyped collection counts as zero.
func Summarize(doc []byte) Summary {
	var s Summary
	var top map[string]json.RawMessage
	if json.Unmarshal(doc, &top) != nil {
		return s
	}
	count := func(key string) int {
		var items []json.RawMessage
		if json.Unmarshal(top[key], &items) != nil {
			return 0
		}
		return len(items)
	}
	s.Listings = count("listings")
	s.Spotlight = count("spotlight")
	s.Blogs = count("blogs")
	return s
}
