package content

import (
	"testing"
	"time"
)

func TestStamp(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		in   time.Time
		want string
	}{
		{base, "2026-03-01T10:00:00.000Z"},
		{base.Add(time.Millisecond), "2026-03-01T10:00:00.001Z"},
		{base.Add(time.Nanosecond), "2026-03-01T10:00:00.001Z"},
		{base.Add(999999999 * time.Nanosecond), "2026-03-01T10:00:01.000Z"},
		{base.In(time.FixedZone("IST", 5*3600+1800)), "2026-03-01T10:00:00.000Z"},
	}
	for _, tc := range cases {
		if got := Stamp(tc.in); got != tc.want {
			t.Errorf("Stamp(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestStamp_NeverEarlier(t *testing.T) {
	in := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	got, err := time.Parse(StampLayout, Stamp(in))
	if err != nil {
		t.Fatal(err)
	}
	if got.Before(in) {
		t.Fatalf("stamp %s is before %s", got, in)
	}
}

func TestIsObject(t *testing.T) {
	for in, want := range map[string]bool{
		`{}`:              true,
		` {"a":[1,2]} `:   true,
		`[]`:              false,
		`"not-an-object"`: false,
		`null`:            false,
		`42`:              false,
		`{"a":`:           false,
		``:                false,
	} {
		if got := IsObject([]byte(in)); got != want {
			t.Errorf("IsObject(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSummarize(t *testing.T) {
	doc := []byte(`{"listings":[{},{}],"spotlight":[{}],"blogs":"oops"}`)
	got := Summarize(doc)
	if got != (Summary{Listings: 2, Spotlight: 1, Blogs: 0}) {
		t.Fatalf("Summarize = %+v", got)
	}
	if Summarize([]byte(`[]`)) != (Summary{}) {
		t.Fatal("non-object should summarize to zero")
	}
}

func TestSnapshot_Updated(t *testing.T) {
	s := Snapshot{UpdatedAt: "2026-03-01T10:00:00.250Z"}
	got, ok := s.Updated()
	if !ok || !got.Equal(time.Date(2026, 3, 1, 10, 0, 0, 250e6, time.UTC)) {
		t.Fatalf("Updated = %s, %v", got, ok)
	}
	if _, ok := (Snapshot{UpdatedAt: "yesterday"}).Updated(); ok {
		t.Fatal("unparsable stamp should report false")
	}
}
