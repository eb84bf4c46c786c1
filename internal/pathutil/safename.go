package pathutil

import "strings"

// DefaultName replaces a name that sanitizes to nothing.
const DefaultName = "upload-file"

// SafeName lower-cases name, maps every byte outside [a-z0-9.-] to '-',
// collapses runs of '-' and trims a single leading and trailing '-'. An empty
// result becomes DefaultName.
func SafeName(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(lower))
	prevDash := false
	for _, r := range lower {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-'
		if !ok {
			r = '-'
		}
		if r == '-' {
			if prevDash {
				continue
			}
			prevDash = true
		} else {
			prevDash = false
		}
		b.WriteRune(r)
	}
	out := strings.TrimSuffix(strings.TrimPrefix(b.String(), "-"), "-")
	if out == "" {
		return DefaultName
	}
	return out
}
