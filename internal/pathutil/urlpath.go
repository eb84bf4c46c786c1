package pathutil

import "strings"

// TraversalRisk reports whether a URL path could name something outside the
// tree it is resolved against: a NUL or backslash anywhere, or a "." or ".."
// segment. Empty segments from doubled slashes are allowed.
func TraversalRisk(urlPath string) bool {
	if strings.ContainsAny(urlPath, "\x00\\") {
		return true
	}
	rest := urlPath
	for rest != "" {
		var seg string
		seg, rest, _ = strings.Cut(rest, "/")
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}
