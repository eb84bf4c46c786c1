// Package webassets holds files compiled into the server binary: the
// built-in content document used to seed an empty database and the
// maintenance and 404 pages served when no front-end build is present.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed fallback defaults/content.json
var embedded embed.FS

// FallbackFS holds maintenance.html and 404.html.
func FallbackFS() fs.FS {
	sub, err := fs.Sub(embedded, "fallback")
	if err != nil {
		panic(fmt.Errorf("webassets: fallback subfs: %w", err))
	}
	return sub
}

// DefaultContent returns the built-in content document. The returned slice
// is a fresh copy on each call.
func DefaultContent() []byte {
	b, err := embedded.ReadFile("defaults/content.json")
	if err != nil {
		panic(fmt.Errorf("webassets: default content: %w", err))
	}
	return b
}
