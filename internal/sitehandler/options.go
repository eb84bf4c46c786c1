package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/lamgaraproperties/lamgara-web/internal/log"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

type Options struct {
	Logger log.Logger
	// SiteFS holds the built single-page app. Nil, or a tree without
	// IndexFile, puts the handler in maintenance mode.
	SiteFS fs.FS
	// FallbackFS holds the maintenance page and a plain 404 page.
	FallbackFS fs.FS

	IndexFile       string // default: "index.html"
	MaintenanceFile string // default: "maintenance.html"
	Fallback404File string // default: "404.html"
	Site404File     string // default: "404.html"

	HTMLCacheControl  string // default: "no-cache"
	AssetCacheControl string // default: "public, max-age=31536000, immutable"
	OtherCacheControl string // default: "public, max-age=3600"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	defaults := []struct {
		field *string
		value string
	}{
		{&o.IndexFile, "index.html"},
		{&o.MaintenanceFile, "maintenance.html"},
		{&o.Fallback404File, "404.html"},
		{&o.Site404File, "404.html"},
		{&o.HTMLCacheControl, "no-cache"},
		{&o.AssetCacheControl, "public, max-age=31536000, immutable"},
		{&o.OtherCacheControl, "public, max-age=3600"},
	}
	for _, d := range defaults {
		if *d.field == "" {
			*d.field = d.value
		}
	}
}

func (o *Options) validate() error {
	if o.FallbackFS == nil {
		return fmt.Errorf("%w: FallbackFS is nil", ErrInvalidOptions)
	}
	// a mispackaged binary should fail at boot, not on the first outage
	if !existsFile(o.FallbackFS, o.MaintenanceFile) {
		return fmt.Errorf("%w: %q missing from fallback FS", ErrInvalidOptions, o.MaintenanceFile)
	}
	return nil
}
