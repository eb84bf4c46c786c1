// Package version reports what binary is running. Release builds stamp the
// package variables with -ldflags; local builds fall back to the VCS data the
// Go toolchain embeds.
package version

import (
	"fmt"
	"runtime/debug"
)

// AppName is the service name used for logs, metrics, traces and profiles.
const AppName = "lamgara-web"

// Stamped with -ldflags "-X github.com/lamgaraproperties/lamgara-web/internal/version.Version=...".
var (
	Version    = "dev"
	Commit     = "none"
	CommitDate string
	BuildDate  string
	BuildId    string
	GoVersion  string
	VCSDirty   *bool
)

type Info struct {
	AppName    string `json:"app"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	CommitDate string `json:"commit_date"`
	BuildDate  string `json:"build_date"`
	BuildId    string `json:"build_id"`
	GoVersion  string `json:"go_version"`
	VCSDirty   *bool  `json:"vcs_dirty,omitempty"`
}

// Released reports whether the binary came out of the release pipeline
// rather than a developer's go build.
func (i Info) Released() bool {
	return i.Version != "dev" && i.BuildId != ""
}

// String is the one-line banner printed by -V.
func (i Info) String() string {
	dirty := "unknown"
	if i.VCSDirty != nil {
		dirty = fmt.Sprint(*i.VCSDirty)
	}
	return fmt.Sprintf("%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%s)",
		i.AppName, i.Version, i.Commit, i.CommitDate, i.BuildId, i.BuildDate, i.GoVersion, dirty)
}

func Get() Info {
	info := Info{
		AppName:    AppName,
		Version:    Version,
		Commit:     Commit,
		CommitDate: CommitDate,
		BuildDate:  BuildDate,
		BuildId:    BuildId,
		GoVersion:  GoVersion,
		VCSDirty:   VCSDirty,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.overlayBuild(bi)
	}
	return info
}

// overlayBuild fills fields the linker left unset from the embedded build
// settings. The toolchain's Go version always wins.
func (i *Info) overlayBuild(bi *debug.BuildInfo) {
	i.GoVersion = bi.GoVersion
	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}
	if rev := settings["vcs.revision"]; rev != "" && i.Commit == "none" {
		i.Commit = rev
	}
	if at, ok := settings["vcs.time"]; ok {
		i.CommitDate = at
		if i.BuildDate == "" {
			i.BuildDate = at
		}
	}
	switch settings["vcs.modified"] {
	case "true":
		dirty := true
		i.VCSDirty = &dirty
	case "false":
		dirty := false
		i.VCSDirty = &dirty
	}
}
