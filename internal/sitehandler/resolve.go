package sitehandler

import (
	"io/fs"
	"path"
	"strings"

	"github.com/lamgaraproperties/lamgara-web/internal/pathutil"
)

type resolution int

const (
	resolveMissing resolution = iota
	resolveFile
	resolveRedirect
	// resolveApp means the path is a client-side route of the app.
	resolveApp
)

// resolvePath maps a URL path onto fsys. For resolveFile name is the file to
// serve; for resolveRedirect it is the canonical URL path.
func resolvePath(urlPath string, fsys fs.FS) (name string, res resolution) {
	p := urlPath
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if pathutil.TraversalRisk(p) {
		return "", resolveMissing
	}

	dir := strings.HasSuffix(p, "/")
	clean := path.Clean(p)
	rel := strings.TrimPrefix(clean, "/")

	if clean == "/" || dir {
		idx := path.Join(rel, "index.html")
		if existsFile(fsys, idx) {
			return idx, resolveFile
		}
		return "", resolveApp
	}

	if existsFile(fsys, rel) {
		return rel, resolveFile
	}
	if path.Ext(clean) != "" {
		return "", resolveMissing
	}
	if existsFile(fsys, rel+"/index.html") {
		return clean + "/", resolveRedirect
	}
	return "", resolveApp
}

func existsFile(fsys fs.FS, name string) bool {
	if fsys == nil || name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
