package log

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// pcCarrier is implemented by xerrors.Wrap results.
type pcCarrier interface{ PC() uintptr }

// stackCarrier is implemented by xerrors.New and Newf results.
type stackCarrier interface{ StackPCs() []uintptr }

// errorAttrs describes err for an error record. error_links is added only
// when maxLinks is positive.
func errorAttrs(err error, maxLinks int) []any {
	surface, root := classifyTypes(err)
	kv := []any{"err", err, "error_type", surface, "cause_type", root}
	if chain := errorChain(err); len(chain) > 0 {
		kv = append(kv, "error_chain", chain)
	}
	if maxLinks > 0 {
		kv = append(kv, "error_links", chainLinks(err, maxLinks))
	}
	return kv
}

// errorChain lists the messages down the Unwrap chain, then the members of
// a top-level errors.Join. Consecutive duplicates collapse.
func errorChain(err error) []string {
	var out []string
	push := func(msg string) {
		if len(out) == 0 || out[len(out)-1] != msg {
			out = append(out, msg)
		}
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		push(e.Error())
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range j.Unwrap() {
			push(e.Error())
		}
	}
	return out
}

type frame struct {
	Func string
	File string
	Line int
}

// chainLinks pairs each error in the chain with where it was created, up to
// max entries. Links without a known location are kept only at the top.
func chainLinks(err error, max int) []map[string]any {
	var links []map[string]any
	i := 0
	for e := err; e != nil && i < max; e = errors.Unwrap(e) {
		link := map[string]any{"msg": e.Error()}
		fr, ok := errFrame(e)
		if ok {
			link["func"], link["file"], link["line"] = fr.Func, fr.File, fr.Line
		}
		if ok || i == 0 {
			links = append(links, link)
		}
		i++
	}
	return links
}

func errFrame(e error) (frame, bool) {
	switch c := e.(type) {
	case pcCarrier:
		return frameAt(c.PC())
	case stackCarrier:
		return firstAppFrame(c.StackPCs())
	}
	return frame{}, false
}

func frameAt(pc uintptr) (frame, bool) {
	if pc == 0 {
		return frame{}, false
	}
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return frame{Func: f.Function, File: f.File, Line: f.Line}, true
}

// firstAppFrame skips runtime, logging and xerrors frames.
func firstAppFrame(pcs []uintptr) (frame, bool) {
	frames := runtime.CallersFrames(pcs)
	for len(pcs) > 0 {
		f, more := frames.Next()
		if f.Function != "" && !infraFrame(f.Function) {
			return frame{Func: f.Function, File: f.File, Line: f.Line}, true
		}
		if !more {
			break
		}
	}
	return frame{}, false
}

func infraFrame(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		loggingFrame(fn) ||
		strings.Contains(fn, "/internal/xerrors.")
}

func loggingFrame(fn string) bool {
	return strings.HasPrefix(fn, "log/slog.") || strings.Contains(fn, "/internal/log.")
}

// renderStack prints "func\n\tfile:line" per frame from the first frame
// outside logging up to the runtime.
func renderStack(pcs []uintptr) string {
	var b strings.Builder
	frames := runtime.CallersFrames(pcs)
	inApp := false
	for {
		f, more := frames.Next()
		if strings.HasPrefix(f.Function, "runtime.") {
			break
		}
		inApp = inApp || !loggingFrame(f.Function)
		if inApp && f.Function != "" {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%s\n\t%s:%d", f.Function, f.File, f.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}

// classifyTypes names the outermost error that is not a plain wrapper and
// the innermost error of the chain.
func classifyTypes(err error) (surface, root string) {
	if err == nil {
		return "", ""
	}
	var last error
	for e := err; e != nil; e = errors.Unwrap(e) {
		last = e
		if surface == "" && !plainWrapper(e) {
			surface = reflect.TypeOf(e).String()
		}
	}
	if surface == "" {
		surface = fmt.Sprintf("%T", err)
	}
	return surface, fmt.Sprintf("%T", last)
}

func plainWrapper(e error) bool {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if strings.HasSuffix(t.PkgPath(), "/internal/xerrors") {
		return true
	}
	return t.PkgPath() == "fmt" && (t.Name() == "wrapError" || t.Name() == "wrapErrors")
}
