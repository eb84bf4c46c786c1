package log

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

const defaultMaxErrorLinks = 8

// slogLogger is the Logger behind New. Attrs are kept on the logger rather
// than the handler so With stays cheap and the source PC stays accurate.
type slogLogger struct {
	h     slog.Handler
	attrs []slog.Attr

	errorLinks    bool
	maxErrorLinks int
}

func newSlog(opts Options) (Logger, error) {
	out := opts.Writer
	if out == nil {
		out = os.Stdout
	}
	stackLevel := opts.StacktraceLevel
	if stackLevel == 0 {
		stackLevel = slog.LevelError
	}
	maxLinks := opts.MaxErrorLinks
	if maxLinks <= 0 {
		maxLinks = defaultMaxErrorLinks
	}

	ho := &slog.HandlerOptions{Level: opts.Level, AddSource: true}
	var h slog.Handler = slog.NewTextHandler(out, ho)
	if opts.JsonFormat {
		h = slog.NewJSONHandler(out, ho)
	}
	h = stackHandler{next: traceHandler{next: h}, level: stackLevel}

	return &slogLogger{
		h:             h,
		attrs:         buildAttrs(opts),
		errorLinks:    opts.IncludeErrorLinks,
		maxErrorLinks: maxLinks,
	}, nil
}

// buildAttrs stamps the app name and whichever build fields are known.
func buildAttrs(opts Options) []slog.Attr {
	attrs := []slog.Attr{slog.String("app", opts.App)}
	if opts.Version != "" {
		attrs = append(attrs, slog.String("version", opts.Version))
	}
	if opts.Commit != "" {
		attrs = append(attrs, slog.String("commit", opts.Commit))
	}
	if opts.BuildId != "" {
		attrs = append(attrs, slog.String("build_id", opts.BuildId))
	}
	return attrs
}

func (s *slogLogger) With(kv ...any) Logger {
	child := *s
	child.attrs = appendKV(append([]slog.Attr(nil), s.attrs...), kv)
	return &child
}

func (s *slogLogger) Debug(ctx context.Context, msg string, kv ...any) {
	s.emit(ctx, slog.LevelDebug, msg, kv)
}

func (s *slogLogger) Info(ctx context.Context, msg string, kv ...any) {
	s.emit(ctx, slog.LevelInfo, msg, kv)
}

func (s *slogLogger) Warn(ctx context.Context, msg string, kv ...any) {
	s.emit(ctx, slog.LevelWarn, msg, kv)
}

func (s *slogLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	if err != nil {
		limit := 0
		if s.errorLinks {
			limit = s.maxErrorLinks
		}
		kv = append(kv, errorAttrs(err, limit)...)
	}
	s.emit(ctx, slog.LevelError, msg, kv)
}

func (s *slogLogger) Sync() error { return nil }

// emit must be called directly from a level method: the record's source is
// taken three frames up (Callers, emit, level method).
func (s *slogLogger) emit(ctx context.Context, lvl slog.Level, msg string, kv []any) {
	if !s.h.Enabled(ctx, lvl) {
		return
	}
	var pc [1]uintptr
	runtime.Callers(3, pc[:])

	r := slog.NewRecord(time.Now(), lvl, msg, pc[0])
	r.AddAttrs(s.attrs...)
	r.AddAttrs(appendKV(nil, kv)...)
	_ = s.h.Handle(ctx, r)
}

// appendKV converts alternating key/value pairs. Non-string keys and a
// trailing odd value are dropped.
func appendKV(dst []slog.Attr, kv []any) []slog.Attr {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			dst = append(dst, slog.Any(k, kv[i+1]))
		}
	}
	return dst
}
