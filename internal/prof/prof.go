// Package prof pushes continuous profiles to a Pyroscope server.
package prof

import (
	"context"
	"fmt"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/lamgaraproperties/lamgara-web/internal/log"
	"github.com/lamgaraproperties/lamgara-web/internal/version"
	"github.com/lamgaraproperties/lamgara-web/internal/xerrors"
)

type Options struct {
	Enabled       bool
	AppName       string
	ServerAddress string
	// TenantID is sent as X-Scope-OrgID for multi-tenant backends.
	TenantID string
	Tags     map[string]string

	ProfileMutexFraction int
	BlockProfileRate     int

	// OnActive reports profiler state changes, e.g. to a gauge.
	OnActive func(active bool)
}

// BuildTags labels profiles with the component and build identity.
func BuildTags(component string, vi version.Info) map[string]string {
	tags := map[string]string{
		"app":       vi.AppName,
		"component": component,
		"version":   vi.Version,
		"commit":    vi.Commit,
	}
	if vi.BuildId != "" {
		tags["build_id"] = vi.BuildId
	}
	return tags
}

var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexCount,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockCount,
	pyroscope.ProfileBlockDuration,
}

// Start launches the profiler. The returned stop function is never nil and
// is safe to call when Start failed.
func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx).With("pyro_server", opts.ServerAddress, "app_name", opts.AppName)
	setActive := func(active bool) {
		if opts.OnActive != nil {
			opts.OnActive(active)
		}
	}
	setActive(false)

	if !opts.Enabled {
		L.Info(ctx, "pyroscope disabled")
		return func() {}, nil
	}
	if opts.ServerAddress == "" {
		return func() {}, xerrors.New("pyroscope server address is empty")
	}

	if opts.ProfileMutexFraction > 0 {
		runtime.SetMutexProfileFraction(opts.ProfileMutexFraction)
	}
	if opts.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockProfileRate)
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: opts.AppName,
		ServerAddress:   opts.ServerAddress,
		TenantID:        opts.TenantID,
		Tags:            opts.Tags,
		ProfileTypes:    profileTypes,
		Logger:          pyroLogger{ctx: ctx, l: L},
	})
	if err != nil {
		return func() {}, xerrors.Wrap(err, "pyroscope start")
	}
	setActive(true)
	L.Info(ctx, "pyroscope started")

	return func() {
		if err := profiler.Stop(); err != nil {
			L.Warn(context.Background(), "pyroscope stop", "error", err.Error())
		}
		setActive(false)
		L.Info(context.Background(), "pyroscope stopped")
	}, nil
}

// pyroLogger routes the agent's own diagnostics into the service logger.
// Its debug chatter is dropped.
type pyroLogger struct {
	ctx context.Context
	l   log.Logger
}

func (p pyroLogger) Infof(format string, args ...any) {
	p.l.Info(p.ctx, fmt.Sprintf(format, args...))
}

func (p pyroLogger) Debugf(string, ...any) {}

func (p pyroLogger) Errorf(format string, args ...any) {
	p.l.Warn(p.ctx, fmt.Sprintf(format, args...))
}
