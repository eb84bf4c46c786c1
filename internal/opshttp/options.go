package opshttp

import (
	"net/http"

	"github.com/lamgaraproperties/lamgara-web/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// OnPanic runs for every recovered handler panic.
	OnPanic func()
}
