// Package health evaluates liveness and readiness for the ops listener.
//
// A [Probe] returns nil when the check passes. [All] combines probes,
// [Timed] bounds a slow dependency check such as a database ping, and
// [ShutdownGate] fails readiness as soon as draining begins so the load
// balancer stops routing before the listeners close.
package health
