// Package httpmw holds the middleware shared by the public site server and
// the JSON API.
//
// httpserver composes it outermost first: recover, security headers,
// request ID, client IP, rate limiting, tracing, metrics, logger injection
// and access logging, then the router. Per-route concerns such as
// [ContentHeaders] and [Scope] are attached inside the router.
//
// Request bodies, query values and user agents never reach the logs.
package httpmw
