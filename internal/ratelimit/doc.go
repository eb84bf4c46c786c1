// Package ratelimit provides per-IP token-bucket limiting with background
// eviction of idle entries.
//
// The limiter is in-memory and per-process. It blunts a single address
// hammering the API or guessing the admin password; distributed abuse and
// bandwidth attacks are left to upstream filtering.
package ratelimit
