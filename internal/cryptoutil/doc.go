// Package cryptoutil holds the small cryptographic primitives shared by the
// auth and content packages:
//   - constant-time comparison of hex digests and raw MACs
//   - SHA-256 and HMAC-SHA256 helpers
//   - KMS-backed HMAC generation and verification
package cryptoutil
