// Package content persists the site's single editable JSON document.
//
// The document lives in row 1 of the site_content table of a SQLite
// database, created from an embedded default on first boot and replaced
// wholesale on every save. There is no partial update and no optimistic
// concurrency: the last save wins.
//
// The core components are:
//   - [Store]: gorm over the pure-Go glebarez SQLite driver
//   - [Snapshot]: the bytes, stamp and digest of one read or write
//   - [Summary]: collection counts decoded leniently for logs
package content
