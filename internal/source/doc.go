// Package source owns the byte streams fed into assemblers.
//
// Ownership boundary:
// - local command, remote (ssh) command and file streams
// - reopen backoff for streams that ended
package source
