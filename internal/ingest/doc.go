// Package ingest owns the runtime that turns byte streams into messages.
//
// Ownership boundary:
// - TCP accept loop with one assembler per connection
// - source reopen loop
// - shared inbox of completed messages
// - admin HTTP routes
package ingest
