// Package credential holds the authorization a client attaches to its
// requests, optionally mirrored into a secretstore.Store so it survives
// process restarts.
//
// Reads never touch the backend. Writes update memory first and then the
// backend; Clear removes the persisted copy first and then the in-memory
// value. Backend failures are logged and reported through the persist-error
// handler but never fail the write: the store keeps working from memory.
package credential
