// Package session holds the process-wide "who is logged in" view.
//
// [State] is pure in-memory state with synchronous observer notification. It
// performs no I/O and never interprets tokens; the refresh coordinator derives
// identities from token claims and is the only writer. Other collaborators
// receive the read-only [View].
//
// Observers run on the writer's goroutine while the writer holds its commit
// lock, so they must not call back into login, logout or resolve.
package session
