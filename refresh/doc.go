// Package refresh implements the credential lifecycle state machine.
//
// A [Coordinator] is the single writer of both the credential store and the
// session state. It decides per call whether the stored access token is still
// usable, renews it through an [Issuer] when it is not, and performs the
// explicit login and logout transitions.
//
// # States
//
//	Empty      no stored pair
//	Valid      access token present and unexpired
//	Expired    access token present but past exp (detected lazily)
//	Refreshing renewal in flight
//	Invalid    the last renewal failed; storage has been cleared
//
// # Concurrency
//
// Renewals are single-flight: concurrent callers holding the same refresh
// token share one endpoint call and its outcome. Every commit (store write
// followed by session update) runs under one mutex and is tagged with a
// generation number; login, logout and invalidation bump the generation so a
// renewal that finishes late for a superseded session is discarded.
//
// Session observers run inside the commit section and must not call back into
// the Coordinator.
package refresh
