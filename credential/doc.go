// Package credential persists the access/refresh token pair behind a pluggable
// [Backend].
//
// # Invariants
//
//   - Both halves are written together or not at all ("no anonymous half-session").
//   - [Store.Load] reports no pair when either half is missing, empty, or the
//     sentinel "undefined".
//   - [Store.Clear] is idempotent.
//
// # Architecture boundaries
//
// This package owns persistence only. It does not decode tokens, talk to the
// account API, or touch session state.
package credential
