// Package rate throttles failed logins against the development API server
// using Redis counters.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - <prefix>:al:  login per-email
//   - <prefix>:ali: login per-IP
package rate
