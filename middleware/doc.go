// Package middleware guards routes of a local HTTP surface, such as an
// embedded web UI, behind the client's session.
//
// [RequireSession] reads only [session.View]. It never touches credentials or
// makes network calls, so it is safe on every request.
package middleware
