// Package api is the HTTP client for the remote account API.
//
// It covers token issuance, token refresh, registration and the password
// reset flow. Requests are validated locally before anything is sent; server
// rejections come back as [*RejectedError] carrying the server's field
// messages verbatim, and network failures as [*TransportError].
//
// [Client] implements the issuer side of the refresh coordinator.
package api
