// Package devserver is an in-memory account API for local development and
// end-to-end tests.
//
// It serves the same routes and response shapes as the production backend:
// token obtain and refresh with HS256 tokens carrying user_id, username,
// full_name and email claims, registration with field-keyed validation
// errors, and the OTP based password reset. Refresh tokens are single use
// when RotateRefresh is set; spent token IDs and failed-login counters live in
// Redis. A protected GET user/me/ route echoes the bearer's claims.
package devserver
