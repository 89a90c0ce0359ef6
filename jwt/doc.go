// Package jwt decodes access-token payloads for client-side expiry and identity
// decisions, and mints signed tokens for the development API server.
//
// Decoding is structural only: [Decode] never verifies a signature, that is the
// issuer's job. [IsExpired] fails closed, so a token that cannot be decoded is
// always reported as expired.
package jwt
