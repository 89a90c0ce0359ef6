// Package goSession manages the client side of a token-authenticated session
// against a remote account API: an access/refresh credential pair, lazy
// renewal of the access token, and a process-wide view of who is logged in.
//
// A [Client] is assembled with a [Builder] and is safe for concurrent use.
// Outbound requests made through [Client.Do] or [Client.HTTPClient] carry a
// bearer token that is renewed on demand; concurrent renewals collapse into a
// single call to the refresh endpoint.
//
// # Architecture boundaries
//
// goSession is the public surface. Credential persistence lives in
// credential, token decoding in jwt, the observable identity in session, the
// lifecycle state machine in refresh and the HTTP calls in api. Only the
// refresh coordinator writes credentials or identity; everything else reads
// through [session.View].
//
// # Failure model
//
// Nothing here is fatal. Storage and decode failures degrade to an anonymous
// session; a failed renewal clears the session and surfaces [ErrRefreshFailed];
// server rejections surface unchanged as [*AuthRejectedError].
package goSession
