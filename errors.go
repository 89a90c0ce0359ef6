package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/refresh"
)

var (
	// ErrRefreshFailed means renewal failed and the session was invalidated.
	ErrRefreshFailed = refresh.ErrRefreshFailed
	// ErrMalformedToken means an access token could not be decoded.
	ErrMalformedToken = jwt.ErrMalformedToken
	// ErrBackendUnavailable means the credential backend failed.
	ErrBackendUnavailable = credential.ErrBackendUnavailable
	// ErrMalformedResponse means the API answered 2xx with an unexpected body.
	ErrMalformedResponse = api.ErrMalformedResponse
	// ErrClientClosed is returned by operations on a closed [Client].
	ErrClientClosed = errors.New("client closed")
	// ErrBuilderUsed is returned when Build is called twice on one [Builder].
	ErrBuilderUsed = errors.New("builder already used")
)

// AuthRejectedError is a login, registration or password call refused by the
// API, with its messages verbatim.
type AuthRejectedError = api.RejectedError

// TransportError is a network failure talking to the API.
type TransportError = api.TransportError
