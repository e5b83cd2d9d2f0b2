package network

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the remote service.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrAuthFailed indicates authentication (e.g., RPC credentials) was rejected.
	ErrAuthFailed = errors.New("network: authentication failed")

	// ErrInvalidResponse indicates the remote returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("network: invalid response")

	// ErrInvalidRequest indicates the sync parameters are out of range.
	ErrInvalidRequest = errors.New("network: invalid sync request")

	// ErrSyncUnavailable indicates a multi-address sync could not be completed.
	// Every sync failure, including cancellation, wraps it.
	ErrSyncUnavailable = errors.New("network: sync unavailable")
)
