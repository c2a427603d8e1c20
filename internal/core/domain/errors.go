package domain

import "errors"

var (
	ErrUnknownRole        = errors.New("unknown role")
	ErrInvalidGrant       = errors.New("invalid grant")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrResultNotFound     = errors.New("result not found")
	ErrInvalidResult      = errors.New("invalid result")
	ErrInvalidRoomOptions = errors.New("invalid room options")
	ErrSSOUnauthenticated = errors.New("sso provider reported unauthenticated session")
	ErrSSOVerification    = errors.New("sso verification failed")
	ErrRedirectNotAllowed = errors.New("redirect target not allowed")
	ErrConnectRejected    = errors.New("connect rejected")
)
