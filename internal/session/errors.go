package session

import "errors"

var (
	// ErrEmptyToken is returned when starting a session without a token.
	ErrEmptyToken = errors.New("empty token")
	// ErrNoSession is returned when refreshing a missing or expired session.
	ErrNoSession = errors.New("no valid session")
)
