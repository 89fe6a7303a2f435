package courier

import (
	"errors"

	"github.com/courier-mail/courier/mail"
)

var (
	ErrEngineClosed  = errors.New("the engine is closed")
	ErrNoSuchAccount = errors.New("no such account")
	ErrAccountExists = errors.New("account already exists")
	ErrNoClient      = errors.New("account needs an incoming or outgoing client")
	ErrNoIncoming    = errors.New("account has no incoming client")
	ErrNoOutgoing    = errors.New("account has no outgoing client")
)

// IsAuthFailure returns true if the error is an authentication failure reported by a server.
func IsAuthFailure(err error) bool {
	var authErr *mail.AuthError

	return errors.As(err, &authErr)
}

// IsRecoverableAuthFailure returns true if the error is an authentication failure the user can fix by entering
// other credentials.
func IsRecoverableAuthFailure(err error) bool {
	var authErr *mail.AuthError

	return errors.As(err, &authErr) && authErr.Recoverable
}

// IsStallTimeout returns true if the error is caused by a server that stopped responding.
func IsStallTimeout(err error) bool {
	return errors.Is(err, mail.ErrStallTimeout)
}
