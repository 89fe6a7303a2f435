package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStallTimeout is returned when the watchdog aborted an exchange because the server stopped responding.
	ErrStallTimeout = errors.New("connection not responding")

	ErrNotConnected = errors.New("not connected")
	ErrUnsupported  = errors.New("operation not supported by this client")
	ErrNotLoadable  = errors.New("message token has no valid session index")
	ErrNoSuchFolder = errors.New("no such folder")
)

// authKeywords mark a negative authentication response as worth retrying with other credentials.
// The match is a best-effort text heuristic and is known to miss non-English server messages.
var authKeywords = []string{"[auth]", "authentication", "login", "username", "password", "invalid"}

// TransportError is a connection-level I/O failure.
type TransportError struct {
	Op  string
	Err error
}

func (err *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", err.Op, err.Err)
}

func (err *TransportError) Unwrap() error {
	return err.Err
}

// ProtocolError is a negative or unexpected response from the server.
type ProtocolError struct {
	Command string
	Message string
	Fatal   bool
}

func (err *ProtocolError) Error() string {
	if err.Command == "" {
		return err.Message
	}

	return fmt.Sprintf("%s: %s", err.Command, err.Message)
}

// AuthError is a rejected authentication. A recoverable error means the credentials may be re-entered.
type AuthError struct {
	Message     string
	Recoverable bool
}

func (err *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", err.Message)
}

// Unwrap exposes the error as a ProtocolError as well.
func (err *AuthError) Unwrap() error {
	return &ProtocolError{Command: "AUTH", Message: err.Message, Fatal: !err.Recoverable}
}

// IsAuthKeyword reports whether the server message matches the authentication keyword heuristic.
// The match is imprecise: servers word their replies freely, so some recoverable failures read as fatal.
func IsAuthKeyword(message string) bool {
	lower := strings.ToLower(message)

	for _, keyword := range authKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}

	return false
}

// ClassifyAuthFailure turns a negative authentication response into an AuthError.
func ClassifyAuthFailure(message string) *AuthError {
	return &AuthError{
		Message:     message,
		Recoverable: IsAuthKeyword(message),
	}
}

// IsFinal reports whether retrying the failed operation is pointless.
func IsFinal(err error) bool {
	var (
		authErr      *AuthError
		transportErr *TransportError
		protoErr     *ProtocolError
	)

	switch {
	case err == nil:
		return false

	case errors.As(err, &authErr):
		return !authErr.Recoverable

	case errors.Is(err, ErrStallTimeout), errors.Is(err, ErrNotConnected), errors.As(err, &transportErr):
		return false

	case errors.As(err, &protoErr):
		return protoErr.Fatal

	case errors.Is(err, context.DeadlineExceeded):
		return false

	default:
		return true
	}
}

// StatusText renders the error for status displays. Stalls never read like a credentials problem.
func StatusText(err error) string {
	var (
		authErr  *AuthError
		protoErr *ProtocolError
	)

	switch {
	case errors.Is(err, ErrStallTimeout):
		return "Connection not responding"

	case errors.As(err, &authErr):
		return authErr.Message

	case errors.As(err, &protoErr):
		return protoErr.Message

	default:
		return err.Error()
	}
}
