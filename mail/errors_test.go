package mail

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAuthFailure(t *testing.T) {
	tests := []struct {
		message     string
		recoverable bool
	}{
		{message: "[AUTH] invalid password", recoverable: true},
		{message: "Authentication failed", recoverable: true},
		{message: "LOGIN disabled", recoverable: true},
		{message: "unknown Username", recoverable: true},
		{message: "mailbox locked", recoverable: false},
		{message: "server busy", recoverable: false},
	}

	for _, tc := range tests {
		err := ClassifyAuthFailure(tc.message)

		assert.Equal(t, tc.recoverable, err.Recoverable, tc.message)
		assert.Equal(t, !tc.recoverable, IsFinal(err), tc.message)
	}
}

func TestAuthErrorIsProtocolError(t *testing.T) {
	var protoErr *ProtocolError

	err := fmt.Errorf("login: %w", ClassifyAuthFailure("mailbox locked"))

	require.True(t, errors.As(err, &protoErr))
	require.True(t, protoErr.Fatal)
}

func TestIsFinal(t *testing.T) {
	assert.False(t, IsFinal(nil))
	assert.False(t, IsFinal(&TransportError{Op: "read", Err: io.ErrUnexpectedEOF}))
	assert.False(t, IsFinal(fmt.Errorf("RETR: %w", ErrStallTimeout)))
	assert.True(t, IsFinal(&ProtocolError{Command: "STAT", Message: "no", Fatal: true}))
	assert.False(t, IsFinal(&ProtocolError{Command: "RCPT", Message: "try later"}))
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Connection not responding", StatusText(&TransportError{Op: "read", Err: ErrStallTimeout}))
	assert.Equal(t, "invalid password", StatusText(ClassifyAuthFailure("invalid password")))
	assert.Equal(t, "mailbox locked", StatusText(&ProtocolError{Command: "PASS", Message: "mailbox locked"}))
}
