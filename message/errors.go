package message

import (
	"fmt"
)

// ParseError is a structurally malformed message or part.
type ParseError struct {
	Err error
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("malformed MIME structure: %v", err.Err)
}

func (err *ParseError) Unwrap() error {
	return err.Err
}

// DecodeError is a content transfer encoding that could not be decoded.
type DecodeError struct {
	Encoding string
	Err      error
}

func (err *DecodeError) Error() string {
	if err.Err == nil {
		return fmt.Sprintf("unsupported encoding %q", err.Encoding)
	}

	return fmt.Sprintf("failed to decode %q content: %v", err.Encoding, err.Err)
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}
