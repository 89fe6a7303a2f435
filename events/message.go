package events

import (
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/message"
)

// MessageAvailable carries the downloaded content of one message.
type MessageAvailable struct {
	eventBase

	Account string
	Folder  *mail.Folder
	Token   mail.Token

	Literal   []byte
	Structure message.Part

	// Complete is false if the download was truncated.
	Complete bool
}

// MessageFlagsChanged carries the flags of messages after a change was applied on the server.
type MessageFlagsChanged struct {
	eventBase

	Account string
	Folder  *mail.Folder
	Changes []mail.FlagChange
}

// MessageSent confirms that the outgoing server accepted a message.
type MessageSent struct {
	eventBase

	Account  string
	Envelope *message.Envelope
	Literal  []byte
}
