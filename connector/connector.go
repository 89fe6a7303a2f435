package connector

import (
	"context"

	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/message"
)

// Capabilities describes which optional operations an incoming client supports.
type Capabilities struct {
	Undelete bool
	Append   bool
	Copy     bool
	Move     bool

	// Flags is false if flags other than deleted only live on the client.
	Flags bool
}

// Content is a downloaded message.
type Content struct {
	Literal []byte

	// Complete is false if the server returned only part of the message.
	Complete bool

	Structure message.Part
}

// Incoming connects the request layer to a server holding an account's messages.
//
// A client is used by one goroutine at a time.
type Incoming interface {
	// Protocol names the wire protocol, e.g. "pop3".
	Protocol() string

	Open(ctx context.Context) error
	Close(ctx context.Context) error
	IsConnected() bool

	Capabilities() Capabilities

	// FolderTree returns the account's folders.
	FolderTree(ctx context.Context) (*mail.Folder, error)

	// RefreshFolderStatus updates the message counts of folder.
	RefreshFolderStatus(ctx context.Context, folder *mail.Folder) error

	// ActiveFolder returns the currently selected folder, if any.
	ActiveFolder() *mail.Folder

	// SetActiveFolder selects folder. It returns false if the previously active folder's state became invalid.
	SetActiveFolder(ctx context.Context, folder *mail.Folder) (bool, error)

	// SetActiveFolderByToken selects the folder containing token and returns the folder that became invalid, if any.
	SetActiveFolderByToken(ctx context.Context, token mail.Token) (*mail.Folder, error)

	// FolderMessages lists the messages with session indexes first to last in the active folder.
	FolderMessages(ctx context.Context, first, last int, progress mail.ProgressHandler) ([]mail.FolderMessage, error)

	// NewFolderMessages lists the most recent messages of the active folder.
	NewFolderMessages(ctx context.Context, progress mail.ProgressHandler) ([]mail.FolderMessage, error)

	// Message downloads one message.
	Message(ctx context.Context, token mail.Token, progress mail.ProgressHandler) (*Content, error)

	// ChangeFlags adds or removes flags on the given messages and returns their resulting flags.
	ChangeFlags(ctx context.Context, tokens []mail.Token, flags mail.Flags, add bool) ([]mail.FlagChange, error)

	// Expunge permanently removes deleted messages and returns the remaining messages, flags only.
	Expunge(ctx context.Context) ([]mail.FolderMessage, error)

	// Append stores literal in folder.
	Append(ctx context.Context, folder *mail.Folder, literal []byte, flags mail.Flags) (mail.Token, error)

	// Copy copies messages of the active folder into folder.
	Copy(ctx context.Context, tokens []mail.Token, folder *mail.Folder) error

	// Move moves messages of the active folder into folder.
	Move(ctx context.Context, tokens []mail.Token, folder *mail.Folder) error

	// Noop keeps the connection alive.
	Noop(ctx context.Context) error
}

// Outgoing submits messages to a server.
type Outgoing interface {
	Protocol() string

	Open(ctx context.Context) error
	Close(ctx context.Context) error
	IsConnected() bool

	// SendMessage transmits the serialized message to every recipient of env.
	SendMessage(ctx context.Context, env *message.Envelope, literal []byte) error
}
