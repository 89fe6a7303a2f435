package events

import (
	"github.com/courier-mail/courier/mail"
)

// FolderStatusChanged carries refreshed counts for a folder.
type FolderStatusChanged struct {
	eventBase

	Account string
	Folder  *mail.Folder
}

// FolderMessagesAvailable carries a listing of messages in a folder.
// With FlagsOnly set, the listing only refreshes messages that are already known.
type FolderMessagesAvailable struct {
	eventBase

	Account  string
	Folder   *mail.Folder
	Messages []mail.FolderMessage

	FlagsOnly bool

	// Server is true if the listing was reported by the server rather than by a local store.
	Server bool
}

// FolderExpungeRequested announces that a server expunge of a folder is about to be issued. Messages flagged
// deleted at this point await the matching FolderExpunged.
type FolderExpungeRequested struct {
	eventBase

	Account string
	Folder  *mail.Folder
}

// FolderExpunged confirms that messages marked for deletion were removed from the server.
type FolderExpunged struct {
	eventBase

	Account string
	Folder  *mail.Folder
}

// FolderRefreshRequired reports that the cached state of a folder is no longer valid.
type FolderRefreshRequired struct {
	eventBase

	Account    string
	Folder     *mail.Folder
	Deliberate bool
}
