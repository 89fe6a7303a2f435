package events

// MessagesAdded lists the keys of messages inserted into a mailbox cache.
type MessagesAdded struct {
	eventBase

	Account string
	Folder  string
	Keys    []string
}

type MessagesUpdated struct {
	eventBase

	Account string
	Folder  string
	Keys    []string
}

// MessagesRemoved lists messages removed from the visible list of a mailbox cache.
type MessagesRemoved struct {
	eventBase

	Account string
	Folder  string
	Keys    []string
}

// UnseenChanged is published only when the unseen count actually changed.
type UnseenChanged struct {
	eventBase

	Account string
	Folder  string
	Count   int
}
