// Package mailbox keeps the local cache of one folder and reconciles it with what the server reports.
package mailbox

import (
	"sync"

	"github.com/courier-mail/courier/async"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/message"
	"github.com/sirupsen/logrus"
)

// Mode selects how Reconcile treats messages it has not seen before.
type Mode int

const (
	// FlagsOnly refreshes flags and volatile token state of known messages and ignores unknown ones.
	FlagsOnly Mode = iota

	// Full additionally creates entries for unknown messages.
	Full
)

func (mode Mode) String() string {
	if mode == FlagsOnly {
		return "flags-only"
	}

	return "full"
}

// Entry is one cached message.
type Entry struct {
	Token    mail.Token
	Envelope *message.Envelope
	Flags    mail.Flags
	Size     int

	// Cached is true once the content of the message is held locally.
	Cached bool

	// OnServer is false once the server confirmed the message was expunged.
	OnServer bool
}

func (entry *Entry) clone() Entry {
	clone := *entry
	clone.Token = entry.Token.Clone()

	return clone
}

// Delta lists the keys touched by a reconcile pass.
type Delta struct {
	Added   []string
	Updated []string
}

func (delta Delta) Empty() bool {
	return len(delta.Added) == 0 && len(delta.Updated) == 0
}

// Mailbox is the cache of one folder of one account. It is safe for concurrent use; readers never observe a
// partially applied change.
type Mailbox struct {
	account string
	folder  string

	list    *entryList
	pending map[string]mail.Token
	unseen  int
	lock    sync.RWMutex

	eventCh *async.QueuedChannel[events.Event]
	log     *logrus.Entry
}

func New(account, folder string, panicHandler async.PanicHandler) *Mailbox {
	return &Mailbox{
		account: account,
		folder:  folder,
		list:    newEntryList(),
		pending: make(map[string]mail.Token),
		eventCh: async.NewQueuedChannel[events.Event](0, 8, panicHandler, "courier-mailbox"),
		log: logrus.WithField("pkg", "mailbox").
			WithField("account", account).
			WithField("folder", folder),
	}
}

func (m *Mailbox) Folder() string {
	return m.folder
}

// Events returns the channel on which the mailbox publishes its changes.
func (m *Mailbox) Events() <-chan events.Event {
	return m.eventCh.GetChannel()
}

func (m *Mailbox) Close() {
	m.eventCh.CloseAndDiscardQueued()
	m.eventCh.Wait()
}

// Reconcile merges a server or local listing into the cache. server tells whether the listing confirms the
// messages exist on the server.
func (m *Mailbox) Reconcile(messages []mail.FolderMessage, mode Mode, server bool) Delta {
	m.lock.Lock()
	defer m.lock.Unlock()

	var (
		delta    Delta
		resettle bool
	)

	for _, msg := range messages {
		if msg.Token == nil {
			continue
		}

		key := msg.Token.Key()

		if entry, ok := m.list.get(key); ok {
			entry.Flags = msg.Flags
			entry.Token.Update(msg.Token)

			if server && !entry.OnServer {
				entry.OnServer = true
				resettle = true
			}

			if entry.Envelope == nil && msg.Envelope != nil {
				entry.Envelope = msg.Envelope
			}

			if msg.Size > 0 {
				entry.Size = msg.Size
			}

			delta.Updated = append(delta.Updated, key)

			continue
		}

		if mode == FlagsOnly {
			continue
		}

		m.list.insert(&Entry{
			Token:    msg.Token.Clone(),
			Envelope: msg.Envelope,
			Flags:    msg.Flags,
			Size:     msg.Size,
			OnServer: server,
		})

		delta.Added = append(delta.Added, key)
	}

	if resettle {
		m.list.settle()
	}

	m.log.WithFields(logrus.Fields{
		"mode":    mode,
		"added":   len(delta.Added),
		"updated": len(delta.Updated),
	}).Debug("Reconciled mailbox")

	if len(delta.Added) > 0 {
		m.publish(events.MessagesAdded{Account: m.account, Folder: m.folder, Keys: delta.Added})
	}

	if len(delta.Updated) > 0 {
		m.publish(events.MessagesUpdated{Account: m.account, Folder: m.folder, Keys: delta.Updated})
	}

	m.updateUnseen()

	return delta
}

// ExpungeDeleted moves every message flagged deleted that still exists on the server into the pending expunge
// set and returns copies of their tokens, for which the caller requests a server expunge.
func (m *Mailbox) ExpungeDeleted() []mail.Token {
	m.lock.Lock()
	defer m.lock.Unlock()

	deleted := m.list.where(func(entry *Entry) bool {
		return entry.OnServer && entry.Flags.Deleted()
	})

	for _, entry := range deleted {
		m.pending[entry.Token.Key()] = entry.Token.Clone()
	}

	return m.list.tokens(deleted)
}

// Pending returns the number of messages awaiting expunge confirmation.
func (m *Mailbox) Pending() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.pending)
}

// ConfirmExpunge marks every pending message as gone from the server. The messages stay in the visible list.
func (m *Mailbox) ConfirmExpunge() {
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(m.pending) == 0 {
		return
	}

	keys := make([]string, 0, len(m.pending))

	for key := range m.pending {
		if entry, ok := m.list.get(key); ok {
			entry.OnServer = false
			keys = append(keys, key)
		}
	}

	m.pending = make(map[string]mail.Token)

	m.list.settle()

	if len(keys) > 0 {
		m.publish(events.MessagesUpdated{Account: m.account, Folder: m.folder, Keys: keys})
	}
}

// RemoveMessage drops a message from the visible list.
func (m *Mailbox) RemoveMessage(token mail.Token) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	key := token.Key()

	if !m.list.remove(key) {
		return false
	}

	delete(m.pending, key)

	m.publish(events.MessagesRemoved{Account: m.account, Folder: m.folder, Keys: []string{key}})

	m.updateUnseen()

	return true
}

// SetFlags applies flag changes reported after a flag change on the server.
func (m *Mailbox) SetFlags(changes []mail.FlagChange) {
	m.lock.Lock()
	defer m.lock.Unlock()

	var keys []string

	for _, change := range changes {
		entry, ok := m.list.get(change.Token.Key())
		if !ok || entry.Flags == change.Flags {
			continue
		}

		entry.Flags = change.Flags

		keys = append(keys, change.Token.Key())
	}

	if len(keys) > 0 {
		m.publish(events.MessagesUpdated{Account: m.account, Folder: m.folder, Keys: keys})
	}

	m.updateUnseen()
}

// SetContent records whether the content of a message is held locally.
func (m *Mailbox) SetContent(token mail.Token, cached bool) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	entry, ok := m.list.get(token.Key())
	if !ok {
		return false
	}

	if entry.Cached != cached {
		entry.Cached = cached
		m.publish(events.MessagesUpdated{Account: m.account, Folder: m.folder, Keys: []string{token.Key()}})
	}

	return true
}

func (m *Mailbox) UnseenCount() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.unseen
}

// Messages returns a copy of the visible list in order.
func (m *Mailbox) Messages() []Entry {
	m.lock.RLock()
	defer m.lock.RUnlock()

	entries := make([]Entry, 0, m.list.len())

	for _, entry := range m.list.all() {
		entries = append(entries, entry.clone())
	}

	return entries
}

func (m *Mailbox) Message(key string) (Entry, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	entry, ok := m.list.get(key)
	if !ok {
		return Entry{}, false
	}

	return entry.clone(), true
}

// Apply updates the cache from an event published by a request. Events for other folders are ignored.
func (m *Mailbox) Apply(event events.Event) {
	switch event := event.(type) {
	case events.FolderMessagesAvailable:
		if m.owns(event.Account, event.Folder) {
			mode := Full
			if event.FlagsOnly {
				mode = FlagsOnly
			}

			m.Reconcile(event.Messages, mode, event.Server)
		}

	case events.FolderExpungeRequested:
		if m.owns(event.Account, event.Folder) {
			m.ExpungeDeleted()
		}

	case events.FolderExpunged:
		if m.owns(event.Account, event.Folder) {
			m.ConfirmExpunge()
		}

	case events.MessageFlagsChanged:
		if m.owns(event.Account, event.Folder) {
			m.SetFlags(event.Changes)
		}

	case events.MessageAvailable:
		if m.owns(event.Account, event.Folder) {
			m.SetContent(event.Token, event.Complete)
		}
	}
}

func (m *Mailbox) owns(account string, folder *mail.Folder) bool {
	return account == m.account && folder != nil && folder.Path == m.folder
}

// updateUnseen recomputes the unseen count and publishes it if it changed. The lock must be held.
func (m *Mailbox) updateUnseen() {
	unseen := len(m.list.where(func(entry *Entry) bool {
		return !entry.Flags.Seen()
	}))

	if unseen == m.unseen {
		return
	}

	m.unseen = unseen

	m.publish(events.UnseenChanged{Account: m.account, Folder: m.folder, Count: unseen})
}

func (m *Mailbox) publish(event events.Event) {
	if !m.eventCh.Enqueue(event) {
		m.log.WithField("event", event).Debug("Dropped event of closed mailbox")
	}
}
