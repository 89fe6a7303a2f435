package mailbox

import (
	"github.com/bradenaw/juniper/xslices"
	"github.com/courier-mail/courier/mail"
	"golang.org/x/exp/slices"
)

// entryList is the visible, ordered list of a mailbox with an index by token key.
type entryList struct {
	entries []*Entry
	idx     map[string]*Entry
}

func newEntryList() *entryList {
	return &entryList{
		idx: make(map[string]*Entry),
	}
}

// insert places entry before the first entry that orders after it.
func (list *entryList) insert(entry *Entry) {
	if _, ok := list.idx[entry.Token.Key()]; ok {
		panic("token is already in the list")
	}

	pos := xslices.IndexFunc(list.entries, func(other *Entry) bool {
		return orderedBefore(entry, other)
	})

	if pos < 0 {
		list.entries = append(list.entries, entry)
	} else {
		list.entries = slices.Insert(list.entries, pos, entry)
	}

	list.idx[entry.Token.Key()] = entry
}

// settle moves entries that are gone from the server behind the ones still on it. Relative order is kept.
func (list *entryList) settle() {
	gone := xslices.Filter(list.entries, func(entry *Entry) bool { return !entry.OnServer })

	if len(gone) == 0 || len(gone) == len(list.entries) {
		return
	}

	live := xslices.Filter(list.entries, func(entry *Entry) bool { return entry.OnServer })

	list.entries = append(live, gone...)
}

// orderedBefore reports whether a belongs before b. Entries gone from the server hold stale indices and order
// after every live entry.
func orderedBefore(a, b *Entry) bool {
	if a.OnServer != b.OnServer {
		return a.OnServer
	}

	return a.Token.Compare(b.Token) < 0
}

func (list *entryList) remove(key string) bool {
	if _, ok := list.idx[key]; !ok {
		return false
	}

	delete(list.idx, key)

	list.entries = xslices.Filter(list.entries, func(entry *Entry) bool {
		return entry.Token.Key() != key
	})

	return true
}

func (list *entryList) get(key string) (*Entry, bool) {
	entry, ok := list.idx[key]

	return entry, ok
}

func (list *entryList) all() []*Entry {
	return list.entries
}

func (list *entryList) where(fn func(*Entry) bool) []*Entry {
	return xslices.Filter(list.entries, fn)
}

func (list *entryList) len() int {
	return len(list.entries)
}

func (list *entryList) tokens(entries []*Entry) []mail.Token {
	return xslices.Map(entries, func(entry *Entry) mail.Token { return entry.Token.Clone() })
}
