package connector

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bradenaw/juniper/xslices"
	"github.com/courier-mail/courier/mail"
	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const dummyDelim = "/"

type dummyState struct {
	folders map[string]*dummyFolder

	lock sync.RWMutex
}

type dummyFolder struct {
	path     string
	messages []*dummyMessage
	nextSeq  int
}

type dummyMessage struct {
	id      string
	seq     int
	literal []byte
	flags   mail.Flags
	date    time.Time
}

func newDummyState() *dummyState {
	return &dummyState{
		folders: make(map[string]*dummyFolder),
	}
}

func (state *dummyState) createFolder(path string) {
	state.lock.Lock()
	defer state.lock.Unlock()

	if _, ok := state.folders[path]; !ok {
		state.folders[path] = &dummyFolder{path: path, nextSeq: 1}
	}
}

func (state *dummyState) hasFolder(path string) bool {
	state.lock.RLock()
	defer state.lock.RUnlock()

	_, ok := state.folders[path]

	return ok
}

// tree builds the folder hierarchy from the folder paths. Missing intermediate folders are not selectable.
func (state *dummyState) tree() *mail.Folder {
	state.lock.RLock()
	defer state.lock.RUnlock()

	root := &mail.Folder{Delim: dummyDelim}

	paths := maps.Keys(state.folders)
	sort.Strings(paths)

	for _, path := range paths {
		parent := root
		segments := strings.Split(path, dummyDelim)

		for i, segment := range segments {
			sub := strings.Join(segments[:i+1], dummyDelim)

			child, ok := parent.Find(sub)
			if !ok {
				child = mail.NewFolder(segment, sub, dummyDelim)
				child.Selectable = false
				parent.AddChild(child)
			}

			parent = child
		}

		parent.Selectable = true
		parent.MsgCount, parent.UnseenCount = state.counts(path)
	}

	return root
}

func (state *dummyState) counts(path string) (int, int) {
	folder := state.folders[path]

	unseen := xslices.CountFunc(folder.messages, func(msg *dummyMessage) bool {
		return !msg.flags.Seen()
	})

	return len(folder.messages), unseen
}

func (state *dummyState) folderCounts(path string) (int, int, bool) {
	state.lock.RLock()
	defer state.lock.RUnlock()

	if _, ok := state.folders[path]; !ok {
		return 0, 0, false
	}

	count, unseen := state.counts(path)

	return count, unseen, true
}

func (state *dummyState) createMessage(path string, literal []byte, flags mail.Flags, date time.Time) *dummyToken {
	state.lock.Lock()
	defer state.lock.Unlock()

	folder := state.folders[path]

	msg := &dummyMessage{
		id:      uuid.NewString(),
		seq:     folder.nextSeq,
		literal: literal,
		flags:   flags,
		date:    date,
	}

	folder.nextSeq++
	folder.messages = append(folder.messages, msg)

	return newDummyToken(path, msg)
}

// messages returns the messages at positions first to last, 1-based and inclusive.
func (state *dummyState) messages(path string, first, last int) []*dummyToken {
	state.lock.RLock()
	defer state.lock.RUnlock()

	folder := state.folders[path]

	if first < 1 {
		first = 1
	}

	if last > len(folder.messages) {
		last = len(folder.messages)
	}

	if first > last {
		return nil
	}

	return xslices.Map(folder.messages[first-1:last], func(msg *dummyMessage) *dummyToken {
		return newDummyToken(path, msg)
	})
}

func (state *dummyState) message(path, id string) (*dummyMessage, bool) {
	state.lock.RLock()
	defer state.lock.RUnlock()

	folder, ok := state.folders[path]
	if !ok {
		return nil, false
	}

	idx := xslices.IndexFunc(folder.messages, func(msg *dummyMessage) bool { return msg.id == id })
	if idx < 0 {
		return nil, false
	}

	msg := *folder.messages[idx]

	return &msg, true
}

func (state *dummyState) setFlags(path, id string, flags mail.Flags, add bool) (mail.Flags, bool) {
	state.lock.Lock()
	defer state.lock.Unlock()

	folder, ok := state.folders[path]
	if !ok {
		return 0, false
	}

	for _, msg := range folder.messages {
		if msg.id == id {
			msg.flags = msg.flags.Apply(flags, add)
			return msg.flags, true
		}
	}

	return 0, false
}

func (state *dummyState) removeMessage(path, id string) {
	state.lock.Lock()
	defer state.lock.Unlock()

	if folder, ok := state.folders[path]; ok {
		folder.messages = xslices.Filter(folder.messages, func(msg *dummyMessage) bool { return msg.id != id })
	}
}

// expunge removes the deleted messages of a folder and returns the remaining ones.
func (state *dummyState) expunge(path string) []*dummyToken {
	state.lock.Lock()
	defer state.lock.Unlock()

	folder := state.folders[path]

	folder.messages = xslices.Filter(folder.messages, func(msg *dummyMessage) bool { return !msg.flags.Deleted() })

	return xslices.Map(slices.Clone(folder.messages), func(msg *dummyMessage) *dummyToken {
		return newDummyToken(path, msg)
	})
}

// dummyToken identifies a dummy message by its ID. The sequence number orders messages within their folder.
type dummyToken struct {
	id     string
	folder string
	seq    int
}

func newDummyToken(folder string, msg *dummyMessage) *dummyToken {
	return &dummyToken{id: msg.id, folder: folder, seq: msg.seq}
}

func (token *dummyToken) Key() string {
	return token.id
}

func (token *dummyToken) Compare(other mail.Token) int {
	o, ok := other.(*dummyToken)
	if !ok {
		return 0
	}

	return token.seq - o.seq
}

func (token *dummyToken) Update(other mail.Token) {
	if o, ok := other.(*dummyToken); ok && o.id == token.id {
		token.seq = o.seq
	}
}

func (token *dummyToken) Clone() mail.Token {
	clone := *token

	return &clone
}

func (token *dummyToken) Loadable() bool {
	return token.seq > 0
}

func (token *dummyToken) ContainedWithin(folder *mail.Folder) bool {
	return folder != nil && folder.Path == token.folder
}
