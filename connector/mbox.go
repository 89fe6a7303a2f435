package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bradenaw/juniper/xslices"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/message"
	"github.com/courier-mail/courier/rfc822"
	"github.com/emersion/go-mbox"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const mboxExt = ".mbox"

// Mbox is an incoming client for a local directory of mbox files, one per folder.
// Flags are kept in the Status, X-Status and X-Keywords headers of each message.
type Mbox struct {
	dir string
	log *logrus.Entry

	mu        sync.Mutex
	connected bool
	active    *mail.Folder
}

var _ Incoming = (*Mbox)(nil)

func NewMbox(dir string) *Mbox {
	return &Mbox{
		dir: dir,
		log: logrus.WithField("pkg", "connector").WithField("dir", dir),
	}
}

func (m *Mbox) Protocol() string {
	return "mbox"
}

func (m *Mbox) Capabilities() Capabilities {
	return Capabilities{Undelete: true, Append: true, Copy: true, Move: true, Flags: true}
}

// Open creates the directory and an empty inbox if they do not exist yet.
func (m *Mbox) Open(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(m.file(mail.Inbox), os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	m.connected = true

	return nil
}

func (m *Mbox) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	m.active = nil

	return nil
}

func (m *Mbox) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.connected
}

func (m *Mbox) FolderTree(context.Context) (*mail.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, mail.ErrNotConnected
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}

	names := xslices.Map(xslices.Filter(entries, func(entry os.DirEntry) bool {
		return !entry.IsDir() && strings.HasSuffix(entry.Name(), mboxExt)
	}), func(entry os.DirEntry) string {
		return strings.TrimSuffix(entry.Name(), mboxExt)
	})

	sort.Strings(names)

	root := &mail.Folder{}

	for _, name := range names {
		folder := mail.NewFolder(name, name, "")

		if messages, err := m.load(name); err == nil {
			folder.MsgCount = len(messages)
			folder.UnseenCount = xslices.CountFunc(messages, func(msg *mboxMessage) bool { return !msg.flags.Seen() })
		}

		root.AddChild(folder)
	}

	return root, nil
}

// CreateFolder creates an empty mbox file for name.
func (m *Mbox) CreateFolder(name string) (*mail.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.ContainsAny(name, `/\`) || name == "" {
		return nil, fmt.Errorf("invalid folder name %q", name)
	}

	if err := m.save(name, nil); err != nil {
		return nil, err
	}

	return mail.NewFolder(name, name, ""), nil
}

func (m *Mbox) RefreshFolderStatus(_ context.Context, folder *mail.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages, err := m.load(folder.Path)
	if err != nil {
		return err
	}

	folder.MsgCount = len(messages)
	folder.UnseenCount = xslices.CountFunc(messages, func(msg *mboxMessage) bool { return !msg.flags.Seen() })

	return nil
}

func (m *Mbox) ActiveFolder() *mail.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.active
}

// SetActiveFolder selects folder. Local files never become invalid behind the client's back.
func (m *Mbox) SetActiveFolder(_ context.Context, folder *mail.Folder) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return false, mail.ErrNotConnected
	}

	if _, err := os.Stat(m.file(folder.Path)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, mail.ErrNoSuchFolder
		}

		return false, err
	}

	m.active = mail.NewFolder(folder.Name, folder.Path, "")

	return true, nil
}

func (m *Mbox) SetActiveFolderByToken(ctx context.Context, token mail.Token) (*mail.Folder, error) {
	tok, ok := token.(*mboxToken)
	if !ok {
		return nil, fmt.Errorf("unexpected token type %T", token)
	}

	_, err := m.SetActiveFolder(ctx, mail.NewFolder(tok.folder, tok.folder, ""))

	return nil, err
}

func (m *Mbox) FolderMessages(_ context.Context, first, last int, progress mail.ProgressHandler) ([]mail.FolderMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.activePath()
	if err != nil {
		return nil, err
	}

	messages, err := m.load(path)
	if err != nil {
		return nil, err
	}

	if first < 1 {
		first = 1
	}

	if last > len(messages) {
		last = len(messages)
	}

	if first > last {
		return nil, nil
	}

	result := make([]mail.FolderMessage, 0, last-first+1)

	for i := first; i <= last; i++ {
		msg := messages[i-1]

		env, err := envelope(msg.literal)
		if err != nil {
			m.log.WithError(err).WithField("index", i).Warn("Failed to parse message header")
			env = &message.Envelope{Subject: message.DefaultSubject, Date: msg.date}
		}

		result = append(result, mail.FolderMessage{
			Token:    msg.token(path),
			Envelope: env,
			Flags:    msg.flags,
			Size:     len(msg.literal),
		})

		mail.NotifyProgress(progress, mail.ProgressProcessing, i-first+1, last-first+1)
	}

	return result, nil
}

func (m *Mbox) NewFolderMessages(ctx context.Context, progress mail.ProgressHandler) ([]mail.FolderMessage, error) {
	return m.FolderMessages(ctx, 1, int(^uint(0)>>1), progress)
}

func (m *Mbox) Message(_ context.Context, token mail.Token, progress mail.ProgressHandler) (*Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := token.(*mboxToken)
	if !ok {
		return nil, fmt.Errorf("unexpected token type %T", token)
	}

	messages, err := m.load(tok.folder)
	if err != nil {
		return nil, err
	}

	idx := xslices.IndexFunc(messages, func(msg *mboxMessage) bool { return msg.key == tok.key })
	if idx < 0 {
		return nil, mail.ErrNotLoadable
	}

	literal := messages[idx].literal

	mail.NotifyProgress(progress, mail.ProgressNetwork, len(literal), -1)

	structure, err := message.Parse(literal, true)
	if err != nil {
		return nil, err
	}

	return &Content{Literal: literal, Complete: true, Structure: structure}, nil
}

func (m *Mbox) ChangeFlags(_ context.Context, tokens []mail.Token, flags mail.Flags, add bool) ([]mail.FlagChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changes []mail.FlagChange

	for folder, folderTokens := range byFolder(tokens) {
		messages, err := m.load(folder)
		if err != nil {
			return changes, err
		}

		for _, token := range folderTokens {
			idx := xslices.IndexFunc(messages, func(msg *mboxMessage) bool { return msg.key == token.key })
			if idx < 0 {
				continue
			}

			messages[idx].flags = messages[idx].flags.Apply(flags, add)

			changes = append(changes, mail.FlagChange{Token: token, Flags: messages[idx].flags})
		}

		if err := m.save(folder, messages); err != nil {
			return changes, err
		}
	}

	return changes, nil
}

func (m *Mbox) Expunge(context.Context) ([]mail.FolderMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.activePath()
	if err != nil {
		return nil, err
	}

	messages, err := m.load(path)
	if err != nil {
		return nil, err
	}

	remaining := xslices.Filter(messages, func(msg *mboxMessage) bool { return !msg.flags.Deleted() })

	if err := m.save(path, remaining); err != nil {
		return nil, err
	}

	return xslices.Map(remaining, func(msg *mboxMessage) mail.FolderMessage {
		return mail.FolderMessage{Token: msg.token(path), Flags: msg.flags, Size: len(msg.literal)}
	}), nil
}

func (m *Mbox) Append(_ context.Context, folder *mail.Folder, literal []byte, flags mail.Flags) (mail.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages, err := m.load(folder.Path)
	if err != nil {
		return nil, err
	}

	msg := newMboxMessage(literal, flags, time.Now())
	messages = append(messages, msg)

	assignKeys(messages)

	if err := m.save(folder.Path, messages); err != nil {
		return nil, err
	}

	return msg.token(folder.Path), nil
}

func (m *Mbox) Copy(_ context.Context, tokens []mail.Token, folder *mail.Folder) error {
	return m.transfer(tokens, folder, false)
}

func (m *Mbox) Move(_ context.Context, tokens []mail.Token, folder *mail.Folder) error {
	return m.transfer(tokens, folder, true)
}

func (m *Mbox) transfer(tokens []mail.Token, folder *mail.Folder, remove bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.activePath()
	if err != nil {
		return err
	}

	if folder.Path == path {
		return nil
	}

	source, err := m.load(path)
	if err != nil {
		return err
	}

	target, err := m.load(folder.Path)
	if err != nil {
		return err
	}

	keys := make(map[string]struct{}, len(tokens))

	for _, token := range tokens {
		keys[token.Key()] = struct{}{}
	}

	kept := source[:0:0]

	for _, msg := range source {
		if _, ok := keys[msg.key]; !ok {
			kept = append(kept, msg)
			continue
		}

		target = append(target, newMboxMessage(msg.literal, msg.flags, msg.date))

		if !remove {
			kept = append(kept, msg)
		}
	}

	assignKeys(target)

	if err := m.save(folder.Path, target); err != nil {
		return err
	}

	if remove {
		return m.save(path, kept)
	}

	return nil
}

func (m *Mbox) Noop(context.Context) error {
	if !m.IsConnected() {
		return mail.ErrNotConnected
	}

	return nil
}

func (m *Mbox) activePath() (string, error) {
	if !m.connected {
		return "", mail.ErrNotConnected
	}

	if m.active == nil {
		return "", mail.ErrNoSuchFolder
	}

	return m.active.Path, nil
}

func (m *Mbox) file(folder string) string {
	return filepath.Join(m.dir, folder+mboxExt)
}

// load reads every message of a folder.
func (m *Mbox) load(folder string) ([]*mboxMessage, error) {
	f, err := os.Open(m.file(folder))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, mail.ErrNoSuchFolder
		}

		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var messages []*mboxMessage

	mr := mbox.NewReader(f)

	for {
		r, err := mr.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", folder, err)
		}

		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", folder, err)
		}

		messages = append(messages, parseMboxMessage(raw))
	}

	assignKeys(messages)

	return messages, nil
}

// save replaces the folder's file with the given messages.
func (m *Mbox) save(folder string, messages []*mboxMessage) error {
	tmp, err := os.CreateTemp(m.dir, folder+".*.tmp")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name()) //nolint:errcheck

	mw := mbox.NewWriter(tmp)

	for _, msg := range messages {
		w, err := mw.CreateMessage("MAILER-DAEMON", msg.date)
		if err != nil {
			return err
		}

		if _, err := w.Write(msg.withFlags()); err != nil {
			return err
		}
	}

	if err := mw.Close(); err != nil {
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), m.file(folder))
}

type mboxMessage struct {
	// key is derived from the content without flag headers, made unique within the folder.
	key     string
	literal []byte
	flags   mail.Flags
	date    time.Time
}

func newMboxMessage(literal []byte, flags mail.Flags, date time.Time) *mboxMessage {
	msg := parseMboxMessage(literal)

	msg.flags = flags
	msg.date = date

	return msg
}

// parseMboxMessage splits a stored message into its content and its flags.
func parseMboxMessage(raw []byte) *mboxMessage {
	raw = append(bytes.TrimRight(raw, "\r\n"), "\r\n"...)

	rawHeader, body := rfc822.Split(raw)

	msg := &mboxMessage{literal: raw, date: time.Now()}

	header, err := rfc822.NewHeader(rawHeader)
	if err != nil {
		return msg
	}

	msg.flags = flagsFromHeader(header)

	header.Del("Status")
	header.Del("X-Status")
	header.Del("X-Keywords")

	msg.literal = append(header.Raw(), body...)

	if env, err := message.ParseEnvelope(header); err == nil {
		msg.date = env.Date
	}

	return msg
}

// withFlags returns the literal with the flag headers prepended.
func (msg *mboxMessage) withFlags() []byte {
	rawHeader, body := rfc822.Split(msg.literal)

	header, err := rfc822.NewHeader(rawHeader)
	if err != nil {
		return msg.literal
	}

	status := "O"
	if msg.flags.Seen() {
		status = "RO"
	}

	var xstatus strings.Builder

	for _, c := range []struct {
		flag mail.Flags
		code byte
	}{
		{mail.FlagAnswered, 'A'},
		{mail.FlagFlagged, 'F'},
		{mail.FlagDeleted, 'D'},
		{mail.FlagDraft, 'T'},
	} {
		if msg.flags.Has(c.flag) {
			xstatus.WriteByte(c.code)
		}
	}

	if keywords := mail.KeywordsFromFlags(msg.flags & (mail.FlagJunk | mail.FlagForwarded)); keywords.Len() > 0 {
		header.Set("X-Keywords", strings.Join(keywords.ToSlice(), " "))
	}

	if xstatus.Len() > 0 {
		header.Set("X-Status", xstatus.String())
	}

	header.Set("Status", status)

	return append(header.Raw(), body...)
}

func (msg *mboxMessage) token(folder string) *mboxToken {
	return &mboxToken{key: msg.key, folder: folder}
}

func flagsFromHeader(header *rfc822.Header) mail.Flags {
	var flags mail.Flags

	if strings.Contains(header.Get("Status"), "R") {
		flags |= mail.FlagSeen
	}

	xstatus := header.Get("X-Status")

	for code, flag := range map[rune]mail.Flags{'A': mail.FlagAnswered, 'F': mail.FlagFlagged, 'D': mail.FlagDeleted, 'T': mail.FlagDraft} {
		if strings.ContainsRune(xstatus, code) {
			flags |= flag
		}
	}

	if keywords := header.Get("X-Keywords"); keywords != "" {
		flags |= mail.NewKeywordSet(strings.Fields(strings.ReplaceAll(keywords, ",", " "))...).Flags()
	}

	return flags
}

// assignKeys derives each message's key from its content. Identical messages are numbered in order.
func assignKeys(messages []*mboxMessage) {
	seen := make(map[string]int)

	for _, msg := range messages {
		key := uuid.NewSHA1(uuid.NameSpaceOID, msg.literal).String()

		if n := seen[key]; n > 0 {
			msg.key = fmt.Sprintf("%s-%d", key, n)
		} else {
			msg.key = key
		}

		seen[key]++
	}
}

func byFolder(tokens []mail.Token) map[string][]*mboxToken {
	folders := make(map[string][]*mboxToken)

	for _, token := range tokens {
		if tok, ok := token.(*mboxToken); ok {
			folders[tok.folder] = append(folders[tok.folder], tok)
		}
	}

	return folders
}

// mboxToken identifies a message by its content key. Messages in a file have no volatile index.
type mboxToken struct {
	key    string
	folder string
}

func (token *mboxToken) Key() string {
	return token.key
}

func (token *mboxToken) Compare(other mail.Token) int {
	return strings.Compare(token.key, other.Key())
}

func (token *mboxToken) Update(mail.Token) {}

func (token *mboxToken) Clone() mail.Token {
	clone := *token

	return &clone
}

func (token *mboxToken) Loadable() bool {
	return true
}

func (token *mboxToken) ContainedWithin(folder *mail.Folder) bool {
	return folder != nil && folder.Path == token.folder
}
