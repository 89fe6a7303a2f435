package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bradenaw/juniper/xslices"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/message"
)

// Dummy is an in-memory incoming client with a full folder tree and server-side flags.
type Dummy struct {
	// state holds the fake server state.
	state *dummyState

	// recent is the number of messages listed by NewFolderMessages.
	recent int

	mu sync.Mutex

	connected bool
	active    *mail.Folder

	// invalid holds the folders whose state changed behind the client's back.
	invalid map[string]struct{}

	// failures are returned by the next operations, one each.
	failures []error
}

var _ Incoming = (*Dummy)(nil)

func NewDummy(recent int) *Dummy {
	conn := &Dummy{
		state:   newDummyState(),
		recent:  recent,
		invalid: make(map[string]struct{}),
	}

	conn.state.createFolder(mail.Inbox)

	return conn
}

func (conn *Dummy) Protocol() string {
	return "dummy"
}

func (conn *Dummy) Capabilities() Capabilities {
	return Capabilities{Undelete: true, Append: true, Copy: true, Move: true, Flags: true}
}

func (conn *Dummy) Open(context.Context) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	if err := conn.popFailure(); err != nil {
		return err
	}

	conn.connected = true

	return nil
}

func (conn *Dummy) Close(context.Context) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	conn.connected = false
	conn.active = nil

	return nil
}

func (conn *Dummy) IsConnected() bool {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	return conn.connected
}

func (conn *Dummy) FolderTree(context.Context) (*mail.Folder, error) {
	if err := conn.check(); err != nil {
		return nil, err
	}

	return conn.state.tree(), nil
}

func (conn *Dummy) RefreshFolderStatus(_ context.Context, folder *mail.Folder) error {
	if err := conn.check(); err != nil {
		return err
	}

	count, unseen, ok := conn.state.folderCounts(folder.Path)
	if !ok {
		return mail.ErrNoSuchFolder
	}

	folder.MsgCount, folder.UnseenCount = count, unseen

	return nil
}

func (conn *Dummy) ActiveFolder() *mail.Folder {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	return conn.active
}

func (conn *Dummy) SetActiveFolder(ctx context.Context, folder *mail.Folder) (bool, error) {
	if err := conn.check(); err != nil {
		return false, err
	}

	invalid, err := conn.selectFolder(folder.Path)
	if err != nil {
		return false, err
	}

	return invalid == nil, nil
}

func (conn *Dummy) SetActiveFolderByToken(_ context.Context, token mail.Token) (*mail.Folder, error) {
	if err := conn.check(); err != nil {
		return nil, err
	}

	tok, ok := token.(*dummyToken)
	if !ok {
		return nil, fmt.Errorf("unexpected token type %T", token)
	}

	return conn.selectFolder(tok.folder)
}

// selectFolder makes path active and returns the previously active folder if its state became invalid.
func (conn *Dummy) selectFolder(path string) (*mail.Folder, error) {
	if !conn.state.hasFolder(path) {
		return nil, mail.ErrNoSuchFolder
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	prev := conn.active

	folder, _ := conn.state.tree().Find(path)
	conn.active = folder

	if prev == nil {
		return nil, nil
	}

	if _, ok := conn.invalid[prev.Path]; !ok {
		return nil, nil
	}

	delete(conn.invalid, prev.Path)

	return prev, nil
}

func (conn *Dummy) FolderMessages(_ context.Context, first, last int, progress mail.ProgressHandler) ([]mail.FolderMessage, error) {
	path, err := conn.activePath()
	if err != nil {
		return nil, err
	}

	tokens := conn.state.messages(path, first, last)

	messages := make([]mail.FolderMessage, 0, len(tokens))

	for i, token := range tokens {
		msg, ok := conn.state.message(path, token.id)
		if !ok {
			continue
		}

		env, err := envelope(msg.literal)
		if err != nil {
			return nil, err
		}

		messages = append(messages, mail.FolderMessage{
			Token:    token,
			Envelope: env,
			Flags:    msg.flags,
			Size:     len(msg.literal),
		})

		mail.NotifyProgress(progress, mail.ProgressNetwork, len(msg.literal), -1)
		mail.NotifyProgress(progress, mail.ProgressProcessing, i+1, len(tokens))
	}

	return messages, nil
}

func (conn *Dummy) NewFolderMessages(ctx context.Context, progress mail.ProgressHandler) ([]mail.FolderMessage, error) {
	path, err := conn.activePath()
	if err != nil {
		return nil, err
	}

	count, _, _ := conn.state.folderCounts(path)

	return conn.FolderMessages(ctx, count-conn.recent+1, count, progress)
}

func (conn *Dummy) Message(_ context.Context, token mail.Token, progress mail.ProgressHandler) (*Content, error) {
	if err := conn.check(); err != nil {
		return nil, err
	}

	tok, ok := token.(*dummyToken)
	if !ok {
		return nil, fmt.Errorf("unexpected token type %T", token)
	}

	msg, ok := conn.state.message(tok.folder, tok.id)
	if !ok {
		return nil, mail.ErrNotLoadable
	}

	mail.NotifyProgress(progress, mail.ProgressNetwork, len(msg.literal), -1)

	structure, err := message.Parse(msg.literal, true)
	if err != nil {
		return nil, err
	}

	return &Content{Literal: msg.literal, Complete: true, Structure: structure}, nil
}

func (conn *Dummy) ChangeFlags(_ context.Context, tokens []mail.Token, flags mail.Flags, add bool) ([]mail.FlagChange, error) {
	if err := conn.check(); err != nil {
		return nil, err
	}

	changes := make([]mail.FlagChange, 0, len(tokens))

	for _, token := range tokens {
		tok, ok := token.(*dummyToken)
		if !ok {
			return changes, fmt.Errorf("unexpected token type %T", token)
		}

		updated, ok := conn.state.setFlags(tok.folder, tok.id, flags, add)
		if !ok {
			continue
		}

		changes = append(changes, mail.FlagChange{Token: token, Flags: updated})
	}

	return changes, nil
}

func (conn *Dummy) Expunge(context.Context) ([]mail.FolderMessage, error) {
	path, err := conn.activePath()
	if err != nil {
		return nil, err
	}

	return xslices.Map(conn.state.expunge(path), func(token *dummyToken) mail.FolderMessage {
		msg, _ := conn.state.message(path, token.id)

		return mail.FolderMessage{Token: token, Flags: msg.flags, Size: len(msg.literal)}
	}), nil
}

func (conn *Dummy) Append(_ context.Context, folder *mail.Folder, literal []byte, flags mail.Flags) (mail.Token, error) {
	if err := conn.check(); err != nil {
		return nil, err
	}

	if !conn.state.hasFolder(folder.Path) {
		return nil, mail.ErrNoSuchFolder
	}

	return conn.state.createMessage(folder.Path, literal, flags, time.Now()), nil
}

func (conn *Dummy) Copy(ctx context.Context, tokens []mail.Token, folder *mail.Folder) error {
	return conn.transfer(tokens, folder, false)
}

func (conn *Dummy) Move(ctx context.Context, tokens []mail.Token, folder *mail.Folder) error {
	return conn.transfer(tokens, folder, true)
}

func (conn *Dummy) transfer(tokens []mail.Token, folder *mail.Folder, remove bool) error {
	path, err := conn.activePath()
	if err != nil {
		return err
	}

	if !conn.state.hasFolder(folder.Path) {
		return mail.ErrNoSuchFolder
	}

	for _, token := range tokens {
		msg, ok := conn.state.message(path, token.Key())
		if !ok {
			continue
		}

		conn.state.createMessage(folder.Path, msg.literal, msg.flags, msg.date)

		if remove {
			conn.state.removeMessage(path, msg.id)
		}
	}

	return nil
}

func (conn *Dummy) Noop(context.Context) error {
	return conn.check()
}

// check returns the next injected failure, or an error if the client is not connected.
func (conn *Dummy) check() error {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	if err := conn.popFailure(); err != nil {
		return err
	}

	if !conn.connected {
		return mail.ErrNotConnected
	}

	return nil
}

func (conn *Dummy) activePath() (string, error) {
	if err := conn.check(); err != nil {
		return "", err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	if conn.active == nil {
		return "", mail.ErrNoSuchFolder
	}

	return conn.active.Path, nil
}

func (conn *Dummy) popFailure() error {
	if len(conn.failures) == 0 {
		return nil
	}

	err := conn.failures[0]
	conn.failures = conn.failures[1:]

	return err
}
