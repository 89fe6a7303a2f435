package connector

import (
	"time"

	"github.com/courier-mail/courier/mail"
)

// The following methods change the dummy server's state from outside a client session.

func (conn *Dummy) SimulateFolder(path string) {
	conn.state.createFolder(path)
}

// SimulateMessage delivers a message into the folder and marks the folder's state as changed.
func (conn *Dummy) SimulateMessage(path string, literal []byte, flags mail.Flags) mail.Token {
	conn.state.createFolder(path)

	token := conn.state.createMessage(path, literal, flags, time.Now())

	conn.InvalidateFolder(path)

	return token
}

func (conn *Dummy) SimulateFlags(token mail.Token, flags mail.Flags, add bool) {
	if tok, ok := token.(*dummyToken); ok {
		conn.state.setFlags(tok.folder, tok.id, flags, add)
		conn.InvalidateFolder(tok.folder)
	}
}

func (conn *Dummy) SimulateRemove(token mail.Token) {
	if tok, ok := token.(*dummyToken); ok {
		conn.state.removeMessage(tok.folder, tok.id)
		conn.InvalidateFolder(tok.folder)
	}
}

// InvalidateFolder makes the next folder change report path's state as invalid.
func (conn *Dummy) InvalidateFolder(path string) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	conn.invalid[path] = struct{}{}
}

// FailNext makes the next operations fail with errs, one each.
func (conn *Dummy) FailNext(errs ...error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	conn.failures = append(conn.failures, errs...)
}
