package pop3

import (
	"fmt"

	"github.com/courier-mail/courier/mail"
)

// Token identifies a POP message by its UIDL. The index is the message number in the current session and is
// -1 once the message could not be found on the server any more.
type Token struct {
	uid   string
	index int
}

func NewToken(uid string, index int) *Token {
	return &Token{uid: uid, index: index}
}

func (token *Token) UID() string {
	return token.uid
}

func (token *Token) Index() int {
	return token.index
}

func (token *Token) SetIndex(index int) {
	token.index = index
}

// Invalidate marks the token as no longer present in the current session.
func (token *Token) Invalidate() {
	token.index = -1
}

func (token *Token) Key() string {
	return token.uid
}

func (token *Token) Compare(other mail.Token) int {
	o, ok := other.(*Token)
	if !ok {
		return 0
	}

	switch {
	case token.index < o.index:
		return -1

	case token.index > o.index:
		return 1

	default:
		return 0
	}
}

func (token *Token) Update(other mail.Token) {
	if o, ok := other.(*Token); ok && o.uid == token.uid {
		token.index = o.index
	}
}

// Clone keeps the index so that a copy taken within a session can still be fetched.
func (token *Token) Clone() mail.Token {
	return &Token{uid: token.uid, index: token.index}
}

func (token *Token) Loadable() bool {
	return token.index != -1
}

// ContainedWithin is always true: a POP account has a single folder.
func (token *Token) ContainedWithin(*mail.Folder) bool {
	return true
}

func (token *Token) String() string {
	return fmt.Sprintf("%s@%d", token.uid, token.index)
}
