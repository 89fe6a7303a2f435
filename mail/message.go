package mail

import (
	"github.com/courier-mail/courier/message"
)

// FolderMessage is what a server reports about one message in a folder listing.
type FolderMessage struct {
	Token    Token
	Envelope *message.Envelope

	Flags Flags
	Size  int
}

// Clone returns a copy that shares the envelope but not the token.
func (msg FolderMessage) Clone() FolderMessage {
	if msg.Token != nil {
		msg.Token = msg.Token.Clone()
	}

	return msg
}

// FlagChange is the state of a message's flags after a change.
type FlagChange struct {
	Token Token
	Flags Flags
}
