package request

import (
	"context"
	"fmt"

	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/message"
	"github.com/courier-mail/courier/observability"
	"github.com/courier-mail/courier/store"
)

// MessageFetch downloads one message. Complete downloads are saved to the account's store.
type MessageFetch struct {
	Origin

	Folder *mail.Folder
	Token  mail.Token

	// Cached allows serving the message from the store without contacting the server.
	Cached bool
}

func (req *MessageFetch) Name() string {
	return "message-fetch"
}

func (req *MessageFetch) InitialStatus() string {
	return "Downloading message"
}

func (req *MessageFetch) Execute(ctx context.Context, h *Handle[connector.Incoming]) error {
	key := store.Key(h.Account(), req.Folder.Path, req.Token.Key())

	if st := h.Store(); req.Cached && st != nil {
		if literal, err := st.Get(key); err == nil {
			structure, err := message.Parse(literal, true)
			if err != nil {
				return err
			}

			h.Publish(events.MessageAvailable{
				Account:   h.Account(),
				Folder:    req.Folder,
				Token:     req.Token,
				Literal:   literal,
				Structure: structure,
				Complete:  true,
			})

			return nil
		}
	}

	if err := h.CheckActiveFolderForToken(ctx, req.Token); err != nil {
		return err
	}

	content, err := h.Client.Message(ctx, req.Token, h.ProgressHandler(req.InitialStatus()))
	if err != nil {
		return err
	}

	if st := h.Store(); st != nil && content.Complete {
		if err := store.Tx(st, func(tx store.Transaction) error {
			return tx.Set(key, content.Literal)
		}); err != nil {
			h.log.WithError(err).Warn("Failed to store message content")
			observability.AddFailure(ctx, observability.FailureStoreContent)
		}
	}

	h.Publish(events.MessageAvailable{
		Account:   h.Account(),
		Folder:    req.Folder,
		Token:     req.Token,
		Literal:   content.Literal,
		Structure: content.Structure,
		Complete:  content.Complete,
	})

	return nil
}

// FlagChange adds or removes flags. With Token set, one of deleted, answered, forwarded or seen is changed on
// that message. With Tokens set, only adding the seen flag is supported.
type FlagChange struct {
	Origin

	Folder *mail.Folder
	Token  mail.Token
	Tokens []mail.Token

	Flags mail.Flags
	Add   bool
}

func (req *FlagChange) Name() string {
	return "flag-change"
}

func (req *FlagChange) InitialStatus() string {
	if req.Token != nil && req.Flags.Deleted() {
		if req.Add {
			return "Deleting message"
		}

		return "Undeleting message"
	}

	return "Updating message flags"
}

func (req *FlagChange) Execute(ctx context.Context, h *Handle[connector.Incoming]) error {
	var (
		tokens []mail.Token
		flags  mail.Flags
	)

	switch {
	case req.Token != nil:
		tokens = []mail.Token{req.Token}

		switch {
		case req.Flags.Deleted():
			if !req.Add && !h.Client.Capabilities().Undelete {
				return mail.ErrUnsupported
			}

			flags = mail.FlagDeleted

		case req.Flags.Answered() && req.Add:
			flags = mail.FlagAnswered

		case req.Flags.Forwarded() && req.Add:
			flags = mail.FlagForwarded

		case req.Flags.Seen():
			flags = mail.FlagSeen

		default:
			return fmt.Errorf("%w: changing %v on a single message", mail.ErrUnsupported, req.Flags)
		}

	case len(req.Tokens) > 0:
		if !req.Flags.Seen() || !req.Add {
			return fmt.Errorf("%w: changing %v on a message set", mail.ErrUnsupported, req.Flags)
		}

		tokens, flags = req.Tokens, mail.FlagSeen

	default:
		return nil
	}

	if err := h.CheckActiveFolderForToken(ctx, tokens[0]); err != nil {
		return err
	}

	changes, err := h.Client.ChangeFlags(ctx, tokens, flags, req.Add)
	if err != nil {
		return err
	}

	if len(changes) > 0 {
		h.Publish(events.MessageFlagsChanged{Account: h.Account(), Folder: req.Folder, Changes: changes})
	}

	return nil
}

// merge folds consecutive requests marking messages of the same folder as seen into one.
func (req *FlagChange) merge(next Request[connector.Incoming]) (Request[connector.Incoming], bool) {
	other, ok := next.(*FlagChange)
	if !ok || !req.marksSeen() || !other.marksSeen() || !req.Folder.Same(other.Folder) {
		return req, false
	}

	return &FlagChange{
		Origin: Origin{Automatic: req.Automatic && other.Automatic},
		Folder: req.Folder,
		Tokens: append(append([]mail.Token(nil), req.tokens()...), other.tokens()...),
		Flags:  mail.FlagSeen,
		Add:    true,
	}, true
}

func (req *FlagChange) marksSeen() bool {
	return req.Add && req.Flags == mail.FlagSeen
}

func (req *FlagChange) tokens() []mail.Token {
	if req.Token != nil {
		return []mail.Token{req.Token}
	}

	return req.Tokens
}
