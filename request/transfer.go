package request

import (
	"context"
	"errors"

	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
)

// Append stores a message in a folder, e.g. a sent message in the sent folder.
type Append struct {
	Origin

	Folder  *mail.Folder
	Literal []byte
	Flags   mail.Flags
}

func (req *Append) Name() string {
	return "append"
}

func (req *Append) InitialStatus() string {
	return "Saving message"
}

func (req *Append) Execute(ctx context.Context, h *Handle[connector.Incoming]) error {
	if !h.Client.Capabilities().Append {
		return mail.ErrUnsupported
	}

	if len(req.Literal) == 0 {
		return errors.New("cannot append an empty message")
	}

	token, err := h.Client.Append(ctx, req.Folder, req.Literal, req.Flags)
	if err != nil {
		return err
	}

	h.log.WithField("folder", req.Folder.Path).WithField("token", token.Key()).Debug("Appended message")

	if err := h.Client.RefreshFolderStatus(ctx, req.Folder); err != nil {
		return err
	}

	h.Publish(events.FolderStatusChanged{Account: h.Account(), Folder: req.Folder})

	return nil
}

// CopyMove copies or moves messages from Source into Target.
type CopyMove struct {
	Origin

	Source *mail.Folder
	Target *mail.Folder
	Tokens []mail.Token
	Move   bool
}

func (req *CopyMove) Name() string {
	if req.Move {
		return "move"
	}

	return "copy"
}

func (req *CopyMove) InitialStatus() string {
	if req.Move {
		return "Moving messages"
	}

	return "Copying messages"
}

func (req *CopyMove) Execute(ctx context.Context, h *Handle[connector.Incoming]) error {
	caps := h.Client.Capabilities()

	if (req.Move && !caps.Move) || (!req.Move && !caps.Copy) {
		return mail.ErrUnsupported
	}

	if len(req.Tokens) == 0 || req.Source.Same(req.Target) {
		return nil
	}

	if err := h.CheckActiveFolder(ctx, req.Source); err != nil {
		return err
	}

	transfer := h.Client.Copy
	if req.Move {
		transfer = h.Client.Move
	}

	if err := transfer(ctx, req.Tokens, req.Target); err != nil {
		return err
	}

	for _, folder := range []*mail.Folder{req.Source, req.Target} {
		if err := h.Client.RefreshFolderStatus(ctx, folder); err != nil {
			return err
		}

		h.Publish(events.FolderStatusChanged{Account: h.Account(), Folder: folder})
	}

	if req.Move {
		h.Publish(events.FolderRefreshRequired{Account: h.Account(), Folder: req.Source, Deliberate: req.Deliberate()})
	}

	return nil
}
