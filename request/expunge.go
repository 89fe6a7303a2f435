package request

import (
	"context"

	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
)

// Expunge permanently removes the messages of a folder that are flagged deleted.
type Expunge struct {
	Origin

	Folder *mail.Folder
}

func (req *Expunge) Name() string {
	return "expunge"
}

func (req *Expunge) InitialStatus() string {
	return "Expunging deleted messages"
}

func (req *Expunge) Execute(ctx context.Context, h *Handle[connector.Incoming]) error {
	if err := h.CheckActiveFolder(ctx, req.Folder); err != nil {
		return err
	}

	h.Publish(events.FolderExpungeRequested{Account: h.Account(), Folder: req.Folder})

	remaining, err := h.Client.Expunge(ctx)
	if err != nil {
		return err
	}

	// Refresh the volatile state of the survivors before confirming the removal.
	publishMessages(h, req.Folder, remaining, true)

	h.Publish(events.FolderExpunged{Account: h.Account(), Folder: req.Folder})

	if err := h.Client.RefreshFolderStatus(ctx, req.Folder); err != nil {
		return err
	}

	h.Publish(events.FolderStatusChanged{Account: h.Account(), Folder: req.Folder})

	return nil
}
