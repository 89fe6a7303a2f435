package request

import (
	"context"

	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
)

// FolderRefresh refreshes the counts of one folder, or of every selectable folder if Folder is nil.
type FolderRefresh struct {
	Origin

	Folder *mail.Folder
}

func (req *FolderRefresh) Name() string {
	return "folder-refresh"
}

func (req *FolderRefresh) InitialStatus() string {
	if req.Folder == nil {
		return "Refreshing folder list"
	}

	return "Refreshing folder status"
}

func (req *FolderRefresh) Execute(ctx context.Context, h *Handle[connector.Incoming]) error {
	folders := []*mail.Folder{req.Folder}

	if req.Folder == nil {
		root, err := h.Client.FolderTree(ctx)
		if err != nil {
			return err
		}

		folders = folders[:0]

		root.Walk(func(folder *mail.Folder) {
			if folder.Selectable {
				folders = append(folders, folder)
			}
		})
	}

	for _, folder := range folders {
		if err := h.Client.RefreshFolderStatus(ctx, folder); err != nil {
			return err
		}

		h.Publish(events.FolderStatusChanged{Account: h.Account(), Folder: folder})
	}

	return nil
}

// FolderMessagesRange lists the messages with session indexes First to Last.
type FolderMessagesRange struct {
	Origin

	Folder      *mail.Folder
	First, Last int

	// FlagsOnly asks the consumer to only refresh messages it already knows.
	FlagsOnly bool
}

func (req *FolderMessagesRange) Name() string {
	return "folder-messages-range"
}

func (req *FolderMessagesRange) InitialStatus() string {
	return "Retrieving message headers"
}

func (req *FolderMessagesRange) Execute(ctx context.Context, h *Handle[connector.Incoming]) error {
	if err := h.CheckActiveFolder(ctx, req.Folder); err != nil {
		return err
	}

	messages, err := h.Client.FolderMessages(ctx, req.First, req.Last, h.ProgressHandler(req.InitialStatus()))
	if err != nil {
		return err
	}

	publishMessages(h, req.Folder, messages, req.FlagsOnly)

	return nil
}

// FolderMessagesRecent lists the most recent messages of a folder.
type FolderMessagesRecent struct {
	Origin

	Folder    *mail.Folder
	FlagsOnly bool
}

func (req *FolderMessagesRecent) Name() string {
	return "folder-messages-recent"
}

func (req *FolderMessagesRecent) InitialStatus() string {
	return "Retrieving message headers"
}

func (req *FolderMessagesRecent) Execute(ctx context.Context, h *Handle[connector.Incoming]) error {
	if err := h.CheckActiveFolder(ctx, req.Folder); err != nil {
		return err
	}

	messages, err := h.Client.NewFolderMessages(ctx, h.ProgressHandler(req.InitialStatus()))
	if err != nil {
		return err
	}

	publishMessages(h, req.Folder, messages, req.FlagsOnly)

	return nil
}

func publishMessages(h *Handle[connector.Incoming], folder *mail.Folder, messages []mail.FolderMessage, flagsOnly bool) {
	h.Publish(events.FolderMessagesAvailable{
		Account:   h.Account(),
		Folder:    folder,
		Messages:  messages,
		FlagsOnly: flagsOnly,
		Server:    true,
	})
}
