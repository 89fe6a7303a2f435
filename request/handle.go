package request

import (
	"context"
	"fmt"

	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/store"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const (
	progressThreshold    = 128
	progressMaxThreshold = 1024
)

// Handle is what a running request uses to reach its client and report back.
type Handle[C Client] struct {
	Client C

	id         string
	account    string
	deliberate bool

	publish func(events.Event)
	store   store.Store
	log     *logrus.Entry
}

func (h *Handle[C]) ID() string {
	return h.id
}

func (h *Handle[C]) Account() string {
	return h.account
}

// Store returns the content cache of the account. It may be nil.
func (h *Handle[C]) Store() store.Store {
	return h.store
}

func (h *Handle[C]) Publish(event events.Event) {
	h.publish(event)
}

func (h *Handle[C]) ShowStatus(message string) {
	h.publish(events.RequestStatus{RequestID: h.id, Message: message, Progress: -1})
}

func (h *Handle[C]) ShowProgress(message string, percent int) {
	h.publish(events.RequestStatus{RequestID: h.id, Message: message, Progress: percent})
}

// ProgressHandler turns client progress into status updates. Network progress is coalesced: an update is shown
// once 128 more bytes arrived, then every kilobyte once the first kilobyte is reached. Processing progress is
// shown as a percentage when the total is known.
func (h *Handle[C]) ProgressHandler(message string) mail.ProgressHandler {
	return &progressHandler[C]{h: h, message: message, threshold: progressThreshold}
}

// CheckActiveFolder selects folder unless it already is the active one. If the client reports that the previously
// active folder's state became invalid, a FolderRefreshRequired event is published for that folder.
func (h *Handle[C]) CheckActiveFolder(ctx context.Context, folder *mail.Folder) error {
	client, err := h.incoming()
	if err != nil {
		return err
	}

	active := client.ActiveFolder()
	if active != nil && active.Same(folder) {
		return nil
	}

	valid, err := client.SetActiveFolder(ctx, folder)
	if err != nil {
		return err
	}

	if !valid {
		invalid := active
		if invalid == nil {
			invalid = folder
		}

		h.log.WithField("folder", invalid.Path).Debug("Folder state became invalid")

		h.publish(events.FolderRefreshRequired{Account: h.account, Folder: invalid, Deliberate: h.deliberate})
	}

	return nil
}

// CheckActiveFolderForToken selects the folder containing token. A folder reported invalid by the client is
// published as FolderRefreshRequired.
func (h *Handle[C]) CheckActiveFolderForToken(ctx context.Context, token mail.Token) error {
	client, err := h.incoming()
	if err != nil {
		return err
	}

	if active := client.ActiveFolder(); active != nil && token.ContainedWithin(active) {
		return nil
	}

	invalid, err := client.SetActiveFolderByToken(ctx, token)
	if err != nil {
		return err
	}

	if invalid != nil {
		h.publish(events.FolderRefreshRequired{Account: h.account, Folder: invalid, Deliberate: h.deliberate})
	}

	return nil
}

func (h *Handle[C]) incoming() (connector.Incoming, error) {
	client, ok := any(h.Client).(connector.Incoming)
	if !ok {
		return nil, fmt.Errorf("%T is not an incoming client", h.Client)
	}

	return client, nil
}

type progressHandler[C Client] struct {
	h       *Handle[C]
	message string

	total, lastTotal, threshold int
}

func (p *progressHandler[C]) MailProgress(kind mail.ProgressKind, count, max int) {
	switch kind {
	case mail.ProgressNetwork:
		p.total += count

		if p.total-p.lastTotal < p.threshold {
			return
		}

		p.h.ShowStatus(fmt.Sprintf("%s (%s)...", p.message, humanize.Bytes(uint64(p.total))))

		p.lastTotal = p.total

		if p.threshold < progressMaxThreshold && p.total >= progressMaxThreshold {
			p.threshold = progressMaxThreshold
		}

	case mail.ProgressProcessing:
		if max <= 0 {
			return
		}

		percent := 0
		if count > 0 {
			percent = count * 100 / max
		}

		p.h.ShowProgress(fmt.Sprintf("%s (%d%%)...", p.message, percent), percent)
	}
}
