package request

import (
	"context"
	"errors"

	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/message"
)

var ErrNoRecipients = errors.New("message has no recipients")

// Send serializes a message and submits it through the outgoing client.
type Send struct {
	Origin

	Envelope *message.Envelope
	Root     message.Part

	// Provider supplies leaf content; nil serializes each leaf's own payload.
	Provider message.ContentProvider
}

func (req *Send) Name() string {
	return "send"
}

func (req *Send) InitialStatus() string {
	return "Sending message"
}

func (req *Send) Execute(ctx context.Context, h *Handle[connector.Outgoing]) error {
	if len(req.Envelope.Recipients()) == 0 {
		return ErrNoRecipients
	}

	provider := req.Provider
	if provider == nil {
		provider = message.PayloadProvider
	}

	literal, err := message.SerializeMessage(req.Envelope, req.Root, provider)
	if err != nil {
		return err
	}

	if err := h.Client.SendMessage(ctx, req.Envelope, literal); err != nil {
		return err
	}

	h.Publish(events.MessageSent{Account: h.Account(), Envelope: req.Envelope, Literal: literal})

	return nil
}
