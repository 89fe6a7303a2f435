package pop3

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/message"
	"github.com/courier-mail/courier/observability"
	"github.com/courier-mail/courier/rfc822"
	"github.com/courier-mail/courier/transport"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRetMsgCount  = 30
	DefaultPopMaxLines  = 500
	DefaultStallTimeout = 60 * time.Second
)

type Config struct {
	Username string
	Password string

	// Security selects whether STLS is issued after the greeting.
	Security transport.Security

	// RetMsgCount is the number of most recent messages listed by NewFolderMessages.
	RetMsgCount int

	// PopMaxLines limits the body lines downloaded per message. A negative value downloads whole messages.
	PopMaxLines int

	StallTimeout time.Duration
}

// Client is an incoming mail client for a POP3 mailbox.
type Client struct {
	cfg Config
	tr  transport.Transport
	log *logrus.Entry

	proto *Protocol

	root   *mail.Folder
	inbox  *mail.Folder
	active *mail.Folder

	// tokens are the tokens handed out, revalidated on every reconnect.
	tokens map[string]*Token

	// flags are kept on the client since POP has no server-side flags.
	flags map[string]mail.Flags
}

var _ connector.Incoming = (*Client)(nil)

func NewClient(cfg Config, tr transport.Transport) *Client {
	if cfg.RetMsgCount <= 0 {
		cfg.RetMsgCount = DefaultRetMsgCount
	}

	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = DefaultStallTimeout
	}

	root := &mail.Folder{Delim: "/"}
	inbox := mail.NewFolder(mail.Inbox, mail.Inbox, "/")
	root.AddChild(inbox)

	return &Client{
		cfg:    cfg,
		tr:     tr,
		log:    logrus.WithField("pkg", "pop3").WithField("host", tr.Host()),
		root:   root,
		inbox:  inbox,
		tokens: make(map[string]*Token),
		flags:  make(map[string]mail.Flags),
	}
}

func (c *Client) Protocol() string {
	return protocolName
}

func (c *Client) Capabilities() connector.Capabilities {
	return connector.Capabilities{}
}

// Open connects and logs in. Tokens handed out by an earlier session are revalidated.
func (c *Client) Open(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}

	if err := c.open(ctx); err != nil {
		c.disconnect()
		return err
	}

	if len(c.tokens) > 0 {
		if err := c.revalidate(nil); err != nil {
			c.disconnect()
			return err
		}
	}

	return nil
}

func (c *Client) open(ctx context.Context) error {
	err := c.tr.Open(ctx)

	observability.AddConnection(ctx, protocolName, err)

	if err != nil {
		return err
	}

	c.proto = NewProtocol(ctx, c.tr, c.cfg.StallTimeout)

	if _, err := c.proto.ReceiveGreeting(); err != nil {
		return fmt.Errorf("failed to receive greeting: %w", err)
	}

	if c.cfg.Security == transport.SecurityStartTLS {
		if err := c.startTLS(ctx); err != nil {
			return err
		}
	}

	err = c.login()

	observability.AddAuthAttempt(ctx, protocolName, err)

	if err != nil {
		return err
	}

	c.log.Info("Logged in")

	count, err := c.proto.Stat()
	if err != nil {
		return err
	}

	c.inbox.MsgCount = count

	return nil
}

func (c *Client) startTLS(ctx context.Context) error {
	capabilities, err := c.proto.Capa()
	if err != nil {
		return err
	}

	if capabilities != nil {
		if _, ok := capabilities["STLS"]; !ok {
			return &mail.ProtocolError{Command: "STLS", Message: "server does not support STLS", Fatal: true}
		}
	}

	ok, err := c.proto.Stls(ctx)
	if err != nil {
		return err
	}

	if !ok {
		return &mail.ProtocolError{Command: "STLS", Message: "server refused STLS", Fatal: true}
	}

	return nil
}

func (c *Client) login() error {
	if err := c.proto.User(c.cfg.Username); err != nil {
		return err
	}

	return c.proto.Pass(c.cfg.Password)
}

// Close ends the session. Errors from QUIT are ignored since the connection is dropped anyway.
func (c *Client) Close(ctx context.Context) error {
	if c.proto != nil && c.tr.IsConnected() {
		if err := c.proto.Quit(); err != nil {
			c.log.WithError(err).Debug("QUIT failed")
		}
	}

	c.disconnect()

	return nil
}

func (c *Client) disconnect() {
	if err := c.tr.Close(); err != nil {
		c.log.WithError(err).Debug("Failed to close transport")
	}

	if c.proto != nil {
		c.proto.Stop()
		c.proto = nil
	}

	c.active = nil
}

func (c *Client) IsConnected() bool {
	return c.proto != nil && c.tr.IsConnected()
}

func (c *Client) FolderTree(context.Context) (*mail.Folder, error) {
	return c.root.Clone(), nil
}

func (c *Client) RefreshFolderStatus(_ context.Context, folder *mail.Folder) error {
	if !folder.Same(c.inbox) {
		return mail.ErrNoSuchFolder
	}

	if err := c.connected(); err != nil {
		return err
	}

	count, err := c.proto.Stat()
	if err != nil {
		return err
	}

	c.inbox.MsgCount = count
	c.inbox.UnseenCount = c.unseen(count)

	folder.MsgCount = c.inbox.MsgCount
	folder.UnseenCount = c.inbox.UnseenCount

	return nil
}

func (c *Client) ActiveFolder() *mail.Folder {
	return c.active
}

// SetActiveFolder selects the inbox. A POP session never invalidates its only folder.
func (c *Client) SetActiveFolder(_ context.Context, folder *mail.Folder) (bool, error) {
	if !folder.Same(c.inbox) {
		return false, mail.ErrNoSuchFolder
	}

	c.active = c.inbox

	return true, nil
}

func (c *Client) SetActiveFolderByToken(_ context.Context, token mail.Token) (*mail.Folder, error) {
	if _, ok := token.(*Token); !ok {
		return nil, fmt.Errorf("unexpected token type %T", token)
	}

	c.active = c.inbox

	return nil, nil
}

// FolderMessages lists messages first to last, both 1-based and inclusive, with envelopes from their headers.
func (c *Client) FolderMessages(ctx context.Context, first, last int, progress mail.ProgressHandler) ([]mail.FolderMessage, error) {
	if err := c.connected(); err != nil {
		return nil, err
	}

	if first < 1 {
		first = 1
	}

	if last > c.inbox.MsgCount {
		last = c.inbox.MsgCount
	}

	if first > last {
		return nil, nil
	}

	sizes, err := c.proto.ListAll(progress)
	if err != nil {
		return nil, err
	}

	messages := make([]mail.FolderMessage, 0, last-first+1)

	for index := first; index <= last; index++ {
		literal, err := c.proto.Top(index, 0, progress)
		if err != nil {
			return nil, err
		}

		uid, err := c.proto.Uidl(index)
		if err != nil {
			return nil, err
		}

		messages = append(messages, mail.FolderMessage{
			Token:    c.register(uid, index),
			Envelope: c.envelope(ctx, literal),
			Flags:    c.flags[uid],
			Size:     sizes[index],
		})

		mail.NotifyProgress(progress, mail.ProgressProcessing, index-first+1, last-first+1)
	}

	return messages, nil
}

// NewFolderMessages lists the last RetMsgCount messages.
func (c *Client) NewFolderMessages(ctx context.Context, progress mail.ProgressHandler) ([]mail.FolderMessage, error) {
	if err := c.RefreshFolderStatus(ctx, c.inbox); err != nil {
		return nil, err
	}

	first := c.inbox.MsgCount - c.cfg.RetMsgCount + 1
	if first < 1 {
		first = 1
	}

	return c.FolderMessages(ctx, first, c.inbox.MsgCount, progress)
}

// Message downloads a message, truncated to PopMaxLines body lines unless that is negative.
func (c *Client) Message(ctx context.Context, token mail.Token, progress mail.ProgressHandler) (*connector.Content, error) {
	if err := c.connected(); err != nil {
		return nil, err
	}

	index, err := c.index(token)
	if err != nil {
		return nil, err
	}

	var (
		literal  []byte
		complete bool
	)

	if c.cfg.PopMaxLines < 0 {
		if literal, err = c.proto.Retr(index, progress); err != nil {
			return nil, err
		}

		complete = true
	} else {
		if literal, err = c.proto.Top(index, c.cfg.PopMaxLines, progress); err != nil {
			return nil, err
		}

		complete = bodyLines(literal) < c.cfg.PopMaxLines
	}

	content := &connector.Content{Literal: literal, Complete: complete}

	if content.Structure, err = message.Parse(literal, complete); err != nil {
		c.log.WithError(err).WithField("token", token.Key()).Warn("Failed to parse message structure")
		observability.AddFailure(ctx, observability.FailureParseMessage)
	}

	return content, nil
}

// ChangeFlags deletes messages with DELE. Every other flag is kept on the client only.
func (c *Client) ChangeFlags(_ context.Context, tokens []mail.Token, flags mail.Flags, add bool) ([]mail.FlagChange, error) {
	if flags.Deleted() {
		if !add {
			return nil, fmt.Errorf("undelete: %w", mail.ErrUnsupported)
		}

		if err := c.connected(); err != nil {
			return nil, err
		}
	}

	changes := make([]mail.FlagChange, 0, len(tokens))

	for _, token := range tokens {
		if flags.Deleted() {
			index, err := c.index(token)
			if err != nil {
				return changes, err
			}

			if err := c.proto.Dele(index); err != nil {
				return changes, err
			}
		}

		c.flags[token.Key()] = c.flags[token.Key()].Apply(flags, add)

		changes = append(changes, mail.FlagChange{Token: token, Flags: c.flags[token.Key()]})
	}

	return changes, nil
}

// Expunge commits deletions by ending the session, then reconnects and returns the remaining messages.
func (c *Client) Expunge(ctx context.Context) ([]mail.FolderMessage, error) {
	if err := c.connected(); err != nil {
		return nil, err
	}

	if err := c.proto.Quit(); err != nil {
		return nil, err
	}

	c.disconnect()

	if err := c.open(ctx); err != nil {
		c.disconnect()
		return nil, err
	}

	c.active = c.inbox

	var remaining []mail.FolderMessage

	if err := c.revalidate(func(token *Token) {
		remaining = append(remaining, mail.FolderMessage{Token: token.Clone(), Flags: c.flags[token.uid]})
	}); err != nil {
		return nil, err
	}

	return remaining, nil
}

func (c *Client) Append(context.Context, *mail.Folder, []byte, mail.Flags) (mail.Token, error) {
	return nil, mail.ErrUnsupported
}

func (c *Client) Copy(context.Context, []mail.Token, *mail.Folder) error {
	return mail.ErrUnsupported
}

func (c *Client) Move(context.Context, []mail.Token, *mail.Folder) error {
	return mail.ErrUnsupported
}

func (c *Client) Noop(context.Context) error {
	if err := c.connected(); err != nil {
		return err
	}

	return c.proto.Noop()
}

// revalidate refreshes the index of every handed out token from a whole-mailbox UIDL.
// Tokens of messages no longer on the server are invalidated and their local flags dropped.
func (c *Client) revalidate(fn func(*Token)) error {
	uids, err := c.proto.UidlAll(nil)
	if err != nil {
		return err
	}

	indexes := make(map[string]int, len(uids))

	for index, uid := range uids {
		indexes[uid] = index
	}

	for uid, token := range c.tokens {
		index, ok := indexes[uid]
		if !ok {
			token.Invalidate()
			delete(c.tokens, uid)
			delete(c.flags, uid)

			continue
		}

		token.SetIndex(index)
	}

	if fn == nil {
		return nil
	}

	for index := 1; index <= len(uids); index++ {
		uid, ok := uids[index]
		if !ok {
			continue
		}

		fn(c.register(uid, index))
	}

	return nil
}

// register returns the token for uid, creating it if needed.
func (c *Client) register(uid string, index int) *Token {
	if token, ok := c.tokens[uid]; ok {
		token.SetIndex(index)
		return token
	}

	token := NewToken(uid, index)
	c.tokens[uid] = token

	return token
}

// index resolves the current session index of token.
func (c *Client) index(token mail.Token) (int, error) {
	tok, ok := token.(*Token)
	if !ok {
		return 0, fmt.Errorf("unexpected token type %T", token)
	}

	if known, ok := c.tokens[tok.uid]; ok {
		tok.Update(known)
	} else if tok.Loadable() {
		// A token from an earlier session: check its index still holds the same message.
		c.tokens[tok.uid] = tok

		if uid, err := c.proto.Uidl(tok.index); err != nil || uid != tok.uid {
			if err := c.revalidate(nil); err != nil {
				return 0, err
			}
		}
	}

	if !tok.Loadable() {
		return 0, mail.ErrNotLoadable
	}

	return tok.index, nil
}

func (c *Client) envelope(ctx context.Context, literal []byte) *message.Envelope {
	raw, _ := rfc822.Split(literal)

	env, err := func() (*message.Envelope, error) {
		header, err := rfc822.NewHeader(raw)
		if err != nil {
			return nil, err
		}

		return message.ParseEnvelope(header)
	}()
	if err != nil {
		c.log.WithError(err).Warn("Failed to parse message header")
		observability.AddFailure(ctx, observability.FailureParseMessage)

		return &message.Envelope{Subject: message.DefaultSubject, Date: time.Now()}
	}

	return env
}

func (c *Client) unseen(count int) int {
	seen := 0

	for uid, token := range c.tokens {
		if token.Loadable() && c.flags[uid].Seen() {
			seen++
		}
	}

	if seen > count {
		return 0
	}

	return count - seen
}

func (c *Client) connected() error {
	if !c.IsConnected() {
		return mail.ErrNotConnected
	}

	return nil
}

// bodyLines counts the lines following the header of a literal.
func bodyLines(literal []byte) int {
	idx := bytes.Index(literal, []byte("\r\n\r\n"))
	if idx < 0 {
		return 0
	}

	return bytes.Count(literal[idx+4:], []byte("\r\n"))
}
