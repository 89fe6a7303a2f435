// Package courier drives POP3 and SMTP mail accounts through queued requests and publishes what they observe.
package courier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/courier-mail/courier/async"
	"github.com/courier-mail/courier/config"
	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mailbox"
	"github.com/courier-mail/courier/observability"
	"github.com/courier-mail/courier/pop3"
	"github.com/courier-mail/courier/reporter"
	"github.com/courier-mail/courier/request"
	"github.com/courier-mail/courier/smtp"
	"github.com/courier-mail/courier/store"
	"github.com/courier-mail/courier/transport"
	"github.com/courier-mail/courier/version"
	"github.com/courier-mail/courier/wait"
	"github.com/courier-mail/courier/watcher"
	"github.com/sirupsen/logrus"
)

// Engine owns the accounts of one embedding application.
type Engine struct {
	// ctx carries the reporter and metrics into every request.
	ctx    context.Context
	cancel context.CancelFunc

	cfg          *config.Config
	dataDir      string
	storeBuilder store.Builder
	panicHandler async.PanicHandler
	versionInfo  version.Info
	log          *logrus.Entry

	// accounts holds the registered accounts by name.
	accounts     map[string]*account
	accountsLock sync.RWMutex

	// watchers holds streams of events.
	watchers     []*watcher.Watcher[events.Event]
	watchersLock sync.RWMutex

	forwarders wait.Group
	closed     bool
}

type account struct {
	name  string
	store store.Store

	incoming *request.Queue[connector.Incoming]
	outgoing *request.Queue[connector.Outgoing]

	mailboxes     map[string]*mailbox.Mailbox
	mailboxesLock sync.Mutex
}

// New creates a new engine with the given options.
func New(withOpt ...Option) (*Engine, error) {
	builder, err := newBuilder()
	if err != nil {
		return nil, err
	}

	for _, opt := range withOpt {
		opt.config(builder)
	}

	return builder.build()
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

func (e *Engine) GetVersionInfo() version.Info {
	return e.versionInfo
}

// AddAccount registers an account served by the given clients. Either client may be nil if the account only
// receives or only sends. The passphrase encrypts the account's content cache.
func (e *Engine) AddAccount(
	ctx context.Context,
	name string,
	passphrase []byte,
	incoming connector.Incoming,
	outgoing connector.Outgoing,
) error {
	if incoming == nil && outgoing == nil {
		return ErrNoClient
	}

	e.accountsLock.Lock()
	defer e.accountsLock.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	if _, ok := e.accounts[name]; ok {
		return fmt.Errorf("%w: %v", ErrAccountExists, name)
	}

	st, err := e.storeBuilder.New(e.dataDir, name, passphrase)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	acc := &account{
		name:      name,
		store:     st,
		mailboxes: make(map[string]*mailbox.Mailbox),
	}

	publish := func(event events.Event) {
		e.route(acc, event)
	}

	if incoming != nil {
		runner := request.NewRunner[connector.Incoming](name, publish, st)
		acc.incoming = request.NewQueue[connector.Incoming](e.ctx, incoming, runner, e.panicHandler)
	}

	if outgoing != nil {
		runner := request.NewRunner[connector.Outgoing](name, publish, st)
		acc.outgoing = request.NewQueue[connector.Outgoing](e.ctx, outgoing, runner, e.panicHandler)
	}

	e.accounts[name] = acc

	e.log.WithField("account", name).Info("Account added")

	e.notify(events.AccountAdded{Account: name})

	return nil
}

// AddConfiguredAccount registers the account of the given name from the engine configuration, with a POP3
// incoming client and an SMTP outgoing client as configured.
func (e *Engine) AddConfiguredAccount(ctx context.Context, name string, passphrase []byte) error {
	acc, ok := e.cfg.Account(name)
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoSuchAccount, name)
	}

	var (
		incoming connector.Incoming
		outgoing connector.Outgoing
	)

	if acc.POP != nil {
		incoming = pop3.NewClient(e.cfg.POPConfig(acc), transport.New(acc.POP.Transport()))
	}

	if acc.SMTP != nil {
		outgoing = smtp.NewClient(e.cfg.SMTPConfig(acc), transport.New(acc.SMTP.Transport()))
	}

	return e.AddAccount(ctx, name, passphrase, incoming, outgoing)
}

// RemoveAccount lets the account's queued requests finish, closes its clients and drops it.
func (e *Engine) RemoveAccount(ctx context.Context, name string) error {
	e.accountsLock.Lock()

	acc, ok := e.accounts[name]
	if ok {
		delete(e.accounts, name)
	}

	e.accountsLock.Unlock()

	if !ok {
		return fmt.Errorf("%w: %v", ErrNoSuchAccount, name)
	}

	err := e.closeAccount(ctx, acc)

	e.notify(events.AccountRemoved{Account: name})

	return err
}

// Accounts returns the names of the registered accounts.
func (e *Engine) Accounts() []string {
	e.accountsLock.RLock()
	defer e.accountsLock.RUnlock()

	names := make([]string, 0, len(e.accounts))

	for name := range e.accounts {
		names = append(names, name)
	}

	return names
}

// Mailbox returns the cache of the folder with the given path, creating it on first use. Request results for the
// folder are applied to it and its own events are forwarded to watchers.
func (e *Engine) Mailbox(accountName, folder string) (*mailbox.Mailbox, error) {
	acc, err := e.account(accountName)
	if err != nil {
		return nil, err
	}

	acc.mailboxesLock.Lock()
	defer acc.mailboxesLock.Unlock()

	if acc.mailboxes == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSuchAccount, accountName)
	}

	if mb, ok := acc.mailboxes[folder]; ok {
		return mb, nil
	}

	mb := mailbox.New(acc.name, folder, e.panicHandler)

	acc.mailboxes[folder] = mb

	e.forwarders.Go(func() {
		for event := range mb.Events() {
			e.notify(event)
		}
	})

	return mb, nil
}

// Incoming queues a request on the account's incoming client and returns the request ID its events will carry.
func (e *Engine) Incoming(accountName string, req request.Request[connector.Incoming]) (string, error) {
	acc, err := e.account(accountName)
	if err != nil {
		return "", err
	}

	if acc.incoming == nil {
		return "", fmt.Errorf("%w: %v", ErrNoIncoming, accountName)
	}

	return acc.incoming.Submit(req)
}

// Outgoing queues a request on the account's outgoing client. Messages sent without an X-Mailer get the engine's.
func (e *Engine) Outgoing(accountName string, req request.Request[connector.Outgoing]) (string, error) {
	acc, err := e.account(accountName)
	if err != nil {
		return "", err
	}

	if acc.outgoing == nil {
		return "", fmt.Errorf("%w: %v", ErrNoOutgoing, accountName)
	}

	if send, ok := req.(*request.Send); ok && send.Envelope != nil && send.Envelope.Mailer == "" {
		send.Envelope.Mailer = e.versionInfo.Mailer()
	}

	return acc.outgoing.Submit(req)
}

// Store returns the content cache of the account.
func (e *Engine) Store(accountName string) (store.Store, error) {
	acc, err := e.account(accountName)
	if err != nil {
		return nil, err
	}

	return acc.store, nil
}

// AddWatcher adds a new watcher which watches events of the given types.
// If no types are specified, the watcher watches all events.
func (e *Engine) AddWatcher(ofType ...events.Event) <-chan events.Event {
	e.watchersLock.Lock()
	defer e.watchersLock.Unlock()

	w := watcher.New(e.panicHandler, ofType...)

	e.watchers = append(e.watchers, w)

	return w.GetChannel()
}

// Close lets every account's queued requests finish, closes all clients and stores, then closes the watchers.
func (e *Engine) Close(ctx context.Context) error {
	e.accountsLock.Lock()

	if e.closed {
		e.accountsLock.Unlock()
		return nil
	}

	e.closed = true

	accounts := e.accounts
	e.accounts = make(map[string]*account)

	e.accountsLock.Unlock()

	var errs []error

	for _, acc := range accounts {
		if err := e.closeAccount(ctx, acc); err != nil {
			errs = append(errs, fmt.Errorf("account %v: %w", acc.name, err))
		}
	}

	e.forwarders.Wait()

	e.watchersLock.Lock()
	defer e.watchersLock.Unlock()

	for _, w := range e.watchers {
		w.Close()
	}

	e.watchers = nil

	e.cancel()

	e.log.Debug("Engine was closed")

	return errors.Join(errs...)
}

func (e *Engine) account(name string) (*account, error) {
	e.accountsLock.RLock()
	defer e.accountsLock.RUnlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	acc, ok := e.accounts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoSuchAccount, name)
	}

	return acc, nil
}

func (e *Engine) closeAccount(ctx context.Context, acc *account) error {
	var errs []error

	if acc.incoming != nil {
		if err := acc.incoming.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close incoming client: %w", err))
		}
	}

	if acc.outgoing != nil {
		if err := acc.outgoing.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close outgoing client: %w", err))
		}
	}

	acc.mailboxesLock.Lock()

	for _, mb := range acc.mailboxes {
		mb.Close()
	}

	acc.mailboxes = nil

	acc.mailboxesLock.Unlock()

	if err := acc.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}

	return errors.Join(errs...)
}

// route applies a request event to the account's mailboxes, then hands it to the watchers.
func (e *Engine) route(acc *account, event events.Event) {
	acc.mailboxesLock.Lock()

	for _, mb := range acc.mailboxes {
		mb.Apply(event)
	}

	acc.mailboxesLock.Unlock()

	e.notify(event)
}

func (e *Engine) notify(event events.Event) {
	e.watchersLock.RLock()
	defer e.watchersLock.RUnlock()

	for _, w := range e.watchers {
		if !w.Send(event) {
			e.log.WithField("event", fmt.Sprintf("%T", event)).Warn("Failed to send event to watcher")
		}
	}
}

// contextWith returns ctx carrying the reporter and metrics of the engine.
func contextWith(ctx context.Context, rep reporter.Reporter, metrics *observability.Metrics) context.Context {
	ctx = reporter.NewContextWithReporter(ctx, rep)

	if metrics != nil {
		ctx = observability.NewContextWithMetrics(ctx, metrics)
	}

	return ctx
}
