package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/courier-mail/courier/async"
	"github.com/courier-mail/courier/internal/hash"
	"github.com/courier-mail/courier/internal/ticker"
	"github.com/dgraph-io/badger/v3"
	"github.com/sirupsen/logrus"
)

const defaultGCInterval = 5 * time.Minute

// BadgerStore keeps literals in an encrypted badger database, one per account.
type BadgerStore struct {
	db  *badger.DB
	cmp Compressor

	gcInterval time.Duration
	gcTicker   *ticker.Ticker
	wg         sync.WaitGroup
}

type badgerTransaction struct {
	tx  *badger.Txn
	cmp Compressor
}

func NewBadgerStore(path string, account string, passphrase []byte, opts ...Option) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(filepath.Join(path, hash.SHA256Hex(account))).
		WithLogger(logrus.StandardLogger()).
		WithLoggingLevel(badger.ERROR).
		WithEncryptionKey(hash.SHA256(passphrase)).
		WithIndexCacheSize(16 * 1024 * 1024),
	)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		db:         db,
		gcInterval: defaultGCInterval,
	}

	for _, opt := range opts {
		opt.config(store)
	}

	store.gcTicker = ticker.New(store.gcInterval)

	store.wg.Add(1)

	go store.startGCCollector()

	return store, nil
}

func (b *BadgerStore) startGCCollector() {
	defer async.HandlePanic(async.LogPanicHandler{Name: "badger-gc"})
	defer b.wg.Done()

	b.gcTicker.Tick(func(time.Time) {
		for b.db.RunValueLogGC(0.5) == nil {
		}
	})
}

// CollectGarbage runs a value log garbage collection now.
func (b *BadgerStore) CollectGarbage() {
	b.gcTicker.Poll()
}

func (b *BadgerStore) Get(key string) ([]byte, error) {
	var data []byte

	if err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)

		return err
	}); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if b.cmp != nil {
		return b.cmp.Decompress(data)
	}

	return data, nil
}

func (b *BadgerStore) Has(key string) bool {
	return b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	}) == nil
}

func (b *BadgerStore) NewTransaction() Transaction {
	return &badgerTransaction{tx: b.db.NewTransaction(true), cmp: b.cmp}
}

func (b *badgerTransaction) Set(key string, literal []byte) error {
	if b.cmp != nil {
		cmp, err := b.cmp.Compress(literal)
		if err != nil {
			return err
		}

		literal = cmp
	}

	return b.tx.Set([]byte(key), literal)
}

func (b *badgerTransaction) Delete(keys ...string) error {
	for _, v := range keys {
		if err := b.tx.Delete([]byte(v)); err != nil {
			return err
		}
	}

	return nil
}

func (b *badgerTransaction) Commit() error {
	return b.tx.Commit()
}

func (b *badgerTransaction) Rollback() error {
	b.tx.Discard()

	return nil
}

func (b *BadgerStore) Close() error {
	b.gcTicker.Stop()
	b.wg.Wait()

	return b.db.Close()
}

type BadgerStoreBuilder struct {
	Options []Option
}

func (builder *BadgerStoreBuilder) New(directory, account string, passphrase []byte) (Store, error) {
	return NewBadgerStore(directory, account, passphrase, builder.Options...)
}

func (*BadgerStoreBuilder) Delete(directory, account string) error {
	return os.RemoveAll(filepath.Join(directory, hash.SHA256Hex(account)))
}

// InMemoryStoreBuilder hands out a fresh in-memory store per account.
type InMemoryStoreBuilder struct{}

func (*InMemoryStoreBuilder) New(string, string, []byte) (Store, error) {
	return NewInMemoryStore(), nil
}
