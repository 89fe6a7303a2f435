package store

import (
	"sync"

	"golang.org/x/exp/maps"
)

type inMemoryStore struct {
	data map[string][]byte
	lock sync.RWMutex
}

func NewInMemoryStore() Store {
	return &inMemoryStore{
		data: make(map[string][]byte),
	}
}

func (c *inMemoryStore) Get(key string) ([]byte, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	literal, ok := c.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	return literal, nil
}

func (c *inMemoryStore) Has(key string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	_, ok := c.data[key]

	return ok
}

// NewTransaction buffers changes until Commit.
func (c *inMemoryStore) NewTransaction() Transaction {
	return &inMemoryTransaction{
		store:   c,
		set:     make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (c *inMemoryStore) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.data = make(map[string][]byte)

	return nil
}

type inMemoryTransaction struct {
	store   *inMemoryStore
	set     map[string][]byte
	deleted map[string]struct{}
}

func (tx *inMemoryTransaction) Set(key string, literal []byte) error {
	delete(tx.deleted, key)

	tx.set[key] = append([]byte(nil), literal...)

	return nil
}

func (tx *inMemoryTransaction) Delete(keys ...string) error {
	for _, key := range keys {
		delete(tx.set, key)

		tx.deleted[key] = struct{}{}
	}

	return nil
}

func (tx *inMemoryTransaction) Commit() error {
	tx.store.lock.Lock()
	defer tx.store.lock.Unlock()

	for _, key := range maps.Keys(tx.deleted) {
		delete(tx.store.data, key)
	}

	for key, literal := range tx.set {
		tx.store.data[key] = literal
	}

	tx.set = make(map[string][]byte)
	tx.deleted = make(map[string]struct{})

	return nil
}

func (tx *inMemoryTransaction) Rollback() error {
	tx.set = make(map[string][]byte)
	tx.deleted = make(map[string]struct{})

	return nil
}
