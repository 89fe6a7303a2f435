package store

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("no such message in store")

// Store holds message literals keyed by Key.
type Store interface {
	Get(key string) ([]byte, error)
	Has(key string) bool
	NewTransaction() Transaction
	Close() error
}

type Transaction interface {
	Set(key string, literal []byte) error
	Delete(keys ...string) error
	Commit() error
	Rollback() error
}

type Builder interface {
	New(dir, account string, passphrase []byte) (Store, error)
}

// Key builds the store key of a message from its account, folder path and token key.
func Key(account, folder, token string) string {
	return strings.Join([]string{account, folder, token}, "\x00")
}

func Tx(store Store, fn func(Transaction) error) error {
	_, err := TxResult(store, func(tx Transaction) (struct{}, error) {
		if err := fn(tx); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, nil
	})

	return err
}

func TxResult[T any](store Store, fn func(Transaction) (T, error)) (T, error) {
	tx := store.NewTransaction()

	var errResult T

	result, err := fn(tx)
	if err != nil {
		if te := tx.Rollback(); te != nil {
			return errResult, fmt.Errorf("failed to rollback transaction:%v - original error: %w", te, err)
		}

		return errResult, err
	}

	if err := tx.Commit(); err != nil {
		if te := tx.Rollback(); te != nil {
			return errResult, fmt.Errorf("failed to rollback transaction:%v - original error: %w", te, err)
		}

		return errResult, err
	}

	return result, nil
}
