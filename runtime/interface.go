package runtime

import (
	"context"
)

// Store is the persistence surface the runtime depends on. The badger
// implementation lives in the store package.
type Store interface {
	WriteProperty(key, val []byte) error
	ReadProperty(key []byte) ([]byte, error)

	WriteReceipt(r *Receipt) error
	ReadReceipt(id string) (*Receipt, error)
	ListReceipts(state int, limit int) ([]*Receipt, error)

	UpdateState(fn func(StateTxn) error) error
	ViewState(fn func(StateTxn) error) error
}

// StateTxn is a transactional view over contract state. Every call runs
// inside exactly one transaction, so a failing call discards all of its
// mutations at once.
type StateTxn interface {
	Get(key []byte) ([]byte, error)
	Set(key, val []byte) error
	Delete(key []byte) error
	Seek(prefix []byte, fn func(key, val []byte) error) error
}

// Contract handles the calls addressed to one bound account.
type Contract interface {
	Invoke(ctx context.Context, env *Env, method string, args []byte) ([]byte, error)
}
