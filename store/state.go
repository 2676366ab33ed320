package store

import (
	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/dgraph-io/badger/v3"
)

// stateTxn adapts a badger transaction to the runtime's contract state
// view. Read-only transactions reject writes, which is what keeps view
// methods honest.
type stateTxn struct {
	txn *badger.Txn
}

func (st *stateTxn) Get(key []byte) ([]byte, error) {
	item, err := st.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (st *stateTxn) Set(key, val []byte) error {
	return st.txn.Set(key, val)
}

func (st *stateTxn) Delete(key []byte) error {
	return st.txn.Delete(key)
}

func (st *stateTxn) Seek(prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := st.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.Valid(); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		err = fn(item.KeyCopy(nil), val)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateState runs fn inside one read-write transaction. An error from fn
// discards every mutation it made, which gives calls their all-or-nothing
// semantics.
func (bs *BadgerStore) UpdateState(fn func(runtime.StateTxn) error) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return fn(&stateTxn{txn: txn})
	})
}

// ViewState runs fn against a read-only snapshot.
func (bs *BadgerStore) ViewState(fn func(runtime.StateTxn) error) error {
	return bs.db.View(func(txn *badger.Txn) error {
		return fn(&stateTxn{txn: txn})
	})
}
