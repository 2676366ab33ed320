package store

import (
	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/dgraph-io/badger/v3"
)

const (
	prefixReceiptPayload = "RECEIPT:PAYLOAD:"
	prefixReceiptState   = "RECEIPT:STATE:"
)

func (bs *BadgerStore) WriteReceipt(r *runtime.Receipt) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		err := bs.resetOldReceipt(txn, r)
		if err != nil {
			return err
		}
		key := []byte(prefixReceiptPayload + r.Id)
		val := msgpackMarshalPanic(r)
		err = txn.Set(key, val)
		if err != nil {
			return err
		}

		key = buildReceiptTimedKey(r)
		return txn.Set(key, []byte{1})
	})
}

func (bs *BadgerStore) ReadReceipt(id string) (*runtime.Receipt, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	return bs.readReceipt(txn, id)
}

// ListReceipts returns up to limit receipts in the given state, ordered by
// creation time. The runtime relies on this order for its one-at-a-time
// scheduling guarantee.
func (bs *BadgerStore) ListReceipts(state int, limit int) ([]*runtime.Receipt, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(receiptStatePrefix(state))
	it := txn.NewIterator(opts)
	defer it.Close()

	var receipts []*runtime.Receipt
	for it.Seek(opts.Prefix); it.Valid(); it.Next() {
		key := it.Item().Key()
		id := string(key[len(opts.Prefix)+8:])
		r, err := bs.readReceipt(txn, id)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
		if len(receipts) == limit {
			break
		}
	}
	return receipts, nil
}

func (bs *BadgerStore) readReceipt(txn *badger.Txn, id string) (*runtime.Receipt, error) {
	key := []byte(prefixReceiptPayload + id)
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var r runtime.Receipt
	err = msgpackUnmarshal(val, &r)
	return &r, err
}

func (bs *BadgerStore) resetOldReceipt(txn *badger.Txn, r *runtime.Receipt) error {
	old, err := bs.readReceipt(txn, r.Id)
	if err != nil || old == nil {
		return err
	}
	if old.State == r.State {
		return nil
	}

	key := buildReceiptTimedKey(old)
	return txn.Delete(key)
}

func buildReceiptTimedKey(r *runtime.Receipt) []byte {
	prefix := receiptStatePrefix(r.State)
	key := append([]byte(prefix), tsToBytes(r.CreatedAt)...)
	return append(key, []byte(r.Id)...)
}

func receiptStatePrefix(state int) string {
	prefix := prefixReceiptState
	switch state {
	case runtime.ReceiptStateInitial:
		return prefix + "initial-"
	case runtime.ReceiptStateDone:
		return prefix + "done----"
	case runtime.ReceiptStateFailed:
		return prefix + "failed--"
	}
	panic(state)
}
