package store

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

type BadgerStore struct {
	db  *badger.DB
	log *zap.Logger
}

func OpenBadger(ctx context.Context, path string, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts = opts.WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	bs := &BadgerStore{db: db, log: logger}
	go bs.gcLoop(ctx)
	return bs, nil
}

func (bs *BadgerStore) Close() error {
	return bs.db.Close()
}

func (bs *BadgerStore) Badger() *badger.DB {
	return bs.db
}

func (bs *BadgerStore) gcLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Minute):
		}
		lsm, vlog := bs.db.Size()
		bs.log.Debug("badger size", zap.Int64("lsm", lsm), zap.Int64("vlog", vlog))
		if lsm > 1024*1024*8 || vlog > 1024*1024*32 {
			err := bs.db.RunValueLogGC(0.5)
			bs.log.Debug("badger value log GC", zap.Error(err))
		}
	}
}

func (bs *BadgerStore) WriteProperty(key, val []byte) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append([]byte(prefixProperty), key...), val)
	})
}

func (bs *BadgerStore) ReadProperty(key []byte) ([]byte, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get(append([]byte(prefixProperty), key...))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
