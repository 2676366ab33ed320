package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReceiptQueue(t *testing.T) {
	db, err := OpenBadger(context.Background(), t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	r, err := db.ReadReceipt("missing")
	require.NoError(t, err)
	require.Nil(t, r)

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, db.WriteReceipt(&runtime.Receipt{
			Id:        fmt.Sprintf("receipt-%d", i),
			State:     runtime.ReceiptStateInitial,
			Signer:    "alice.test",
			Receiver:  "nft.test",
			Method:    "nft_mint",
			Deposit:   "0",
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
			UpdatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	// listed in creation order, bounded by the limit
	receipts, err := db.ListReceipts(runtime.ReceiptStateInitial, 3)
	require.NoError(t, err)
	require.Len(t, receipts, 3)
	for i, r := range receipts {
		require.Equal(t, fmt.Sprintf("receipt-%d", i), r.Id)
	}

	// a state change moves the receipt between queues and removes the old
	// timed key
	first := receipts[0]
	first.State = runtime.ReceiptStateDone
	first.UpdatedAt = time.Now()
	require.NoError(t, db.WriteReceipt(first))

	receipts, err = db.ListReceipts(runtime.ReceiptStateInitial, 10)
	require.NoError(t, err)
	require.Len(t, receipts, 4)
	require.Equal(t, "receipt-1", receipts[0].Id)

	receipts, err = db.ListReceipts(runtime.ReceiptStateDone, 10)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Equal(t, "receipt-0", receipts[0].Id)

	r, err = db.ReadReceipt("receipt-0")
	require.NoError(t, err)
	require.Equal(t, runtime.ReceiptStateDone, r.State)
}

func TestProperty(t *testing.T) {
	db, err := OpenBadger(context.Background(), t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	val, err := db.ReadProperty([]byte("missing"))
	require.NoError(t, err)
	require.Nil(t, val)

	require.NoError(t, db.WriteProperty([]byte("k"), []byte("v")))
	val, err = db.ReadProperty([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), val)

	require.NoError(t, db.WriteProperty([]byte("k"), []byte("v2")))
	val, err = db.ReadProperty([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), val)
}

func TestStateTransaction(t *testing.T) {
	db, err := OpenBadger(context.Background(), t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	err = db.UpdateState(func(txn runtime.StateTxn) error {
		require.NoError(t, txn.Set([]byte("STATE:a:1"), []byte("x")))
		require.NoError(t, txn.Set([]byte("STATE:a:2"), []byte("y")))
		return nil
	})
	require.NoError(t, err)

	// a failing update discards every write
	err = db.UpdateState(func(txn runtime.StateTxn) error {
		require.NoError(t, txn.Set([]byte("STATE:a:3"), []byte("z")))
		return fmt.Errorf("abort")
	})
	require.ErrorContains(t, err, "abort")

	err = db.ViewState(func(txn runtime.StateTxn) error {
		val, err := txn.Get([]byte("STATE:a:1"))
		require.NoError(t, err)
		require.Equal(t, []byte("x"), val)
		val, err = txn.Get([]byte("STATE:a:3"))
		require.NoError(t, err)
		require.Nil(t, val)

		var keys []string
		err = txn.Seek([]byte("STATE:a:"), func(key, val []byte) error {
			keys = append(keys, string(key))
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []string{"STATE:a:1", "STATE:a:2"}, keys)
		return nil
	})
	require.NoError(t, err)
}
