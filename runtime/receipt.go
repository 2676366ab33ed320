package runtime

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
)

const (
	ReceiptStateInitial = 10
	ReceiptStateDone    = 11
	ReceiptStateFailed  = 12
)

// Callback describes where the result of a receipt is delivered once it
// has executed. The ref is an opaque correlation id chosen by the caller.
type Callback struct {
	Receiver string
	Method   string
	Ref      string
}

// Receipt is one scheduled asynchronous action: a contract call, or a plain
// balance transfer when Method is empty. Receipts are persisted and executed
// strictly one at a time in creation order, so two calls can only interleave
// at receipt boundaries, never within one.
type Receipt struct {
	Id          string
	State       int
	Signer      string
	Predecessor string
	Receiver    string
	Method      string
	Args        []byte
	Deposit     string
	Callback    *Callback
	Value       []byte
	Error       string
	Logs        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CallResult is the payload delivered to callback receipts.
type CallResult struct {
	Ref   string
	Ok    bool
	Value []byte
}

func (r *Receipt) DepositAmount() (*uint256.Int, error) {
	if r.Deposit == "" {
		return uint256.NewInt(0), nil
	}
	return uint256.FromDecimal(r.Deposit)
}

func newReceiptId() string {
	return uuid.Must(uuid.NewV4()).String()
}
