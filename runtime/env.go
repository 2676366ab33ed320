package runtime

import (
	"encoding/binary"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// StorageByteCost is the rent charged per byte of persistent contract
// storage, in the smallest currency unit: 10^19, i.e. 100KiB per whole unit.
var StorageByteCost = new(uint256.Int).Mul(uint256.NewInt(10_000_000_000), uint256.NewInt(1_000_000_000))

const (
	statePrefix = "STATE:"
	usagePrefix = "USAGE:"
)

// Env is the view a contract method has of the call it is serving. State
// access is namespaced to the contract account and metered, so the storage
// rent owed by the caller can be computed from the usage delta around any
// group of writes.
type Env struct {
	rt          *Runtime
	txn         StateTxn
	contract    string
	signer      string
	predecessor string
	deposit     *uint256.Int
	now         time.Time
	usage       uint64
	view        bool

	promises []*Receipt
	logs     []string
}

func newEnv(rt *Runtime, txn StateTxn, r *Receipt, now time.Time, view bool) (*Env, error) {
	deposit, err := r.DepositAmount()
	if err != nil {
		return nil, err
	}
	e := &Env{
		rt:          rt,
		txn:         txn,
		contract:    r.Receiver,
		signer:      r.Signer,
		predecessor: r.Predecessor,
		deposit:     deposit,
		now:         now,
		view:        view,
	}
	val, err := txn.Get(e.usageKey())
	if err != nil {
		return nil, err
	}
	if len(val) == 8 {
		e.usage = binary.BigEndian.Uint64(val)
	}
	return e, nil
}

func (e *Env) ContractID() string   { return e.contract }
func (e *Env) Signer() string       { return e.signer }
func (e *Env) Predecessor() string  { return e.predecessor }
func (e *Env) Now() time.Time       { return e.now }
func (e *Env) StorageUsage() uint64 { return e.usage }

func (e *Env) AttachedDeposit() *uint256.Int {
	return new(uint256.Int).Set(e.deposit)
}

// StorageCost prices a storage delta in the smallest currency unit.
func (e *Env) StorageCost(bytes uint64) *uint256.Int {
	return new(uint256.Int).Mul(StorageByteCost, uint256.NewInt(bytes))
}

func (e *Env) stateKey(key []byte) []byte {
	full := append([]byte(statePrefix+e.contract+":"), key...)
	return full
}

func (e *Env) usageKey() []byte {
	return []byte(usagePrefix + e.contract)
}

func (e *Env) Get(key []byte) ([]byte, error) {
	return e.txn.Get(e.stateKey(key))
}

func (e *Env) Set(key, val []byte) error {
	old, err := e.txn.Get(e.stateKey(key))
	if err != nil {
		return err
	}
	if old == nil {
		e.adjustUsage(int64(len(key)) + int64(len(val)))
	} else {
		e.adjustUsage(int64(len(val)) - int64(len(old)))
	}
	return e.txn.Set(e.stateKey(key), val)
}

func (e *Env) Delete(key []byte) error {
	old, err := e.txn.Get(e.stateKey(key))
	if err != nil {
		return err
	}
	if old == nil {
		return nil
	}
	e.adjustUsage(-int64(len(key)) - int64(len(old)))
	return e.txn.Delete(e.stateKey(key))
}

// Seek iterates the contract records under a key prefix, in key order. The
// callback receives keys with the namespace stripped.
func (e *Env) Seek(prefix []byte, fn func(key, val []byte) error) error {
	full := e.stateKey(prefix)
	skip := len(full) - len(prefix)
	return e.txn.Seek(full, func(key, val []byte) error {
		return fn(key[skip:], val)
	})
}

func (e *Env) adjustUsage(delta int64) {
	usage := int64(e.usage) + delta
	if usage < 0 {
		panic(e.contract)
	}
	e.usage = uint64(usage)
}

func (e *Env) writeUsage() error {
	val := binary.BigEndian.AppendUint64(nil, e.usage)
	return e.txn.Set(e.usageKey(), val)
}

// Transfer schedules a balance transfer out of the contract account. It is
// issued only if the current call commits.
func (e *Env) Transfer(receiver string, amount *uint256.Int) {
	if e.view {
		panic("transfer in view context")
	}
	if amount.IsZero() {
		return
	}
	e.promises = append(e.promises, &Receipt{
		Signer:      e.signer,
		Predecessor: e.contract,
		Receiver:    receiver,
		Deposit:     amount.Dec(),
	})
}

// Call schedules an asynchronous call to another contract, issued only if
// the current call commits. There is no way to observe its result.
func (e *Env) Call(receiver, method string, args []byte, deposit *uint256.Int) {
	e.callPromise(receiver, method, args, deposit, nil)
}

// CallThen is Call with the result delivered back to this contract through
// the named callback method, tagged with the given correlation ref.
func (e *Env) CallThen(receiver, method string, args []byte, deposit *uint256.Int, callbackMethod, ref string) {
	e.callPromise(receiver, method, args, deposit, &Callback{
		Receiver: e.contract,
		Method:   callbackMethod,
		Ref:      ref,
	})
}

func (e *Env) callPromise(receiver, method string, args []byte, deposit *uint256.Int, cb *Callback) {
	if e.view {
		panic("call in view context")
	}
	if deposit == nil {
		deposit = uint256.NewInt(0)
	}
	e.promises = append(e.promises, &Receipt{
		Signer:      e.signer,
		Predecessor: e.contract,
		Receiver:    receiver,
		Method:      method,
		Args:        args,
		Deposit:     deposit.Dec(),
		Callback:    cb,
	})
}

// Emit appends a structured event record to the call log. Emission is a
// local write and cannot fail the call.
func (e *Env) Emit(ev *Event) {
	line := ev.String()
	e.logs = append(e.logs, line)
	e.rt.log.Info("event",
		zap.String("contract", e.contract),
		zap.String("log", line))
}
