package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/vmihailenco/msgpack/v4"
	"go.uber.org/zap"
)

// MaxArgsSize bounds the encoded arguments of a single call, standing in
// for the per-call computation budget of the host ledger.
const MaxArgsSize = 64 * 1024

const (
	genesisPropertyKey = "RUNTIME:GENESIS:DONE"
	balancePropertyKey = "ACCOUNT:BALANCE:"
	hostEventStandard  = "purecube-host"
	hostEventVersion   = "1.0.0"
)

// Runtime executes receipts against the bound contracts, one at a time in
// creation order. It owns account balances and the deposit life cycle: a
// failing call discards its state mutations wholesale and the attached
// deposit returns to the predecessor.
type Runtime struct {
	store     Store
	clock     *Clock
	log       *zap.Logger
	contracts map[string]Contract
}

func NewRuntime(store Store, logger *zap.Logger) (*Runtime, error) {
	clock, err := NewClock(store)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		store:     store,
		clock:     clock,
		log:       logger,
		contracts: make(map[string]Contract),
	}, nil
}

// Bind routes the calls addressed to an account to a contract. The account
// must still exist in genesis to hold a balance.
func (rt *Runtime) Bind(account string, c Contract) {
	rt.contracts[account] = c
}

// InitGenesis writes the genesis balances. It is a no-op when the store has
// been initialized before.
func (rt *Runtime) InitGenesis(accounts []AccountConfig) error {
	done, err := rt.store.ReadProperty([]byte(genesisPropertyKey))
	if err != nil {
		return err
	}
	if len(done) > 0 {
		return nil
	}
	for _, a := range accounts {
		amount, err := ToYocto(a.Balance)
		if err != nil {
			return fmt.Errorf("genesis account %s: %w", a.Id, err)
		}
		if err := rt.writeBalance(a.Id, amount); err != nil {
			return err
		}
	}
	return rt.store.WriteProperty([]byte(genesisPropertyKey), []byte{1})
}

func (rt *Runtime) Balance(account string) (*uint256.Int, error) {
	val, err := rt.store.ReadProperty([]byte(balancePropertyKey + account))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, fmt.Errorf("%w %s", ErrUnknownAccount, account)
	}
	return uint256.FromDecimal(string(val))
}

func (rt *Runtime) writeBalance(account string, amount *uint256.Int) error {
	return rt.store.WriteProperty([]byte(balancePropertyKey+account), []byte(amount.Dec()))
}

func (rt *Runtime) creditBalance(account string, amount *uint256.Int) error {
	balance, err := rt.Balance(account)
	if err != nil {
		return err
	}
	return rt.writeBalance(account, balance.Add(balance, amount))
}

func (rt *Runtime) debitBalance(account string, amount *uint256.Int) error {
	balance, err := rt.Balance(account)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, account, balance.Dec(), amount.Dec())
	}
	return rt.writeBalance(account, balance.Sub(balance, amount))
}

// Call schedules a signed call from an external account. The deposit is
// debited immediately and travels with the receipt; the host refunds it to
// the signer if the call fails. The returned id can be used to read the
// receipt back once processed.
func (rt *Runtime) Call(ctx context.Context, signer, receiver, method string, args []byte, deposit *uint256.Int) (string, error) {
	if rt.contracts[receiver] == nil {
		return "", fmt.Errorf("%w: no contract bound to %s", ErrUnknownAccount, receiver)
	}
	if deposit == nil {
		deposit = uint256.NewInt(0)
	}
	if err := rt.debitBalance(signer, deposit); err != nil {
		return "", err
	}
	now := rt.clock.Now()
	r := &Receipt{
		Id:          newReceiptId(),
		State:       ReceiptStateInitial,
		Signer:      signer,
		Predecessor: signer,
		Receiver:    receiver,
		Method:      method,
		Args:        args,
		Deposit:     deposit.Dec(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return r.Id, rt.store.WriteReceipt(r)
}

// View invokes a read-only method synchronously against a snapshot of the
// contract state.
func (rt *Runtime) View(ctx context.Context, signer, receiver, method string, args []byte) ([]byte, error) {
	contract := rt.contracts[receiver]
	if contract == nil {
		return nil, fmt.Errorf("%w: no contract bound to %s", ErrUnknownAccount, receiver)
	}
	var value []byte
	err := rt.store.ViewState(func(txn StateTxn) error {
		env, err := newEnv(rt, txn, &Receipt{
			Signer:      signer,
			Predecessor: signer,
			Receiver:    receiver,
		}, rt.clock.Now(), true)
		if err != nil {
			return err
		}
		value, err = contract.Invoke(ctx, env, method, args)
		return err
	})
	return value, err
}

// Receipt reads a receipt back, in whatever state it has reached.
func (rt *Runtime) Receipt(id string) (*Receipt, error) {
	return rt.store.ReadReceipt(id)
}

// Run drains and executes queued receipts until the context is canceled.
func (rt *Runtime) Run(ctx context.Context) {
	for {
		n, err := rt.ProcessPending(ctx, 16)
		if err != nil {
			rt.log.Error("process receipts", zap.Error(err))
		}
		if n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// ProcessPending executes up to limit queued receipts in creation order.
func (rt *Runtime) ProcessPending(ctx context.Context, limit int) (int, error) {
	receipts, err := rt.store.ListReceipts(ReceiptStateInitial, limit)
	if err != nil {
		return 0, err
	}
	for i, r := range receipts {
		if err := rt.execute(ctx, r); err != nil {
			return i, err
		}
	}
	return len(receipts), nil
}

// Flush drains the receipt queue to idle, for tests and one-shot tools.
func (rt *Runtime) Flush(ctx context.Context) error {
	for {
		n, err := rt.ProcessPending(ctx, 16)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func (rt *Runtime) execute(ctx context.Context, r *Receipt) error {
	if r.Method == "" {
		return rt.executeTransfer(r)
	}

	deposit, err := r.DepositAmount()
	if err != nil {
		return err
	}
	contract := rt.contracts[r.Receiver]
	now := rt.clock.Now()

	var env *Env
	var value []byte
	callErr := func() error {
		if contract == nil {
			return fmt.Errorf("%w: no contract bound to %s", ErrUnknownAccount, r.Receiver)
		}
		if len(r.Args) > MaxArgsSize {
			return fmt.Errorf("%w: %d bytes", ErrArgsTooLarge, len(r.Args))
		}
		return rt.store.UpdateState(func(txn StateTxn) error {
			var err error
			env, err = newEnv(rt, txn, r, now, false)
			if err != nil {
				return err
			}
			value, err = contract.Invoke(ctx, env, r.Method, r.Args)
			if err != nil {
				return err
			}
			return env.writeUsage()
		})
	}()

	if callErr != nil {
		rt.log.Info("receipt failed",
			zap.String("id", r.Id),
			zap.String("receiver", r.Receiver),
			zap.String("method", r.Method),
			zap.Error(callErr))
		if err := rt.creditBalance(r.Predecessor, deposit); err != nil {
			return err
		}
		r.State = ReceiptStateFailed
		r.Error = callErr.Error()
		if r.Callback != nil {
			if err := rt.enqueueCallback(r, &CallResult{Ref: r.Callback.Ref, Ok: false}); err != nil {
				return err
			}
		}
	} else {
		if err := rt.creditBalance(r.Receiver, deposit); err != nil {
			return err
		}
		if err := rt.flushPromises(r.Receiver, env.promises); err != nil {
			return err
		}
		r.State = ReceiptStateDone
		r.Value = value
		r.Logs = env.logs
		if r.Callback != nil {
			if err := rt.enqueueCallback(r, &CallResult{Ref: r.Callback.Ref, Ok: true, Value: value}); err != nil {
				return err
			}
		}
	}
	r.UpdatedAt = now
	return rt.store.WriteReceipt(r)
}

// executeTransfer moves balance for a plain transfer receipt. A transfer to
// an unknown account fails the receipt and returns the funds to the sender,
// logged but never retried.
func (rt *Runtime) executeTransfer(r *Receipt) error {
	amount, err := r.DepositAmount()
	if err != nil {
		return err
	}
	now := rt.clock.Now()
	if err := rt.creditBalance(r.Receiver, amount); err != nil {
		if err := rt.creditBalance(r.Predecessor, amount); err != nil {
			return err
		}
		ev := &Event{
			Standard: hostEventStandard,
			Version:  hostEventVersion,
			Event:    "payout_unrecovered",
			Data: map[string]string{
				"receiver": r.Receiver,
				"sender":   r.Predecessor,
				"amount":   r.Deposit,
			},
		}
		r.State = ReceiptStateFailed
		r.Error = err.Error()
		r.Logs = append(r.Logs, ev.String())
		rt.log.Warn("payout unrecovered",
			zap.String("receiver", r.Receiver),
			zap.String("amount", r.Deposit))
	} else {
		r.State = ReceiptStateDone
	}
	r.UpdatedAt = now
	return rt.store.WriteReceipt(r)
}

// flushPromises debits the committed call's outgoing deposits and persists
// the scheduled receipts.
func (rt *Runtime) flushPromises(sender string, promises []*Receipt) error {
	for _, p := range promises {
		deposit, err := p.DepositAmount()
		if err != nil {
			return err
		}
		if err := rt.debitBalance(sender, deposit); err != nil {
			rt.log.Error("promise deposit", zap.String("sender", sender), zap.Error(err))
			continue
		}
		now := rt.clock.Now()
		p.Id = newReceiptId()
		p.State = ReceiptStateInitial
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := rt.store.WriteReceipt(p); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) enqueueCallback(r *Receipt, res *CallResult) error {
	args, err := msgpack.Marshal(res)
	if err != nil {
		panic(err)
	}
	now := rt.clock.Now()
	cb := &Receipt{
		Id:          newReceiptId(),
		State:       ReceiptStateInitial,
		Signer:      r.Signer,
		Predecessor: r.Callback.Receiver,
		Receiver:    r.Callback.Receiver,
		Method:      r.Callback.Method,
		Args:        args,
		Deposit:     "0",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return rt.store.WriteReceipt(cb)
}
