package market

import (
	"errors"
	"fmt"

	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/holiman/uint256"
	"github.com/vmihailenco/msgpack/v4"
)

var ErrNoStorageCredit = errors.New("insufficient storage credit")

// StorageCredit is one account's prepaid storage balance. Locked counts the
// active listings holding a per-sale reservation against it; the difference
// is free to spend on new listings or to withdraw.
type StorageCredit struct {
	Deposited string
	Locked    uint64
}

func (sc *StorageCredit) deposited() *uint256.Int {
	if sc.Deposited == "" {
		return uint256.NewInt(0)
	}
	v, err := uint256.FromDecimal(sc.Deposited)
	if err != nil {
		panic(sc.Deposited)
	}
	return v
}

// free returns the credit not reserved by active listings.
func (sc *StorageCredit) free(env *runtime.Env) *uint256.Int {
	locked := new(uint256.Int).Mul(env.StorageCost(storagePerSale), uint256.NewInt(sc.Locked))
	deposited := sc.deposited()
	if deposited.Lt(locked) {
		return uint256.NewInt(0)
	}
	return deposited.Sub(deposited, locked)
}

func readCredit(env *runtime.Env, account string) (*StorageCredit, error) {
	val, err := env.Get([]byte(prefixCredit + account))
	if err != nil {
		return nil, err
	}
	credit := &StorageCredit{}
	if val == nil {
		return credit, nil
	}
	err = msgpack.Unmarshal(val, credit)
	return credit, err
}

func writeCredit(env *runtime.Env, account string, credit *StorageCredit) error {
	return env.Set([]byte(prefixCredit+account), msgpackMarshalPanic(credit))
}

// storageDeposit credits the attached deposit to the caller's storage
// balance, covering future listing records.
func (c *Contract) storageDeposit(env *runtime.Env) error {
	deposit := env.AttachedDeposit()
	if deposit.IsZero() {
		return fmt.Errorf("storage deposit requires an attached amount")
	}
	credit, err := readCredit(env, env.Predecessor())
	if err != nil {
		return err
	}
	total := credit.deposited()
	credit.Deposited = total.Add(total, deposit).Dec()
	return writeCredit(env, env.Predecessor(), credit)
}

// storageWithdraw returns the caller's free credit as funds, keeping only
// the reservations of their active listings.
func (c *Contract) storageWithdraw(env *runtime.Env) error {
	credit, err := readCredit(env, env.Predecessor())
	if err != nil {
		return err
	}
	free := credit.free(env)
	if free.IsZero() {
		return nil
	}
	deposited := credit.deposited()
	credit.Deposited = deposited.Sub(deposited, free).Dec()
	if err := writeCredit(env, env.Predecessor(), credit); err != nil {
		return err
	}
	env.Transfer(env.Predecessor(), free)
	return nil
}

type StorageBalanceArgs struct {
	AccountId string
}

type StorageBalance struct {
	Total     string `json:"total"`
	Available string `json:"available"`
}

func (c *Contract) storageBalanceOf(env *runtime.Env, args []byte) ([]byte, error) {
	var sa StorageBalanceArgs
	err := msgpack.Unmarshal(args, &sa)
	if err != nil || sa.AccountId == "" {
		return nil, fmt.Errorf("invalid args")
	}
	credit, err := readCredit(env, sa.AccountId)
	if err != nil {
		return nil, err
	}
	return msgpackMarshalPanic(&StorageBalance{
		Total:     credit.deposited().Dec(),
		Available: credit.free(env).Dec(),
	}), nil
}

// lockCredit reserves one listing worth of credit.
func lockCredit(env *runtime.Env, account string) error {
	credit, err := readCredit(env, account)
	if err != nil {
		return err
	}
	if credit.free(env).Lt(env.StorageCost(storagePerSale)) {
		return fmt.Errorf("%w: %s available, one listing costs %s",
			ErrNoStorageCredit, credit.free(env).Dec(), env.StorageCost(storagePerSale).Dec())
	}
	credit.Locked++
	return writeCredit(env, account, credit)
}

// releaseCredit drops one listing reservation.
func releaseCredit(env *runtime.Env, account string) error {
	credit, err := readCredit(env, account)
	if err != nil {
		return err
	}
	if credit.Locked == 0 {
		return nil
	}
	credit.Locked--
	return writeCredit(env, account, credit)
}
