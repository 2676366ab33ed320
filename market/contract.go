package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/vmihailenco/msgpack/v4"
	"go.uber.org/zap"
)

const eventStandard = "purecube-market"
const eventVersion = "1.0.0"

// storagePerSale is the storage footprint one listing is charged for,
// in bytes. Priced generously so a listing never outgrows its credit.
const storagePerSale = 1000

// State key prefixes inside the contract namespace.
const (
	keyInit          = "INIT"
	keyTerms         = "TERMS"
	prefixSale       = "SALE:PAYLOAD:"
	prefixSaleOwner  = "SALE:OWNER:"
	prefixCredit     = "STORAGE:CREDIT:"
	prefixSettlement = "SETTLE:PAYLOAD:"
)

var ErrAlreadyInitialized = errors.New("contract already initialized")

// Terms binds the marketplace to the one token registry it trusts approval
// notifications and payout tables from.
type Terms struct {
	OwnerId       string
	NFTContractId string
}

type InitArgs struct {
	OwnerId       string
	NFTContractId string
}

// Contract is the marketplace: the listing store and the purchase
// settlement engine.
type Contract struct {
	log *zap.Logger
}

func New(logger *zap.Logger) *Contract {
	return &Contract{log: logger}
}

func (c *Contract) Invoke(ctx context.Context, env *runtime.Env, method string, args []byte) ([]byte, error) {
	switch method {
	case "new":
		return nil, c.initialize(env, args)
	case "storage_deposit":
		return nil, c.storageDeposit(env)
	case "storage_withdraw":
		return nil, c.storageWithdraw(env)
	case "storage_balance_of":
		return c.storageBalanceOf(env, args)
	case "nft_on_approve":
		return nil, c.onApprove(env, args)
	case "remove_sale":
		return nil, c.removeSale(env, args)
	case "offer":
		return nil, c.offer(env, args)
	case "resolve_purchase":
		return nil, c.resolvePurchase(env, args)
	case "get_sale":
		return c.viewSale(env, args)
	case "get_sales_by_owner":
		return c.viewSalesByOwner(env, args)
	}
	return nil, fmt.Errorf("%w %s", runtime.ErrUnknownMethod, method)
}

func (c *Contract) initialize(env *runtime.Env, args []byte) error {
	init, err := env.Get([]byte(keyInit))
	if err != nil {
		return err
	}
	if init != nil {
		return ErrAlreadyInitialized
	}
	var ia InitArgs
	err = msgpack.Unmarshal(args, &ia)
	if err != nil {
		return fmt.Errorf("invalid init args: %w", err)
	}
	if ia.OwnerId == "" || ia.NFTContractId == "" {
		return fmt.Errorf("owner and nft contract accounts are required")
	}
	terms := &Terms{OwnerId: ia.OwnerId, NFTContractId: ia.NFTContractId}
	if err := env.Set([]byte(keyTerms), msgpackMarshalPanic(terms)); err != nil {
		return err
	}
	return env.Set([]byte(keyInit), []byte{1})
}

func readTerms(env *runtime.Env) (*Terms, error) {
	val, err := env.Get([]byte(keyTerms))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, fmt.Errorf("contract not initialized")
	}
	var terms Terms
	err = msgpack.Unmarshal(val, &terms)
	return &terms, err
}

func msgpackMarshalPanic(val interface{}) []byte {
	b, err := msgpack.Marshal(val)
	if err != nil {
		panic(err)
	}
	return b
}
