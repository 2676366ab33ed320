package market

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/holiman/uint256"
	"github.com/vmihailenco/msgpack/v4"
)

var (
	ErrNotValidSaleArgs = errors.New("not valid sale args")
	ErrNotSeller        = errors.New("caller is not the seller")
)

// Sale is one active listing, keyed by token id. The approval id is
// captured at listing time; the registry rejects the eventual transfer if
// it has gone stale by then.
type Sale struct {
	OwnerId    string `json:"owner_id"`
	TokenId    string `json:"token_id"`
	ApprovalId uint64 `json:"approval_id"`
	SalePrice  string `json:"sale_price"`
}

// SaleArgs are the sale terms embedded in the approval message. The msg is
// an owner-supplied string, so it is parsed defensively.
type SaleArgs struct {
	SalePrice string `json:"sale_price"`
}

// OnApproveArgs mirrors the payload the token registry forwards on
// approval.
type OnApproveArgs struct {
	TokenId    string
	OwnerId    string
	ApprovalId uint64
	Msg        string
}

func readSale(env *runtime.Env, tokenId string) (*Sale, error) {
	val, err := env.Get([]byte(prefixSale + tokenId))
	if err != nil || val == nil {
		return nil, err
	}
	var sale Sale
	err = msgpack.Unmarshal(val, &sale)
	return &sale, err
}

func writeSale(env *runtime.Env, sale *Sale) error {
	err := env.Set([]byte(prefixSale+sale.TokenId), msgpackMarshalPanic(sale))
	if err != nil {
		return err
	}
	return env.Set([]byte(prefixSaleOwner+sale.OwnerId+":"+sale.TokenId), []byte{1})
}

func deleteSale(env *runtime.Env, sale *Sale) error {
	err := env.Delete([]byte(prefixSale + sale.TokenId))
	if err != nil {
		return err
	}
	return env.Delete([]byte(prefixSaleOwner + sale.OwnerId + ":" + sale.TokenId))
}

// onApprove turns an approval notification from the token registry into a
// listing. It never round-trips back to the registry: the embedded approval
// id is trusted now and checked at settlement time.
func (c *Contract) onApprove(env *runtime.Env, args []byte) error {
	terms, err := readTerms(env)
	if err != nil {
		return err
	}
	if env.Predecessor() != terms.NFTContractId {
		return fmt.Errorf("only %s may call nft_on_approve", terms.NFTContractId)
	}
	var oa OnApproveArgs
	err = msgpack.Unmarshal(args, &oa)
	if err != nil || oa.TokenId == "" || oa.OwnerId == "" {
		return fmt.Errorf("invalid approve payload")
	}

	var sa SaleArgs
	if err := json.Unmarshal([]byte(oa.Msg), &sa); err != nil {
		return fmt.Errorf("%w: %w", ErrNotValidSaleArgs, err)
	}
	price, err := uint256.FromDecimal(sa.SalePrice)
	if err != nil || price.IsZero() {
		return fmt.Errorf("%w: bad sale price %q", ErrNotValidSaleArgs, sa.SalePrice)
	}

	old, err := readSale(env, oa.TokenId)
	if err != nil {
		return err
	}
	if old == nil || old.OwnerId != oa.OwnerId {
		if err := lockCredit(env, oa.OwnerId); err != nil {
			return err
		}
		if old != nil {
			// listed by a previous owner; their reservation is stale
			if err := deleteSale(env, old); err != nil {
				return err
			}
			if err := releaseCredit(env, old.OwnerId); err != nil {
				return err
			}
		}
	}

	sale := &Sale{
		OwnerId:    oa.OwnerId,
		TokenId:    oa.TokenId,
		ApprovalId: oa.ApprovalId,
		SalePrice:  price.Dec(),
	}
	if err := writeSale(env, sale); err != nil {
		return err
	}
	env.Emit(&runtime.Event{
		Standard: eventStandard,
		Version:  eventVersion,
		Event:    "list",
		Data:     sale,
	})
	return nil
}

type RemoveSaleArgs struct {
	TokenId string
}

// removeSale unlists a token. Removing an absent listing is a no-op, so
// the operation is idempotent.
func (c *Contract) removeSale(env *runtime.Env, args []byte) error {
	var ra RemoveSaleArgs
	err := msgpack.Unmarshal(args, &ra)
	if err != nil || ra.TokenId == "" {
		return fmt.Errorf("invalid args")
	}
	sale, err := readSale(env, ra.TokenId)
	if err != nil {
		return err
	}
	if sale == nil {
		return nil
	}
	if env.Predecessor() != sale.OwnerId {
		return fmt.Errorf("%w: token %s is listed by %s", ErrNotSeller, ra.TokenId, sale.OwnerId)
	}
	if err := deleteSale(env, sale); err != nil {
		return err
	}
	if err := releaseCredit(env, sale.OwnerId); err != nil {
		return err
	}
	env.Emit(&runtime.Event{
		Standard: eventStandard,
		Version:  eventVersion,
		Event:    "unlist",
		Data:     sale,
	})
	return nil
}

type SaleQueryArgs struct {
	TokenId string
}

func (c *Contract) viewSale(env *runtime.Env, args []byte) ([]byte, error) {
	var qa SaleQueryArgs
	err := msgpack.Unmarshal(args, &qa)
	if err != nil || qa.TokenId == "" {
		return nil, fmt.Errorf("invalid args")
	}
	sale, err := readSale(env, qa.TokenId)
	if err != nil {
		return nil, err
	}
	return msgpackMarshalPanic(sale), nil
}

type SalesByOwnerArgs struct {
	AccountId string
}

func (c *Contract) viewSalesByOwner(env *runtime.Env, args []byte) ([]byte, error) {
	var qa SalesByOwnerArgs
	err := msgpack.Unmarshal(args, &qa)
	if err != nil || qa.AccountId == "" {
		return nil, fmt.Errorf("invalid args")
	}
	prefix := []byte(prefixSaleOwner + qa.AccountId + ":")
	var sales []*Sale
	err = env.Seek(prefix, func(key, val []byte) error {
		sale, err := readSale(env, string(key[len(prefix):]))
		if err != nil {
			return err
		}
		if sale != nil {
			sales = append(sales, sale)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgpackMarshalPanic(sales), nil
}
