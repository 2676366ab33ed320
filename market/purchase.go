package market

import (
	"errors"
	"fmt"

	"github.com/PureCube/purecube-near-contracts/nft"
	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/vmihailenco/msgpack/v4"
	"go.uber.org/zap"
)

var (
	ErrNotListed     = errors.New("token is not listed")
	ErrPriceMismatch = errors.New("attached deposit must equal the sale price")
)

type OfferArgs struct {
	TokenId string
}

// settlement is the pending-purchase context persisted across the
// suspension point between offer and its resolve_purchase callback.
type settlement struct {
	Buyer   string
	Seller  string
	TokenId string
	Price   string
}

func readSettlement(env *runtime.Env, ref string) (*settlement, error) {
	val, err := env.Get([]byte(prefixSettlement + ref))
	if err != nil || val == nil {
		return nil, err
	}
	var s settlement
	err = msgpack.Unmarshal(val, &s)
	return &s, err
}

// offer starts a purchase. The listing is removed before the registry is
// called: receipts interleave only at call boundaries, so removing it here
// is the lock that keeps a second buyer from passing validation while the
// settlement is in flight. The listing is never restored, whatever the
// outcome.
func (c *Contract) offer(env *runtime.Env, args []byte) error {
	var oa OfferArgs
	err := msgpack.Unmarshal(args, &oa)
	if err != nil || oa.TokenId == "" {
		return fmt.Errorf("invalid args")
	}
	terms, err := readTerms(env)
	if err != nil {
		return err
	}
	sale, err := readSale(env, oa.TokenId)
	if err != nil {
		return err
	}
	if sale == nil {
		return fmt.Errorf("%w: %s", ErrNotListed, oa.TokenId)
	}
	buyer := env.Predecessor()
	if buyer == sale.OwnerId {
		return fmt.Errorf("cannot purchase your own sale")
	}
	price, err := uint256.FromDecimal(sale.SalePrice)
	if err != nil {
		panic(sale.SalePrice)
	}
	if !env.AttachedDeposit().Eq(price) {
		return fmt.Errorf("%w: listed at %s, attached %s", ErrPriceMismatch, sale.SalePrice, env.AttachedDeposit().Dec())
	}

	if err := deleteSale(env, sale); err != nil {
		return err
	}

	ref := uuid.Must(uuid.NewV4()).String()
	s := &settlement{
		Buyer:   buyer,
		Seller:  sale.OwnerId,
		TokenId: sale.TokenId,
		Price:   sale.SalePrice,
	}
	if err := env.Set([]byte(prefixSettlement+ref), msgpackMarshalPanic(s)); err != nil {
		return err
	}

	fwd := &nft.TransferPayoutArgs{
		ReceiverId: buyer,
		TokenId:    sale.TokenId,
		ApprovalId: sale.ApprovalId,
		Balance:    sale.SalePrice,
	}
	env.CallThen(terms.NFTContractId, "nft_transfer_payout", msgpackMarshalPanic(fwd), nil, "resolve_purchase", ref)
	return nil
}

// resolvePurchase finishes a settlement. On success the payout legs are
// fire-and-forget: ownership has already moved, so a failing leg is an
// unrecovered payout for manual reconciliation, never a rollback. On
// failure the buyer gets the full price back.
func (c *Contract) resolvePurchase(env *runtime.Env, args []byte) error {
	if env.Predecessor() != env.ContractID() {
		return fmt.Errorf("resolve_purchase is a private callback method")
	}
	var res runtime.CallResult
	if err := msgpack.Unmarshal(args, &res); err != nil {
		return fmt.Errorf("invalid callback payload: %w", err)
	}
	s, err := readSettlement(env, res.Ref)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("unknown settlement %s", res.Ref)
	}
	if err := env.Delete([]byte(prefixSettlement + res.Ref)); err != nil {
		return err
	}
	if err := releaseCredit(env, s.Seller); err != nil {
		return err
	}
	price, err := uint256.FromDecimal(s.Price)
	if err != nil {
		panic(s.Price)
	}

	if !res.Ok {
		env.Transfer(s.Buyer, price)
		env.Emit(&runtime.Event{
			Standard: eventStandard,
			Version:  eventVersion,
			Event:    "purchase_reverted",
			Data:     s,
		})
		return nil
	}

	payout := c.checkedPayout(res.Value, s, price)
	for account, amount := range payout {
		v, err := uint256.FromDecimal(amount)
		if err != nil {
			panic(amount)
		}
		env.Transfer(account, v)
	}
	env.Emit(&runtime.Event{
		Standard: eventStandard,
		Version:  eventVersion,
		Event:    "purchase_settled",
		Data: map[string]interface{}{
			"token_id": s.TokenId,
			"seller":   s.Seller,
			"buyer":    s.Buyer,
			"price":    s.Price,
			"payout":   payout,
		},
	})
	return nil
}

// checkedPayout validates the registry's payout table before any funds
// move. The transfer has already settled at this point, so an inconsistent
// table must not fail the callback; the whole price goes to the seller
// instead and the anomaly is logged.
func (c *Contract) checkedPayout(value []byte, s *settlement, price *uint256.Int) map[string]string {
	fallback := map[string]string{s.Seller: price.Dec()}

	var payout nft.Payout
	if err := msgpack.Unmarshal(value, &payout); err != nil || len(payout.Payout) == 0 {
		c.emitBadPayout(s)
		return fallback
	}
	total := uint256.NewInt(0)
	for _, amount := range payout.Payout {
		v, err := uint256.FromDecimal(amount)
		if err != nil {
			c.emitBadPayout(s)
			return fallback
		}
		total.Add(total, v)
	}
	if !total.Eq(price) {
		c.emitBadPayout(s)
		return fallback
	}
	return payout.Payout
}

func (c *Contract) emitBadPayout(s *settlement) {
	c.log.Warn("payout table rejected, paying seller in full",
		zap.String("token", s.TokenId), zap.String("seller", s.Seller))
}
