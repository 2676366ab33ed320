package nft

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/vmihailenco/msgpack/v4"
)

var (
	ErrSupplyExhausted     = errors.New("all tokens minted")
	ErrMintWindowClosed    = errors.New("minting window closed")
	ErrInsufficientPayment = errors.New("insufficient attached deposit")
)

type MintArgs struct {
	ReceiverId string
}

// mint allocates the next sequential token id for the receiver. The caller
// pays the mint price plus storage rent for the new records; the price is
// forwarded to the treasury and any excess deposit returns to the caller.
// The treasury itself mints free of price and outside the window.
func (c *Contract) mint(env *runtime.Env, args []byte) ([]byte, error) {
	var ma MintArgs
	err := msgpack.Unmarshal(args, &ma)
	if err != nil || ma.ReceiverId == "" {
		return nil, fmt.Errorf("invalid mint args")
	}
	terms, err := readTerms(env)
	if err != nil {
		return nil, err
	}
	supply, err := readSupply(env)
	if err != nil {
		return nil, err
	}
	if supply >= terms.MaxSupply {
		return nil, fmt.Errorf("%w: %d of %d", ErrSupplyExhausted, supply, terms.MaxSupply)
	}
	tokenId := strconv.FormatUint(supply, 10)

	isTreasury := env.Predecessor() == terms.TreasuryId
	deposit := env.AttachedDeposit()
	price := terms.mintPrice()
	if !isTreasury {
		now := env.Now().UnixNano()
		if now < terms.MintStart || now >= terms.MintEnd {
			return nil, fmt.Errorf("%w: window [%d, %d), now %d", ErrMintWindowClosed, terms.MintStart, terms.MintEnd, now)
		}
		if deposit.Lt(price) {
			return nil, fmt.Errorf("%w: mint price is %s, attached %s", ErrInsufficientPayment, price.Dec(), deposit.Dec())
		}
	}

	// storage is measured strictly around the mutating writes so the rent
	// charge covers exactly the records this call creates
	initialUsage := env.StorageUsage()

	if existing, err := readToken(env, tokenId); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("token %s already exists", tokenId)
	}
	token := &Token{
		OwnerId:   ma.ReceiverId,
		Approvals: make(map[string]uint64),
		Royalty:   terms.Royalties,
	}
	if err := writeToken(env, tokenId, token); err != nil {
		return nil, err
	}
	meta := &TokenMetadata{
		Title:       fmt.Sprintf("Chubby Runner #%s", tokenId),
		Description: "Chubby Runners are designed to provide the ultimate play & earn experience.",
		Media:       fmt.Sprintf("img/%s.png", tokenId),
		Reference:   fmt.Sprintf("data/%s.json", tokenId),
		Copies:      1,
	}
	if err := writeTokenMetadata(env, tokenId, meta); err != nil {
		return nil, err
	}
	if err := addTokenToOwner(env, ma.ReceiverId, tokenId); err != nil {
		return nil, err
	}
	if err := writeSupply(env, supply+1); err != nil {
		return nil, err
	}

	storageBytes := env.StorageUsage() - initialUsage
	required := env.StorageCost(storageBytes)
	if !isTreasury {
		required.Add(required, price)
	}
	if deposit.Lt(required) {
		return nil, fmt.Errorf("%w: %s required to cover storage and mint price, attached %s", ErrInsufficientPayment, required.Dec(), deposit.Dec())
	}

	if !isTreasury {
		env.Transfer(terms.TreasuryId, price)
	}
	if refund := deposit.Sub(deposit, required); !refund.IsZero() {
		env.Transfer(env.Predecessor(), refund)
	}

	env.Emit(mintEvent([]MintLog{{OwnerId: ma.ReceiverId, TokenIds: []string{tokenId}}}))
	return msgpackMarshalPanic(tokenId), nil
}
