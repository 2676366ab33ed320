package nft

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/holiman/uint256"
	"github.com/vmihailenco/msgpack/v4"
	"go.uber.org/zap"
)

// MetadataSpec is the metadata standard version stamped on the contract
// metadata record.
const MetadataSpec = "nft-1.0.0"

// The name of the NFT standard the event records follow.
const StandardName = "nep171"

const (
	// payout fan-out stays bounded so a settlement always fits the call
	// budget: up to 6 royalty beneficiaries plus the seller
	maxRoyaltyAccounts = 6
	maxPayoutAccounts  = 7
	maxBasisPoints     = 10000
)

// State key prefixes inside the contract namespace.
const (
	keyInit          = "INIT"
	keyTerms         = "TERMS"
	keyMetadata      = "METADATA"
	keySupply        = "TOKEN:SUPPLY"
	prefixToken      = "TOKEN:PAYLOAD:"
	prefixTokenMeta  = "TOKEN:METADATA:"
	prefixTokenOwner = "TOKEN:OWNER:"
)

var ErrAlreadyInitialized = errors.New("contract already initialized")

// ContractMetadata is the contract level descriptive record.
type ContractMetadata struct {
	Spec          string `json:"spec"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	BaseURI       string `json:"base_uri"`
	Reference     string `json:"reference,omitempty"`
	ReferenceHash string `json:"reference_hash,omitempty"`
}

// Terms is the aggregate root of the token registry: the minting schedule
// and the perpetual royalty table every minted token inherits. Written once
// at initialization, read by every operation.
type Terms struct {
	OwnerId    string
	TreasuryId string
	MintPrice  string
	MaxSupply  uint64
	MintStart  int64
	MintEnd    int64
	Royalties  map[string]uint32
}

type InitArgs struct {
	OwnerId    string
	TreasuryId string
	Metadata   ContractMetadata
	MintPrice  string
	MaxSupply  uint64
	MintStart  int64
	MintEnd    int64
	Royalties  map[string]uint32
}

// Contract is the token registry. All of its state lives in the metered
// namespace of the account it is bound to.
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
	case "nft_mint":
		return c.mint(env, args)
	case "nft_approve":
		return c.approve(env, args)
	case "nft_revoke":
		return nil, c.revoke(env, args)
	case "nft_revoke_all":
		return nil, c.revokeAll(env, args)
	case "nft_is_approved":
		return c.isApproved(env, args)
	case "nft_transfer":
		return nil, c.transfer(env, args)
	case "nft_transfer_payout":
		return c.transferPayout(env, args)
	case "nft_token":
		return c.viewToken(env, args)
	case "nft_tokens_for_owner":
		return c.viewTokensForOwner(env, args)
	case "nft_total_supply":
		return c.viewTotalSupply(env)
	case "nft_metadata":
		return c.viewMetadata(env)
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
	if ia.OwnerId == "" || ia.TreasuryId == "" {
		return fmt.Errorf("owner and treasury accounts are required")
	}
	if _, err := uint256.FromDecimal(ia.MintPrice); err != nil {
		return fmt.Errorf("invalid mint price %s", ia.MintPrice)
	}
	if len(ia.Royalties) > maxRoyaltyAccounts {
		return fmt.Errorf("cannot add more than %d perpetual royalty amounts", maxRoyaltyAccounts)
	}
	var totalBp uint64
	for account, bp := range ia.Royalties {
		if account == "" || bp == 0 {
			return fmt.Errorf("invalid royalty entry %q %d", account, bp)
		}
		totalBp += uint64(bp)
	}
	if totalBp > maxBasisPoints {
		return fmt.Errorf("royalty table sums to %d basis points", totalBp)
	}

	meta := ia.Metadata
	meta.Spec = MetadataSpec
	terms := &Terms{
		OwnerId:    ia.OwnerId,
		TreasuryId: ia.TreasuryId,
		MintPrice:  ia.MintPrice,
		MaxSupply:  ia.MaxSupply,
		MintStart:  ia.MintStart,
		MintEnd:    ia.MintEnd,
		Royalties:  ia.Royalties,
	}
	if err := env.Set([]byte(keyTerms), msgpackMarshalPanic(terms)); err != nil {
		return err
	}
	if err := env.Set([]byte(keyMetadata), msgpackMarshalPanic(&meta)); err != nil {
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

func (t *Terms) mintPrice() *uint256.Int {
	price, err := uint256.FromDecimal(t.MintPrice)
	if err != nil {
		panic(t.MintPrice)
	}
	return price
}

func readSupply(env *runtime.Env) (uint64, error) {
	val, err := env.Get([]byte(keySupply))
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, nil
	}
	return strconv.ParseUint(string(val), 10, 64)
}

func writeSupply(env *runtime.Env, supply uint64) error {
	return env.Set([]byte(keySupply), []byte(strconv.FormatUint(supply, 10)))
}

func msgpackMarshalPanic(val interface{}) []byte {
	b, err := msgpack.Marshal(val)
	if err != nil {
		panic(err)
	}
	return b
}
