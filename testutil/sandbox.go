package testutil

import (
	"context"
	"math"
	"testing"

	"github.com/PureCube/purecube-near-contracts/market"
	"github.com/PureCube/purecube-near-contracts/nft"
	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/PureCube/purecube-near-contracts/store"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v4"
	"go.uber.org/zap"
)

// Well known sandbox accounts. Every account starts with 1000 whole units
// except the contract accounts, which start empty.
const (
	Alice    = "alice.test"
	Bob      = "bob.test"
	Charlie  = "charlie.test"
	Owner    = "owner.test"
	Treasury = "treasury.test"
	NFT      = "nft.test"
	Market   = "market.test"
)

// Sandbox is a full ledger on a throwaway database with both contracts
// bound and initialized.
type Sandbox struct {
	t   *testing.T
	ctx context.Context
	RT  *runtime.Runtime
}

type Option func(*nft.InitArgs)

func WithMintPrice(yocto string) Option {
	return func(ia *nft.InitArgs) { ia.MintPrice = yocto }
}

func WithMaxSupply(supply uint64) Option {
	return func(ia *nft.InitArgs) { ia.MaxSupply = supply }
}

func WithMintWindow(start, end int64) Option {
	return func(ia *nft.InitArgs) {
		ia.MintStart = start
		ia.MintEnd = end
	}
}

func WithRoyalties(royalties map[string]uint32) Option {
	return func(ia *nft.InitArgs) { ia.Royalties = royalties }
}

func NewSandbox(t *testing.T, options ...Option) *Sandbox {
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := store.OpenBadger(ctx, t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rt, err := runtime.NewRuntime(db, logger)
	require.NoError(t, err)

	var genesis []runtime.AccountConfig
	for _, id := range []string{Alice, Bob, Charlie, Owner, Treasury} {
		genesis = append(genesis, runtime.AccountConfig{Id: id, Balance: "1000"})
	}
	for _, id := range []string{NFT, Market} {
		genesis = append(genesis, runtime.AccountConfig{Id: id, Balance: "0"})
	}
	require.NoError(t, rt.InitGenesis(genesis))

	rt.Bind(NFT, nft.New(logger))
	rt.Bind(Market, market.New(logger))

	s := &Sandbox{t: t, ctx: ctx, RT: rt}

	na := &nft.InitArgs{
		OwnerId:    Owner,
		TreasuryId: Treasury,
		Metadata:   nft.ContractMetadata{Name: "PureCube", Symbol: "CUBE"},
		MintPrice:  Amount(t, "1").Dec(),
		MaxSupply:  100,
		MintEnd:    math.MaxInt64,
	}
	for _, opt := range options {
		opt(na)
	}
	r := s.Call(Owner, NFT, "new", na, nil)
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)

	r = s.Call(Owner, Market, "new", &market.InitArgs{
		OwnerId:       Owner,
		NFTContractId: NFT,
	}, nil)
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)
	return s
}

// Call submits a signed call, drains the queue to idle including every
// promised follow-up, and returns the finished receipt.
func (s *Sandbox) Call(signer, receiver, method string, args interface{}, deposit *uint256.Int) *runtime.Receipt {
	id, err := s.RT.Call(s.ctx, signer, receiver, method, marshal(s.t, args), deposit)
	require.NoError(s.t, err)
	require.NoError(s.t, s.RT.Flush(s.ctx))
	r, err := s.RT.Receipt(id)
	require.NoError(s.t, err)
	return r
}

// View invokes a read-only method and decodes the result into out.
func (s *Sandbox) View(receiver, method string, args, out interface{}) {
	val, err := s.RT.View(s.ctx, Alice, receiver, method, marshal(s.t, args))
	require.NoError(s.t, err)
	if out != nil {
		require.NoError(s.t, msgpack.Unmarshal(val, out))
	}
}

func (s *Sandbox) Balance(account string) *uint256.Int {
	balance, err := s.RT.Balance(account)
	require.NoError(s.t, err)
	return balance
}

// MintToken mints a token for the receiver, paid by the receiver, and
// returns its id.
func (s *Sandbox) MintToken(receiver string) string {
	r := s.Call(receiver, NFT, "nft_mint", &nft.MintArgs{ReceiverId: receiver}, Amount(s.t, "2"))
	require.Equal(s.t, runtime.ReceiptStateDone, r.State, r.Error)
	var tokenId string
	require.NoError(s.t, msgpack.Unmarshal(r.Value, &tokenId))
	return tokenId
}

// Amount converts whole currency units to the smallest unit.
func Amount(t *testing.T, units string) *uint256.Int {
	v, err := runtime.ToYocto(units)
	require.NoError(t, err)
	return v
}

func marshal(t *testing.T, args interface{}) []byte {
	if args == nil {
		return nil
	}
	if b, ok := args.([]byte); ok {
		return b
	}
	b, err := msgpack.Marshal(args)
	require.NoError(t, err)
	return b
}
