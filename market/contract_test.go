package market_test

import (
	"fmt"
	"testing"

	"github.com/PureCube/purecube-near-contracts/market"
	"github.com/PureCube/purecube-near-contracts/nft"
	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/PureCube/purecube-near-contracts/testutil"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// listToken prepays storage and lists the token at the given price in whole
// units, through the approval round trip.
func listToken(t *testing.T, s *testutil.Sandbox, seller, tokenId, price string) {
	r := s.Call(seller, testutil.Market, "storage_deposit", nil, testutil.Amount(t, "1"))
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)

	msg := fmt.Sprintf(`{"sale_price":"%s"}`, testutil.Amount(t, price).Dec())
	r = s.Call(seller, testutil.NFT, "nft_approve", &nft.ApproveArgs{
		TokenId:   tokenId,
		AccountId: testutil.Market,
		Msg:       msg,
	}, testutil.Amount(t, "0.1"))
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)
}

func getSale(s *testutil.Sandbox, tokenId string) *market.Sale {
	var sale *market.Sale
	s.View(testutil.Market, "get_sale", &market.SaleQueryArgs{TokenId: tokenId}, &sale)
	return sale
}

func TestListing(t *testing.T) {
	s := testutil.NewSandbox(t)
	tokenId := s.MintToken(testutil.Alice)
	listToken(t, s, testutil.Alice, tokenId, "10")

	sale := getSale(s, tokenId)
	require.NotNil(t, sale)
	require.Equal(t, testutil.Alice, sale.OwnerId)
	require.Equal(t, testutil.Amount(t, "10").Dec(), sale.SalePrice)

	var sales []*market.Sale
	s.View(testutil.Market, "get_sales_by_owner",
		&market.SalesByOwnerArgs{AccountId: testutil.Alice}, &sales)
	require.Len(t, sales, 1)

	// the listing holds one reservation against the prepaid credit
	var balance market.StorageBalance
	s.View(testutil.Market, "storage_balance_of",
		&market.StorageBalanceArgs{AccountId: testutil.Alice}, &balance)
	require.Equal(t, testutil.Amount(t, "1").Dec(), balance.Total)
	require.Equal(t, testutil.Amount(t, "0.99").Dec(), balance.Available)
}

func TestListingRequiresStorageCredit(t *testing.T) {
	s := testutil.NewSandbox(t)
	tokenId := s.MintToken(testutil.Alice)

	// the approval succeeds on the registry regardless; only the forwarded
	// sale terms die on the marketplace
	r := s.Call(testutil.Alice, testutil.NFT, "nft_approve", &nft.ApproveArgs{
		TokenId:   tokenId,
		AccountId: testutil.Market,
		Msg:       fmt.Sprintf(`{"sale_price":"%s"}`, testutil.Amount(t, "10").Dec()),
	}, testutil.Amount(t, "0.1"))
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)

	require.Nil(t, getSale(s, tokenId))
	var ok bool
	s.View(testutil.NFT, "nft_is_approved", &nft.IsApprovedArgs{
		TokenId: tokenId, ApprovedAccountId: testutil.Market,
	}, &ok)
	require.True(t, ok)
}

func TestListingMalformedSaleArgs(t *testing.T) {
	s := testutil.NewSandbox(t)
	tokenId := s.MintToken(testutil.Alice)

	r := s.Call(testutil.Alice, testutil.Market, "storage_deposit", nil, testutil.Amount(t, "1"))
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)

	for _, msg := range []string{"not json", `{"sale_price":"0"}`, `{"sale_price":"ten"}`, "{}"} {
		r = s.Call(testutil.Alice, testutil.NFT, "nft_approve", &nft.ApproveArgs{
			TokenId:   tokenId,
			AccountId: testutil.Market,
			Msg:       msg,
		}, testutil.Amount(t, "0.1"))
		require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)
		require.Nil(t, getSale(s, tokenId))
	}

	// the grant stands even though every listing attempt was rejected
	var ok bool
	s.View(testutil.NFT, "nft_is_approved", &nft.IsApprovedArgs{
		TokenId: tokenId, ApprovedAccountId: testutil.Market,
	}, &ok)
	require.True(t, ok)
}

func TestRemoveSale(t *testing.T) {
	s := testutil.NewSandbox(t)
	tokenId := s.MintToken(testutil.Alice)
	listToken(t, s, testutil.Alice, tokenId, "10")

	r := s.Call(testutil.Bob, testutil.Market, "remove_sale",
		&market.RemoveSaleArgs{TokenId: tokenId}, nil)
	require.Equal(t, runtime.ReceiptStateFailed, r.State)
	require.Contains(t, r.Error, "not the seller")
	require.NotNil(t, getSale(s, tokenId))

	r = s.Call(testutil.Alice, testutil.Market, "remove_sale",
		&market.RemoveSaleArgs{TokenId: tokenId}, nil)
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)
	require.Nil(t, getSale(s, tokenId))

	// the reservation is released with the listing
	var balance market.StorageBalance
	s.View(testutil.Market, "storage_balance_of",
		&market.StorageBalanceArgs{AccountId: testutil.Alice}, &balance)
	require.Equal(t, balance.Total, balance.Available)

	// unlisting an absent sale is a no-op
	r = s.Call(testutil.Alice, testutil.Market, "remove_sale",
		&market.RemoveSaleArgs{TokenId: tokenId}, nil)
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)
}

func TestPurchase(t *testing.T) {
	s := testutil.NewSandbox(t, testutil.WithRoyalties(map[string]uint32{
		testutil.Charlie: 1000,
	}))
	tokenId := s.MintToken(testutil.Alice)
	listToken(t, s, testutil.Alice, tokenId, "10")

	price := testutil.Amount(t, "10")
	aliceBefore := s.Balance(testutil.Alice)
	bobBefore := s.Balance(testutil.Bob)
	charlieBefore := s.Balance(testutil.Charlie)
	marketBefore := s.Balance(testutil.Market)

	r := s.Call(testutil.Bob, testutil.Market, "offer",
		&market.OfferArgs{TokenId: tokenId}, price)
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)

	var jt nft.JsonToken
	s.View(testutil.NFT, "nft_token", &nft.TokenQueryArgs{TokenId: tokenId}, &jt)
	require.Equal(t, testutil.Bob, jt.OwnerId)
	require.Nil(t, getSale(s, tokenId))

	// 10% royalty to charlie, the rest to the seller, nothing sticks to
	// the marketplace
	require.Equal(t, new(uint256.Int).Sub(bobBefore, price).Dec(),
		s.Balance(testutil.Bob).Dec())
	require.Equal(t, new(uint256.Int).Add(charlieBefore, testutil.Amount(t, "1")).Dec(),
		s.Balance(testutil.Charlie).Dec())
	require.Equal(t, new(uint256.Int).Add(aliceBefore, testutil.Amount(t, "9")).Dec(),
		s.Balance(testutil.Alice).Dec())
	require.Equal(t, marketBefore.Dec(), s.Balance(testutil.Market).Dec())

	// the reservation is released after settlement
	var balance market.StorageBalance
	s.View(testutil.Market, "storage_balance_of",
		&market.StorageBalanceArgs{AccountId: testutil.Alice}, &balance)
	require.Equal(t, balance.Total, balance.Available)
}

func TestPurchasePriceMismatch(t *testing.T) {
	s := testutil.NewSandbox(t)
	tokenId := s.MintToken(testutil.Alice)
	listToken(t, s, testutil.Alice, tokenId, "10")

	bobBefore := s.Balance(testutil.Bob)
	r := s.Call(testutil.Bob, testutil.Market, "offer",
		&market.OfferArgs{TokenId: tokenId}, testutil.Amount(t, "9"))
	require.Equal(t, runtime.ReceiptStateFailed, r.State)
	require.Contains(t, r.Error, "must equal the sale price")
	require.Equal(t, bobBefore.Dec(), s.Balance(testutil.Bob).Dec())
	require.NotNil(t, getSale(s, tokenId))
}

func TestPurchaseNotListed(t *testing.T) {
	s := testutil.NewSandbox(t)
	tokenId := s.MintToken(testutil.Alice)

	r := s.Call(testutil.Bob, testutil.Market, "offer",
		&market.OfferArgs{TokenId: tokenId}, testutil.Amount(t, "10"))
	require.Equal(t, runtime.ReceiptStateFailed, r.State)
	require.Contains(t, r.Error, "not listed")
}

func TestPurchaseOwnSale(t *testing.T) {
	s := testutil.NewSandbox(t)
	tokenId := s.MintToken(testutil.Alice)
	listToken(t, s, testutil.Alice, tokenId, "10")

	r := s.Call(testutil.Alice, testutil.Market, "offer",
		&market.OfferArgs{TokenId: tokenId}, testutil.Amount(t, "10"))
	require.Equal(t, runtime.ReceiptStateFailed, r.State)
	require.Contains(t, r.Error, "cannot purchase your own sale")
	require.NotNil(t, getSale(s, tokenId))
}

func TestPurchaseStaleListing(t *testing.T) {
	s := testutil.NewSandbox(t)
	tokenId := s.MintToken(testutil.Alice)
	listToken(t, s, testutil.Alice, tokenId, "10")

	// the direct transfer clears the marketplace approval; the listing
	// stays behind, stale
	r := s.Call(testutil.Alice, testutil.NFT, "nft_transfer",
		&nft.TransferArgs{ReceiverId: testutil.Charlie, TokenId: tokenId}, nil)
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)
	require.NotNil(t, getSale(s, tokenId))

	bobBefore := s.Balance(testutil.Bob)
	r = s.Call(testutil.Bob, testutil.Market, "offer",
		&market.OfferArgs{TokenId: tokenId}, testutil.Amount(t, "10"))
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)

	// the settlement failed downstream: the buyer gets the full price
	// back, ownership is untouched, the stale listing is gone for good
	require.Equal(t, bobBefore.Dec(), s.Balance(testutil.Bob).Dec())
	var jt nft.JsonToken
	s.View(testutil.NFT, "nft_token", &nft.TokenQueryArgs{TokenId: tokenId}, &jt)
	require.Equal(t, testutil.Charlie, jt.OwnerId)
	require.Nil(t, getSale(s, tokenId))

	var balance market.StorageBalance
	s.View(testutil.Market, "storage_balance_of",
		&market.StorageBalanceArgs{AccountId: testutil.Alice}, &balance)
	require.Equal(t, balance.Total, balance.Available)
}

func TestPurchaseAfterRevoke(t *testing.T) {
	s := testutil.NewSandbox(t)
	tokenId := s.MintToken(testutil.Alice)
	listToken(t, s, testutil.Alice, tokenId, "10")

	r := s.Call(testutil.Alice, testutil.NFT, "nft_revoke",
		&nft.RevokeArgs{TokenId: tokenId, AccountId: testutil.Market}, nil)
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)

	bobBefore := s.Balance(testutil.Bob)
	r = s.Call(testutil.Bob, testutil.Market, "offer",
		&market.OfferArgs{TokenId: tokenId}, testutil.Amount(t, "10"))
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)

	require.Equal(t, bobBefore.Dec(), s.Balance(testutil.Bob).Dec())
	var jt nft.JsonToken
	s.View(testutil.NFT, "nft_token", &nft.TokenQueryArgs{TokenId: tokenId}, &jt)
	require.Equal(t, testutil.Alice, jt.OwnerId)
	require.Nil(t, getSale(s, tokenId))
}

func TestRelisting(t *testing.T) {
	s := testutil.NewSandbox(t)
	tokenId := s.MintToken(testutil.Alice)
	listToken(t, s, testutil.Alice, tokenId, "10")

	// a new price from the same owner replaces the listing without a
	// second reservation
	msg := fmt.Sprintf(`{"sale_price":"%s"}`, testutil.Amount(t, "20").Dec())
	r := s.Call(testutil.Alice, testutil.NFT, "nft_approve", &nft.ApproveArgs{
		TokenId:   tokenId,
		AccountId: testutil.Market,
		Msg:       msg,
	}, testutil.Amount(t, "0.1"))
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)

	sale := getSale(s, tokenId)
	require.NotNil(t, sale)
	require.Equal(t, testutil.Amount(t, "20").Dec(), sale.SalePrice)
	require.Equal(t, uint64(1), sale.ApprovalId)

	var balance market.StorageBalance
	s.View(testutil.Market, "storage_balance_of",
		&market.StorageBalanceArgs{AccountId: testutil.Alice}, &balance)
	require.Equal(t, testutil.Amount(t, "0.99").Dec(), balance.Available)
}

func TestStorageWithdraw(t *testing.T) {
	s := testutil.NewSandbox(t)
	tokenId := s.MintToken(testutil.Alice)
	listToken(t, s, testutil.Alice, tokenId, "10")

	// only the free credit comes back; the active listing keeps its
	// reservation
	aliceBefore := s.Balance(testutil.Alice)
	r := s.Call(testutil.Alice, testutil.Market, "storage_withdraw", nil, nil)
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)
	require.Equal(t, new(uint256.Int).Add(aliceBefore, testutil.Amount(t, "0.99")).Dec(),
		s.Balance(testutil.Alice).Dec())

	var balance market.StorageBalance
	s.View(testutil.Market, "storage_balance_of",
		&market.StorageBalanceArgs{AccountId: testutil.Alice}, &balance)
	require.Equal(t, testutil.Amount(t, "0.01").Dec(), balance.Total)
	require.Equal(t, "0", balance.Available)

	// a second listing must fail until more credit is deposited
	tokenId2 := s.MintToken(testutil.Alice)
	r = s.Call(testutil.Alice, testutil.NFT, "nft_approve", &nft.ApproveArgs{
		TokenId:   tokenId2,
		AccountId: testutil.Market,
		Msg:       fmt.Sprintf(`{"sale_price":"%s"}`, testutil.Amount(t, "5").Dec()),
	}, testutil.Amount(t, "0.1"))
	require.Equal(t, runtime.ReceiptStateDone, r.State, r.Error)
	require.Nil(t, getSale(s, tokenId2))
}

func TestStorageDepositRequiresAmount(t *testing.T) {
	s := testutil.NewSandbox(t)

	r := s.Call(testutil.Alice, testutil.Market, "storage_deposit", nil, nil)
	require.Equal(t, runtime.ReceiptStateFailed, r.State)
	require.Contains(t, r.Error, "requires an attached amount")
}

func TestResolvePurchaseIsPrivate(t *testing.T) {
	s := testutil.NewSandbox(t)

	r := s.Call(testutil.Alice, testutil.Market, "resolve_purchase",
		&runtime.CallResult{Ref: "forged", Ok: true}, nil)
	require.Equal(t, runtime.ReceiptStateFailed, r.State)
	require.Contains(t, r.Error, "private callback")
}
