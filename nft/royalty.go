package nft

import (
	"fmt"

	"github.com/holiman/uint256"
)

// royaltyToPayout computes one beneficiary's share of the price, rounding
// down to whole currency units.
func royaltyToPayout(price *uint256.Int, bp uint32) *uint256.Int {
	amount := new(uint256.Int).Mul(price, uint256.NewInt(uint64(bp)))
	return amount.Div(amount, uint256.NewInt(maxBasisPoints))
}

// computePayout splits the price across the royalty table. The seller takes
// price minus the beneficiary amounts, absorbing every rounding remainder,
// so the payouts always sum to the price exactly. A royalty entry for the
// seller folds into their remainder instead of paying twice.
func computePayout(seller string, royalty map[string]uint32, price *uint256.Int, maxAccounts int) (map[string]string, error) {
	if len(royalty)+1 > maxAccounts {
		return nil, fmt.Errorf("cannot pay out to more than %d accounts", maxAccounts)
	}
	payout := make(map[string]string, len(royalty)+1)
	remainder := new(uint256.Int).Set(price)
	for account, bp := range royalty {
		if account == seller {
			continue
		}
		amount := royaltyToPayout(price, bp)
		if amount.IsZero() {
			continue
		}
		if remainder.Lt(amount) {
			return nil, fmt.Errorf("royalty table exceeds the sale price")
		}
		payout[account] = amount.Dec()
		remainder.Sub(remainder, amount)
	}
	payout[seller] = remainder.Dec()
	return payout, nil
}
