package nft

import (
	"errors"
	"fmt"

	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/holiman/uint256"
	"github.com/vmihailenco/msgpack/v4"
)

var (
	ErrNotOwnerOrApproved = errors.New("caller is neither owner nor approved")
	ErrSenderIsReceiver   = errors.New("receiver already owns the token")
	ErrStaleApproval      = errors.New("approval id is stale")
)

type TransferArgs struct {
	ReceiverId string
	TokenId    string
	ApprovalId *uint64
}

// transfer reassigns ownership. Clearing the approval map here is what
// makes a sale single-consumable: any approval id captured before the
// transfer can never match again.
func (c *Contract) transfer(env *runtime.Env, args []byte) error {
	var ta TransferArgs
	err := msgpack.Unmarshal(args, &ta)
	if err != nil || ta.ReceiverId == "" || ta.TokenId == "" {
		return fmt.Errorf("invalid transfer args")
	}
	_, err = c.internalTransfer(env, env.Predecessor(), ta.ReceiverId, ta.TokenId, ta.ApprovalId)
	return err
}

type TransferPayoutArgs struct {
	ReceiverId string
	TokenId    string
	ApprovalId uint64
	Balance    string
}

// Payout is the beneficiary to amount split returned to the marketplace,
// which executes the actual fund movement.
type Payout struct {
	Payout map[string]string
}

// transferPayout composes transfer with the royalty split over the sale
// price. The previous owner is the seller and absorbs the rounding
// remainder.
func (c *Contract) transferPayout(env *runtime.Env, args []byte) ([]byte, error) {
	var ta TransferPayoutArgs
	err := msgpack.Unmarshal(args, &ta)
	if err != nil || ta.ReceiverId == "" || ta.TokenId == "" {
		return nil, fmt.Errorf("invalid transfer args")
	}
	price, err := uint256.FromDecimal(ta.Balance)
	if err != nil {
		return nil, fmt.Errorf("invalid balance %s", ta.Balance)
	}
	token, err := c.internalTransfer(env, env.Predecessor(), ta.ReceiverId, ta.TokenId, &ta.ApprovalId)
	if err != nil {
		return nil, err
	}
	payout, err := computePayout(token.OwnerId, token.Royalty, price, maxPayoutAccounts)
	if err != nil {
		return nil, err
	}
	return msgpackMarshalPanic(&Payout{Payout: payout}), nil
}

// internalTransfer validates the sender against ownership and current
// approvals, then rewrites the ownership records. It returns the token as
// it was before the transfer.
func (c *Contract) internalTransfer(env *runtime.Env, sender, receiverId, tokenId string, approvalId *uint64) (*Token, error) {
	token, err := readToken(env, tokenId)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w %s", ErrTokenNotFound, tokenId)
	}
	authorizedId := ""
	if sender != token.OwnerId {
		current, ok := token.Approvals[sender]
		if !ok {
			return nil, fmt.Errorf("%w: %s cannot move token %s", ErrNotOwnerOrApproved, sender, tokenId)
		}
		if approvalId != nil && current != *approvalId {
			return nil, fmt.Errorf("%w: expected %d, current %d", ErrStaleApproval, *approvalId, current)
		}
		authorizedId = sender
	}
	if receiverId == token.OwnerId {
		return nil, fmt.Errorf("%w: %s", ErrSenderIsReceiver, tokenId)
	}

	previous := &Token{
		OwnerId:        token.OwnerId,
		Approvals:      token.Approvals,
		NextApprovalId: token.NextApprovalId,
		Royalty:        token.Royalty,
	}

	token.Approvals = make(map[string]uint64)
	if err := removeTokenFromOwner(env, token.OwnerId, tokenId); err != nil {
		return nil, err
	}
	if err := addTokenToOwner(env, receiverId, tokenId); err != nil {
		return nil, err
	}
	token.OwnerId = receiverId
	if err := writeToken(env, tokenId, token); err != nil {
		return nil, err
	}

	env.Emit(transferEvent([]TransferLog{{
		AuthorizedId: authorizedId,
		OldOwnerId:   previous.OwnerId,
		NewOwnerId:   receiverId,
		TokenIds:     []string{tokenId},
	}}))
	return previous, nil
}
