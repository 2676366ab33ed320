package nft

import (
	"errors"
	"fmt"

	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/vmihailenco/msgpack/v4"
)

var (
	ErrNotOwner      = errors.New("caller is not the token owner")
	ErrTokenNotFound = errors.New("token not found")
)

type ApproveArgs struct {
	TokenId   string
	AccountId string
	Msg       string
}

// OnApproveArgs is the payload forwarded to the grantee contract when an
// approval carries sale terms.
type OnApproveArgs struct {
	TokenId    string
	OwnerId    string
	ApprovalId uint64
	Msg        string
}

// approve grants the account a fresh approval id for the token, replacing
// any prior grant for the same account. The approval commits locally before
// any sale terms are forwarded, so the grant survives even if the forward
// fails downstream.
func (c *Contract) approve(env *runtime.Env, args []byte) ([]byte, error) {
	var aa ApproveArgs
	err := msgpack.Unmarshal(args, &aa)
	if err != nil || aa.TokenId == "" || aa.AccountId == "" {
		return nil, fmt.Errorf("invalid approve args")
	}
	token, err := readToken(env, aa.TokenId)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w %s", ErrTokenNotFound, aa.TokenId)
	}
	if env.Predecessor() != token.OwnerId {
		return nil, fmt.Errorf("%w: %s owns token %s", ErrNotOwner, token.OwnerId, aa.TokenId)
	}

	initialUsage := env.StorageUsage()

	approvalId := token.NextApprovalId
	token.Approvals[aa.AccountId] = approvalId
	token.NextApprovalId++
	if err := writeToken(env, aa.TokenId, token); err != nil {
		return nil, err
	}

	storageBytes := env.StorageUsage() - initialUsage
	required := env.StorageCost(storageBytes)
	deposit := env.AttachedDeposit()
	if deposit.Lt(required) {
		return nil, fmt.Errorf("%w: %s required to cover approval storage, attached %s", ErrInsufficientPayment, required.Dec(), deposit.Dec())
	}
	if refund := deposit.Sub(deposit, required); !refund.IsZero() {
		env.Transfer(env.Predecessor(), refund)
	}

	if aa.Msg != "" {
		fwd := &OnApproveArgs{
			TokenId:    aa.TokenId,
			OwnerId:    token.OwnerId,
			ApprovalId: approvalId,
			Msg:        aa.Msg,
		}
		env.Call(aa.AccountId, "nft_on_approve", msgpackMarshalPanic(fwd), nil)
	}
	return msgpackMarshalPanic(approvalId), nil
}

type RevokeArgs struct {
	TokenId   string
	AccountId string
}

// revoke removes one approval. Revoking an absent approval is a no-op.
func (c *Contract) revoke(env *runtime.Env, args []byte) error {
	var ra RevokeArgs
	err := msgpack.Unmarshal(args, &ra)
	if err != nil || ra.TokenId == "" || ra.AccountId == "" {
		return fmt.Errorf("invalid revoke args")
	}
	token, err := readToken(env, ra.TokenId)
	if err != nil {
		return err
	}
	if token == nil {
		return fmt.Errorf("%w %s", ErrTokenNotFound, ra.TokenId)
	}
	if env.Predecessor() != token.OwnerId {
		return fmt.Errorf("%w: %s owns token %s", ErrNotOwner, token.OwnerId, ra.TokenId)
	}
	if _, ok := token.Approvals[ra.AccountId]; !ok {
		return nil
	}
	delete(token.Approvals, ra.AccountId)
	return writeToken(env, ra.TokenId, token)
}

type RevokeAllArgs struct {
	TokenId string
}

func (c *Contract) revokeAll(env *runtime.Env, args []byte) error {
	var ra RevokeAllArgs
	err := msgpack.Unmarshal(args, &ra)
	if err != nil || ra.TokenId == "" {
		return fmt.Errorf("invalid revoke args")
	}
	token, err := readToken(env, ra.TokenId)
	if err != nil {
		return err
	}
	if token == nil {
		return fmt.Errorf("%w %s", ErrTokenNotFound, ra.TokenId)
	}
	if env.Predecessor() != token.OwnerId {
		return fmt.Errorf("%w: %s owns token %s", ErrNotOwner, token.OwnerId, ra.TokenId)
	}
	if len(token.Approvals) == 0 {
		return nil
	}
	token.Approvals = make(map[string]uint64)
	return writeToken(env, ra.TokenId, token)
}

type IsApprovedArgs struct {
	TokenId           string
	ApprovedAccountId string
	ApprovalId        *uint64
}

// isApproved reports whether the account currently holds an approval for
// the token, and when an approval id is supplied, whether it is exactly the
// current one.
func (c *Contract) isApproved(env *runtime.Env, args []byte) ([]byte, error) {
	var ia IsApprovedArgs
	err := msgpack.Unmarshal(args, &ia)
	if err != nil || ia.TokenId == "" || ia.ApprovedAccountId == "" {
		return nil, fmt.Errorf("invalid args")
	}
	token, err := readToken(env, ia.TokenId)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w %s", ErrTokenNotFound, ia.TokenId)
	}
	current, ok := token.Approvals[ia.ApprovedAccountId]
	if ok && ia.ApprovalId != nil {
		ok = current == *ia.ApprovalId
	}
	return msgpackMarshalPanic(ok), nil
}
