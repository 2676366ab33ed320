package nft

import (
	"fmt"

	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/vmihailenco/msgpack/v4"
)

// JsonToken is the external representation of a token.
type JsonToken struct {
	TokenId            string            `json:"token_id"`
	OwnerId            string            `json:"owner_id"`
	Metadata           *TokenMetadata    `json:"metadata"`
	ApprovedAccountIds map[string]uint64 `json:"approved_account_ids"`
	Royalty            map[string]uint32 `json:"royalty"`
}

type TokenQueryArgs struct {
	TokenId string
}

func (c *Contract) viewToken(env *runtime.Env, args []byte) ([]byte, error) {
	var qa TokenQueryArgs
	err := msgpack.Unmarshal(args, &qa)
	if err != nil || qa.TokenId == "" {
		return nil, fmt.Errorf("invalid args")
	}
	jt, err := c.jsonToken(env, qa.TokenId)
	if err != nil {
		return nil, err
	}
	return msgpackMarshalPanic(jt), nil
}

type TokensForOwnerArgs struct {
	AccountId string
	FromIndex uint64
	Limit     uint64
}

// viewTokensForOwner pages through the owner index. The limit keeps a
// single call from iterating an unbounded set.
func (c *Contract) viewTokensForOwner(env *runtime.Env, args []byte) ([]byte, error) {
	var qa TokensForOwnerArgs
	err := msgpack.Unmarshal(args, &qa)
	if err != nil || qa.AccountId == "" {
		return nil, fmt.Errorf("invalid args")
	}
	if qa.Limit == 0 || qa.Limit > 50 {
		qa.Limit = 50
	}

	prefix := []byte(prefixTokenOwner + qa.AccountId + ":")
	var index uint64
	var tokens []*JsonToken
	err = env.Seek(prefix, func(key, val []byte) error {
		if index < qa.FromIndex {
			index++
			return nil
		}
		if uint64(len(tokens)) >= qa.Limit {
			return nil
		}
		index++
		jt, err := c.jsonToken(env, string(key[len(prefix):]))
		if err != nil {
			return err
		}
		tokens = append(tokens, jt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgpackMarshalPanic(tokens), nil
}

func (c *Contract) viewTotalSupply(env *runtime.Env) ([]byte, error) {
	supply, err := readSupply(env)
	if err != nil {
		return nil, err
	}
	return msgpackMarshalPanic(supply), nil
}

func (c *Contract) viewMetadata(env *runtime.Env) ([]byte, error) {
	val, err := env.Get([]byte(keyMetadata))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, fmt.Errorf("contract not initialized")
	}
	var meta ContractMetadata
	if err := msgpack.Unmarshal(val, &meta); err != nil {
		return nil, err
	}
	return msgpackMarshalPanic(&meta), nil
}

func (c *Contract) jsonToken(env *runtime.Env, tokenId string) (*JsonToken, error) {
	token, err := readToken(env, tokenId)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w %s", ErrTokenNotFound, tokenId)
	}
	meta, err := readTokenMetadata(env, tokenId)
	if err != nil {
		return nil, err
	}
	return &JsonToken{
		TokenId:            tokenId,
		OwnerId:            token.OwnerId,
		Metadata:           meta,
		ApprovedAccountIds: token.Approvals,
		Royalty:            token.Royalty,
	}, nil
}
