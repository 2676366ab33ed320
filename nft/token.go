package nft

import (
	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/vmihailenco/msgpack/v4"
)

// Token is the ownership record. An approval id is valid only while it
// matches the value stored here for that account; re-approval, revocation
// and transfers all invalidate stale ids because NextApprovalId never goes
// backwards and transfers clear the whole map.
type Token struct {
	OwnerId        string
	Approvals      map[string]uint64
	NextApprovalId uint64
	Royalty        map[string]uint32
}

// TokenMetadata is immutable after mint.
type TokenMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Media       string `json:"media"`
	Reference   string `json:"reference"`
	Copies      uint64 `json:"copies"`
}

func readToken(env *runtime.Env, tokenId string) (*Token, error) {
	val, err := env.Get([]byte(prefixToken + tokenId))
	if err != nil || val == nil {
		return nil, err
	}
	var token Token
	err = msgpack.Unmarshal(val, &token)
	return &token, err
}

func writeToken(env *runtime.Env, tokenId string, token *Token) error {
	return env.Set([]byte(prefixToken+tokenId), msgpackMarshalPanic(token))
}

func readTokenMetadata(env *runtime.Env, tokenId string) (*TokenMetadata, error) {
	val, err := env.Get([]byte(prefixTokenMeta + tokenId))
	if err != nil || val == nil {
		return nil, err
	}
	var meta TokenMetadata
	err = msgpack.Unmarshal(val, &meta)
	return &meta, err
}

func writeTokenMetadata(env *runtime.Env, tokenId string, meta *TokenMetadata) error {
	return env.Set([]byte(prefixTokenMeta+tokenId), msgpackMarshalPanic(meta))
}

// The owned-token index is a two level keyed store flattened into the key
// space: one marker record per (owner, token) pair.
func ownerIndexKey(owner, tokenId string) []byte {
	return []byte(prefixTokenOwner + owner + ":" + tokenId)
}

func addTokenToOwner(env *runtime.Env, owner, tokenId string) error {
	return env.Set(ownerIndexKey(owner, tokenId), []byte{1})
}

func removeTokenFromOwner(env *runtime.Env, owner, tokenId string) error {
	return env.Delete(ownerIndexKey(owner, tokenId))
}
