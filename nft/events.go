package nft

import "github.com/PureCube/purecube-near-contracts/runtime"

const eventVersion = "1.0.0"

type MintLog struct {
	OwnerId  string   `json:"owner_id"`
	TokenIds []string `json:"token_ids"`
	Memo     string   `json:"memo,omitempty"`
}

type TransferLog struct {
	AuthorizedId string   `json:"authorized_id,omitempty"`
	OldOwnerId   string   `json:"old_owner_id"`
	NewOwnerId   string   `json:"new_owner_id"`
	TokenIds     []string `json:"token_ids"`
	Memo         string   `json:"memo,omitempty"`
}

func mintEvent(logs []MintLog) *runtime.Event {
	return &runtime.Event{
		Standard: StandardName,
		Version:  eventVersion,
		Event:    "nft_mint",
		Data:     logs,
	}
}

func transferEvent(logs []TransferLog) *runtime.Event {
	return &runtime.Event{
		Standard: StandardName,
		Version:  eventVersion,
		Event:    "nft_transfer",
		Data:     logs,
	}
}
