package runtime

import (
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/pelletier/go-toml"
	"github.com/shopspring/decimal"
)

type AccountConfig struct {
	Id      string `toml:"id"`
	Balance string `toml:"balance"`
}

type NFTConfig struct {
	AccountId  string            `toml:"account"`
	OwnerId    string            `toml:"owner"`
	TreasuryId string            `toml:"treasury"`
	Name       string            `toml:"name"`
	Symbol     string            `toml:"symbol"`
	BaseURI    string            `toml:"base_uri"`
	MintPrice  string            `toml:"mint_price"`
	MaxSupply  uint64            `toml:"max_supply"`
	MintStart  int64             `toml:"mint_start"`
	MintEnd    int64             `toml:"mint_end"`
	Royalties  map[string]uint32 `toml:"royalties"`
}

type MarketConfig struct {
	AccountId     string `toml:"account"`
	OwnerId       string `toml:"owner"`
	NFTContractId string `toml:"nft_contract"`
}

// Configuration describes the whole sandbox: the genesis accounts with
// their balances in whole currency units, and the terms both contracts are
// initialized with.
type Configuration struct {
	Genesis []AccountConfig `toml:"genesis"`
	NFT     NFTConfig       `toml:"nft"`
	Market  MarketConfig    `toml:"market"`
}

func Setup(path string) (*Configuration, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var conf Configuration
	err = toml.Unmarshal(f, &conf)
	if err != nil {
		return nil, err
	}
	if len(conf.Genesis) == 0 {
		return nil, fmt.Errorf("empty genesis account list")
	}
	for _, a := range conf.Genesis {
		if _, err := ToYocto(a.Balance); err != nil {
			return nil, fmt.Errorf("genesis account %s: %w", a.Id, err)
		}
	}
	if conf.NFT.AccountId == "" || conf.Market.AccountId == "" {
		return nil, fmt.Errorf("both contract accounts must be configured")
	}
	return &conf, nil
}

// ToYocto converts an amount of whole currency units, possibly fractional,
// to the smallest indivisible unit.
func ToYocto(amount string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %s", amount)
	}
	d = d.Shift(24)
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %s", amount)
	}
	v, err := uint256.FromDecimal(d.String())
	if err != nil {
		return nil, fmt.Errorf("invalid amount %s: %w", amount, err)
	}
	return v, nil
}
