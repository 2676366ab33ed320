package main

import (
	"context"
	"flag"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/PureCube/purecube-near-contracts/market"
	"github.com/PureCube/purecube-near-contracts/nft"
	"github.com/PureCube/purecube-near-contracts/runtime"
	"github.com/PureCube/purecube-near-contracts/store"
	"github.com/vmihailenco/msgpack/v4"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	bp := flag.String("d", "~/.purecube/data", "database directory path")
	cp := flag.String("c", "~/.purecube/config.toml", "configuration file path")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	conf, err := runtime.Setup(expandPath(*cp))
	if err != nil {
		panic(err)
	}

	db, err := store.OpenBadger(ctx, expandPath(*bp), logger)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	rt, err := runtime.NewRuntime(db, logger)
	if err != nil {
		panic(err)
	}
	if err := rt.InitGenesis(conf.Genesis); err != nil {
		panic(err)
	}

	rt.Bind(conf.NFT.AccountId, nft.New(logger))
	rt.Bind(conf.Market.AccountId, market.New(logger))
	if err := initContracts(ctx, rt, conf); err != nil {
		panic(err)
	}

	rt.Run(ctx)
}

// initContracts submits the one-time "new" calls on a fresh database. The
// registry's metadata view only answers after initialization, so it doubles
// as the freshness probe.
func initContracts(ctx context.Context, rt *runtime.Runtime, conf *runtime.Configuration) error {
	_, err := rt.View(ctx, conf.NFT.OwnerId, conf.NFT.AccountId, "nft_metadata", nil)
	if err == nil {
		return nil
	}

	price, err := runtime.ToYocto(conf.NFT.MintPrice)
	if err != nil {
		return err
	}
	na, err := msgpack.Marshal(&nft.InitArgs{
		OwnerId:    conf.NFT.OwnerId,
		TreasuryId: conf.NFT.TreasuryId,
		Metadata: nft.ContractMetadata{
			Name:    conf.NFT.Name,
			Symbol:  conf.NFT.Symbol,
			BaseURI: conf.NFT.BaseURI,
		},
		MintPrice: price.Dec(),
		MaxSupply: conf.NFT.MaxSupply,
		MintStart: conf.NFT.MintStart,
		MintEnd:   conf.NFT.MintEnd,
		Royalties: conf.NFT.Royalties,
	})
	if err != nil {
		return err
	}
	_, err = rt.Call(ctx, conf.NFT.OwnerId, conf.NFT.AccountId, "new", na, nil)
	if err != nil {
		return err
	}

	ma, err := msgpack.Marshal(&market.InitArgs{
		OwnerId:       conf.Market.OwnerId,
		NFTContractId: conf.Market.NFTContractId,
	})
	if err != nil {
		return err
	}
	_, err = rt.Call(ctx, conf.Market.OwnerId, conf.Market.AccountId, "new", ma, nil)
	if err != nil {
		return err
	}
	return rt.Flush(ctx)
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		usr, _ := user.Current()
		p = filepath.Join(usr.HomeDir, p[2:])
	}
	return p
}
