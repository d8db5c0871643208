package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/uhyunpark/custodex/params"
	"github.com/uhyunpark/custodex/pkg/api"
	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/app/core/transaction"
	"github.com/uhyunpark/custodex/pkg/app/dex"
	"github.com/uhyunpark/custodex/pkg/crypto"
	"github.com/uhyunpark/custodex/pkg/storage"
	"github.com/uhyunpark/custodex/pkg/util"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		panic(err)
	}

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Infow("node_starting",
		"base", cfg.Exchange.BaseCurrency,
		"chain_id", cfg.Exchange.ChainID,
		"journal_dir", cfg.Node.JournalDir,
		"log_file", cfg.Node.LogFile,
	)

	base, err := asset.NewTicker(cfg.Exchange.BaseCurrency)
	if err != nil {
		sugar.Fatalw("invalid_base_currency", "err", err)
	}

	// Journal: pebble on disk, or memory when JOURNAL_DIR is empty
	var journal storage.Journal
	if cfg.Node.JournalDir != "" {
		pj, err := storage.NewPebbleJournal(cfg.Node.JournalDir)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "dir", cfg.Node.JournalDir, "err", err)
		}
		journal = pj
	} else {
		sugar.Warnw("journal_in_memory", "note", "state is lost on restart")
		journal = storage.NewMemJournal()
	}
	defer journal.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := dex.NewApp(dex.Config{
		Base:     base,
		Journal:  journal,
		Verifier: transaction.NewVerifier(crypto.NewDomain(big.NewInt(cfg.Exchange.ChainID))),
		Logger:   logger.Named("dex"),
		Registry: registry,
	})

	if err := app.Replay(); err != nil {
		sugar.Fatalw("journal_replay_failed", "err", err)
	}

	// First start: seed the configured assets
	if app.LastSeq() == 0 {
		for _, a := range cfg.Exchange.Assets {
			ticker, err := asset.NewTicker(a.Ticker)
			if err != nil {
				sugar.Fatalw("invalid_genesis_asset", "ticker", a.Ticker, "err", err)
			}
			_, err = app.Submit(&transaction.Command{
				Type:          transaction.CmdRegisterAsset,
				RegisterAsset: &transaction.RegisterAssetPayload{Ticker: ticker, Identifier: a.Identifier},
			})
			if err != nil {
				sugar.Fatalw("genesis_asset_failed", "ticker", a.Ticker, "err", err)
			}
			sugar.Infow("genesis_asset_registered", "ticker", a.Ticker, "identifier", a.Identifier.Hex())
		}
	}

	if cfg.Node.AdminToken == "" {
		sugar.Warnw("admin_disabled", "note", "set ADMIN_TOKEN to enable asset registration and deposits")
	}

	apiServer := api.NewServer(app, api.Options{
		AdminToken:  cfg.Node.AdminToken,
		CORSOrigins: cfg.Node.CORSOrigins,
		Gatherer:    registry,
		Logger:      logger.Named("api"),
	})
	// subscribe after replay so historic trades are not re-broadcast
	app.OnTrade(apiServer.Hub().BroadcastTrade)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("node_ready",
		"api_addr", cfg.Node.APIAddr,
		"last_seq", app.LastSeq(),
		"state_hash", app.StateHash().Hex(),
	)

	if err := apiServer.Start(ctx, cfg.Node.APIAddr); err != nil {
		logger.Error("api_server_failed", zap.Error(err))
		return
	}
	sugar.Infow("node_stopped", "last_seq", app.LastSeq())
}
