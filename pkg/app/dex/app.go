package dex

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/app/core/engine"
	"github.com/uhyunpark/custodex/pkg/app/core/orderbook"
	"github.com/uhyunpark/custodex/pkg/app/core/transaction"
	"github.com/uhyunpark/custodex/pkg/num"
	"github.com/uhyunpark/custodex/pkg/storage"
	"github.com/uhyunpark/custodex/pkg/util"
)

// ErrStaleNonce is returned for a signed command whose nonce is not greater
// than the last nonce accepted from the same trader.
var ErrStaleNonce = errors.New("stale nonce")

// Result is what a caller learns about an accepted submission
type Result struct {
	Seq     uint64        `json:"seq"`
	OrderID *uint64       `json:"order_id,omitempty"`
	Fills   []engine.Fill `json:"fills,omitempty"`
}

// App sequences submissions: each one is verified, journaled with the next
// sequence number and then applied to the engine, all under one lock.
// Replaying the journal into a fresh App reproduces the same state,
// including the same rejections.
type App struct {
	mu       sync.Mutex
	engine   *engine.Engine
	journal  storage.Journal
	verifier *transaction.Verifier
	nonces   map[common.Address]uint64
	metrics  *Metrics
	log      *zap.Logger

	subMu       sync.RWMutex
	subscribers []func(engine.Trade)
}

type Config struct {
	Base     asset.Ticker
	Journal  storage.Journal
	Verifier *transaction.Verifier
	Logger   *zap.Logger
	Registry prometheus.Registerer
	Clock    util.Clock
}

func NewApp(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Clock == nil {
		cfg.Clock = util.RealClock{}
	}
	if cfg.Journal == nil {
		cfg.Journal = storage.NewMemJournal()
	}

	a := &App{
		journal:  cfg.Journal,
		verifier: cfg.Verifier,
		nonces:   make(map[common.Address]uint64),
		metrics:  NewMetrics(cfg.Registry),
		log:      cfg.Logger,
	}
	a.engine = engine.New(cfg.Base,
		engine.WithLogger(cfg.Logger.Named("engine")),
		engine.WithClock(cfg.Clock),
		engine.WithTradeHandler(a.emitTrade),
	)
	return a
}

// OnTrade subscribes fn to every trade. fn runs on the submitting goroutine
// while the app lock is held; it must not block or submit.
func (a *App) OnTrade(fn func(engine.Trade)) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	a.subscribers = append(a.subscribers, fn)
}

func (a *App) emitTrade(t engine.Trade) {
	ticker := t.Ticker.Text()
	a.metrics.fills.WithLabelValues(ticker).Inc()
	a.metrics.volume.WithLabelValues(ticker).Add(t.Amount.Float64())

	a.subMu.RLock()
	defer a.subMu.RUnlock()
	for _, fn := range a.subscribers {
		fn(t)
	}
}

// Replay applies every journaled command in order. It must run once, before
// the first Submit.
func (a *App) Replay() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var applied, rejected int
	err := a.journal.Replay(func(seq uint64, data []byte) error {
		cmd, err := transaction.Deserialize(data)
		if err != nil {
			return fmt.Errorf("corrupt journal entry: %w", err)
		}
		if _, err := a.apply(seq, cmd); err != nil {
			rejected++
		} else {
			applied++
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.metrics.lastSeq.Set(float64(a.journal.LastSeq()))
	a.log.Info("journal_replayed",
		zap.Int("applied", applied),
		zap.Int("rejected", rejected),
		zap.Uint64("last_seq", a.journal.LastSeq()),
		zap.String("state_hash", a.engine.StateHash().Hex()))
	return nil
}

// Submit verifies, journals and applies one command. Commands that fail
// signature or nonce checks are not journaled; commands the engine rejects
// are, and they consume their nonce.
func (a *App) Submit(cmd *transaction.Command) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := cmd.Validate(); err != nil {
		a.metrics.submissions.WithLabelValues(string(cmd.Type), "invalid").Inc()
		return nil, err
	}
	if cmd.Signed() {
		if err := a.authorize(cmd); err != nil {
			a.metrics.submissions.WithLabelValues(string(cmd.Type), "unauthorized").Inc()
			return nil, err
		}
	}

	data, err := cmd.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	seq, err := a.journal.Append(data)
	if err != nil {
		a.metrics.submissions.WithLabelValues(string(cmd.Type), "error").Inc()
		a.log.Error("journal_append_failed", zap.Error(err))
		return nil, err
	}
	a.metrics.lastSeq.Set(float64(seq))

	res, err := a.apply(seq, cmd)
	if err != nil {
		a.metrics.submissions.WithLabelValues(string(cmd.Type), "rejected").Inc()
		a.log.Debug("submission_rejected",
			zap.Uint64("seq", seq),
			zap.String("type", string(cmd.Type)),
			zap.Error(err))
		return nil, err
	}
	a.metrics.submissions.WithLabelValues(string(cmd.Type), "accepted").Inc()
	return res, nil
}

func (a *App) authorize(cmd *transaction.Command) error {
	if a.verifier == nil {
		return fmt.Errorf("signed commands are disabled: no verifier configured")
	}
	if _, err := a.verifier.Verify(cmd); err != nil {
		return err
	}
	if last := a.nonces[cmd.Trader()]; cmd.Nonce() <= last {
		return fmt.Errorf("%w: got %d, last accepted %d", ErrStaleNonce, cmd.Nonce(), last)
	}
	return nil
}

// apply runs a journaled command against the engine. Assumes a.mu is held.
func (a *App) apply(seq uint64, cmd *transaction.Command) (*Result, error) {
	if cmd.Signed() {
		a.nonces[cmd.Trader()] = cmd.Nonce()
	}

	res := &Result{Seq: seq}
	switch cmd.Type {
	case transaction.CmdRegisterAsset:
		p := cmd.RegisterAsset
		if err := a.engine.RegisterAsset(p.Ticker, p.Identifier); err != nil {
			return nil, err
		}

	case transaction.CmdDeposit:
		p := cmd.Deposit
		if err := a.engine.Deposit(p.Trader, p.Ticker, p.Amount); err != nil {
			return nil, err
		}

	case transaction.CmdWithdraw:
		p := cmd.Withdraw
		if err := a.engine.Withdraw(p.Trader, p.Ticker, p.Amount); err != nil {
			return nil, err
		}

	case transaction.CmdLimitOrder:
		p := cmd.Order
		id, err := a.engine.CreateLimitOrder(p.Trader, p.Ticker, p.Amount, p.Price, p.Side)
		if err != nil {
			return nil, err
		}
		res.OrderID = &id
		a.updateResting(p.Ticker)

	case transaction.CmdMarketOrder:
		p := cmd.Order
		fills, err := a.engine.CreateMarketOrder(p.Trader, p.Ticker, p.Amount, p.Side)
		if err != nil {
			return nil, err
		}
		res.Fills = fills
		a.updateResting(p.Ticker)

	default:
		return nil, fmt.Errorf("unknown command type: %s", cmd.Type)
	}
	return res, nil
}

func (a *App) updateResting(ticker asset.Ticker) {
	for _, side := range []orderbook.Side{orderbook.Buy, orderbook.Sell} {
		n, err := a.engine.RestingCount(ticker, side)
		if err != nil {
			return
		}
		a.metrics.resting.WithLabelValues(ticker.Text(), side.String()).Set(float64(n))
	}
}

// Read-only queries. They go straight to the engine, which serializes them
// with submissions.

func (a *App) BaseCurrency() asset.Ticker { return a.engine.BaseCurrency() }

func (a *App) Assets() iter.Seq[asset.Asset] { return a.engine.Assets() }

func (a *App) Asset(ticker asset.Ticker) (asset.Asset, error) { return a.engine.Asset(ticker) }

func (a *App) BalanceOf(trader common.Address, ticker asset.Ticker) (num.Uint, error) {
	return a.engine.BalanceOf(trader, ticker)
}

func (a *App) Orders(ticker asset.Ticker, side orderbook.Side) ([]orderbook.Order, error) {
	return a.engine.Orders(ticker, side)
}

func (a *App) Levels(ticker asset.Ticker, side orderbook.Side) ([]orderbook.PriceLevel, error) {
	return a.engine.Levels(ticker, side)
}

func (a *App) StateHash() common.Hash { return a.engine.StateHash() }

func (a *App) LastSeq() uint64 { return a.journal.LastSeq() }

// Nonce returns the last accepted nonce of a trader, 0 if none.
func (a *App) Nonce(trader common.Address) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nonces[trader]
}
