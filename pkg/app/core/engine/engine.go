package engine

import (
	"encoding/binary"
	"iter"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/app/core/ledger"
	"github.com/uhyunpark/custodex/pkg/app/core/orderbook"
	"github.com/uhyunpark/custodex/pkg/num"
	"github.com/uhyunpark/custodex/pkg/util"
)

// Fill is one match of a market order against a resting order.
type Fill struct {
	CounterpartyOrderID uint64         `json:"counterparty_order_id"`
	Counterparty        common.Address `json:"counterparty"`
	Amount              num.Uint       `json:"amount"`
	Price               num.Uint       `json:"price"`
}

// Trade is emitted for every fill after the submission that produced it
// has been committed.
type Trade struct {
	ID        uint64         `json:"id"`
	OrderID   uint64         `json:"order_id"` // resting (maker) order
	Ticker    asset.Ticker   `json:"ticker"`
	Maker     common.Address `json:"maker"`
	Taker     common.Address `json:"taker"`
	TakerSide orderbook.Side `json:"taker_side"`
	Amount    num.Uint       `json:"amount"`
	Price     num.Uint       `json:"price"`
	Timestamp time.Time      `json:"timestamp"`
}

type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithClock(clock util.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithTradeHandler registers fn to receive trades in commit order. fn runs
// inside the engine lock and must not call back into the engine.
func WithTradeHandler(fn func(Trade)) Option {
	return func(e *Engine) { e.onTrade = fn }
}

// Engine owns the asset registry, the ledger and one book per tradable
// asset. Every public method is serialized on a single mutex: a submission
// is applied completely or rejected without any change to state.
type Engine struct {
	mu sync.Mutex

	base   asset.Ticker
	assets *asset.Registry
	ledger *ledger.Ledger
	books  map[asset.Ticker]*orderbook.Book

	nextOrderID uint64
	nextTradeID uint64

	clock   util.Clock
	log     *zap.Logger
	onTrade func(Trade)
}

// New creates an engine settling in base. The base asset still has to be
// registered before it can be deposited.
func New(base asset.Ticker, opts ...Option) *Engine {
	assets := asset.NewRegistry()
	e := &Engine{
		base:    base,
		assets:  assets,
		ledger:  ledger.New(assets),
		books:   make(map[asset.Ticker]*orderbook.Book),
		clock:   util.RealClock{},
		log:     zap.NewNop(),
		onTrade: func(Trade) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) BaseCurrency() asset.Ticker {
	return e.base
}

// RegisterAsset adds an asset and, unless it is the base currency, opens
// its book.
func (e *Engine) RegisterAsset(ticker asset.Ticker, identifier common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.assets.Register(ticker, identifier); err != nil {
		return err
	}
	if ticker != e.base {
		e.books[ticker] = orderbook.NewBook(ticker)
	}
	e.log.Info("asset registered",
		zap.Stringer("ticker", ticker),
		zap.String("identifier", identifier.Hex()),
		zap.Bool("base", ticker == e.base))
	return nil
}

// Assets yields registered assets in registration order.
func (e *Engine) Assets() iter.Seq[asset.Asset] {
	return e.assets.All()
}

func (e *Engine) Asset(ticker asset.Ticker) (asset.Asset, error) {
	return e.assets.Get(ticker)
}

func (e *Engine) Deposit(trader common.Address, ticker asset.Ticker, amount num.Uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Deposit(trader, ticker, amount)
}

func (e *Engine) Withdraw(trader common.Address, ticker asset.Ticker, amount num.Uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Withdraw(trader, ticker, amount)
}

// BalanceOf returns ErrAssetNotFound for unregistered tickers and zero for
// traders that never held the asset.
func (e *Engine) BalanceOf(trader common.Address, ticker asset.Ticker) (num.Uint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.assets.Has(ticker) {
		return num.Zero, errors.Wrapf(ErrAssetNotFound, "ticker %s", ticker)
	}
	return e.ledger.BalanceOf(trader, ticker), nil
}

// Total is the custodied amount of an asset across all traders.
func (e *Engine) Total(ticker asset.Ticker) (num.Uint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.assets.Has(ticker) {
		return num.Zero, errors.Wrapf(ErrAssetNotFound, "ticker %s", ticker)
	}
	return e.ledger.Total(ticker), nil
}

// Orders returns the resting orders of one side in priority order.
func (e *Engine) Orders(ticker asset.Ticker, side orderbook.Side) ([]orderbook.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	book, err := e.book(ticker)
	if err != nil {
		return nil, err
	}
	if !side.Valid() {
		return nil, errors.Wrapf(ErrInvalidSide, "%d", side)
	}
	return book.Snapshot(side), nil
}

// Levels returns the aggregated depth of one side, best price first.
func (e *Engine) Levels(ticker asset.Ticker, side orderbook.Side) ([]orderbook.PriceLevel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	book, err := e.book(ticker)
	if err != nil {
		return nil, err
	}
	if !side.Valid() {
		return nil, errors.Wrapf(ErrInvalidSide, "%d", side)
	}
	return book.Levels(side), nil
}

// RestingCount is the number of resting orders on one side.
func (e *Engine) RestingCount(ticker asset.Ticker, side orderbook.Side) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	book, err := e.book(ticker)
	if err != nil {
		return 0, err
	}
	if !side.Valid() {
		return 0, errors.Wrapf(ErrInvalidSide, "%d", side)
	}
	return book.Len(side), nil
}

// NextOrderID is the ID the next limit order will receive.
func (e *Engine) NextOrderID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextOrderID
}

// StateHash digests registry, ledger and books. Two engines that applied
// the same submissions in the same order have the same hash.
func (e *Engine) StateHash() common.Hash {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := crypto.NewKeccakState()
	var buf [8]byte

	h.Write(e.base[:])
	binary.BigEndian.PutUint64(buf[:], e.nextOrderID)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], e.nextTradeID)
	h.Write(buf[:])

	for a := range e.assets.All() {
		h.Write(a.Ticker[:])
		h.Write(a.Identifier[:])
	}
	e.ledger.Hash(h)
	for a := range e.assets.All() {
		if book, ok := e.books[a.Ticker]; ok {
			book.Hash(h)
		}
	}
	return common.BytesToHash(h.Sum(nil))
}

// book resolves the book of a tradable asset. Assumes e.mu is held.
func (e *Engine) book(ticker asset.Ticker) (*orderbook.Book, error) {
	if ticker == e.base {
		return nil, errors.Wrapf(ErrInvalidAsset, "ticker %s", ticker)
	}
	book, ok := e.books[ticker]
	if !ok {
		return nil, errors.Wrapf(ErrAssetNotFound, "ticker %s", ticker)
	}
	return book, nil
}
