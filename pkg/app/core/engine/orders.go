package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/app/core/orderbook"
	"github.com/uhyunpark/custodex/pkg/num"
)

// CreateLimitOrder checks the trader's balance and rests a new order in the
// book. Funds are checked, not reserved: a later match against a spent
// balance fails at match time.
func (e *Engine) CreateLimitOrder(trader common.Address, ticker asset.Ticker, amount, price num.Uint, side orderbook.Side) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	book, err := e.book(ticker)
	if err != nil {
		return 0, err
	}
	if err := validateOrder(amount, side); err != nil {
		return 0, err
	}
	if price.IsZero() {
		return 0, ErrInvalidPrice
	}

	switch side {
	case orderbook.Sell:
		if have := e.ledger.BalanceOf(trader, ticker); have.LT(amount) {
			return 0, errors.Wrapf(ErrInsufficientTokenBalance, "have %s, need %s %s", have, amount, ticker)
		}
	case orderbook.Buy:
		cost, overflow := amount.Mul(price)
		if overflow {
			return 0, errors.Wrapf(ErrAmountOverflow, "%s x %s", amount, price)
		}
		if have := e.ledger.BalanceOf(trader, e.base); have.LT(cost) {
			return 0, errors.Wrapf(ErrInsufficientBaseBalance, "have %s, need %s %s", have, cost, e.base)
		}
	}

	order := &orderbook.Order{
		ID:     e.nextOrderID,
		Trader: trader,
		Ticker: ticker,
		Side:   side,
		Price:  price,
		Amount: amount,
	}
	if err := book.Insert(order); err != nil {
		return 0, err
	}
	e.nextOrderID++

	e.log.Debug("limit order placed",
		zap.Uint64("id", order.ID),
		zap.String("trader", trader.Hex()),
		zap.Stringer("ticker", ticker),
		zap.Stringer("side", side),
		zap.Stringer("price", price),
		zap.Stringer("amount", amount))
	return order.ID, nil
}

type match struct {
	maker  *orderbook.Order
	traded num.Uint
}

// CreateMarketOrder walks the opposite side of the book, best first, and
// settles against each resting order at that order's own price. The walk is
// staged: if any step fails nothing is applied and no fill is reported.
// Amount left over when the book runs dry is dropped.
func (e *Engine) CreateMarketOrder(trader common.Address, ticker asset.Ticker, amount num.Uint, side orderbook.Side) ([]Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	book, err := e.book(ticker)
	if err != nil {
		return nil, err
	}
	if err := validateOrder(amount, side); err != nil {
		return nil, err
	}
	if side == orderbook.Sell {
		if have := e.ledger.BalanceOf(trader, ticker); have.LT(amount) {
			return nil, errors.Wrapf(ErrInsufficientTokenBalance, "have %s, need %s %s", have, amount, ticker)
		}
	}

	batch := e.ledger.Begin()
	remaining := amount
	var (
		matches []match
		walkErr error
	)
	book.Walk(side.Opposite(), func(r *orderbook.Order) bool {
		if remaining.IsZero() {
			return false
		}
		traded := num.Min(remaining, r.Remaining())
		cost, overflow := traded.Mul(r.Price)
		if overflow {
			walkErr = errors.Wrapf(ErrAmountOverflow, "%s x %s against order %d", traded, r.Price, r.ID)
			return false
		}

		buyer, seller := trader, r.Trader
		if side == orderbook.Sell {
			buyer, seller = r.Trader, trader
		}
		if err := batch.Settle(buyer, seller, ticker, e.base, traded, cost); err != nil {
			walkErr = errors.Wrapf(err, "against order %d", r.ID)
			return false
		}

		matches = append(matches, match{maker: r, traded: traded})
		remaining, _ = remaining.Sub(traded)
		return true
	})
	if walkErr != nil {
		e.log.Debug("market order rejected",
			zap.String("trader", trader.Hex()),
			zap.Stringer("ticker", ticker),
			zap.Stringer("side", side),
			zap.Int("matched_before_failure", len(matches)),
			zap.Error(walkErr))
		return nil, walkErr
	}

	batch.Commit()

	now := e.clock.Now()
	fills := make([]Fill, 0, len(matches))
	for _, m := range matches {
		// matches are taken from the front of the side in order, so each
		// maker is the best order when its fill is recorded
		if err := book.Fill(m.maker, m.traded); err != nil {
			e.log.Error("fill not applied to book", zap.Uint64("id", m.maker.ID), zap.Error(err))
		}

		fills = append(fills, Fill{
			CounterpartyOrderID: m.maker.ID,
			Counterparty:        m.maker.Trader,
			Amount:              m.traded,
			Price:               m.maker.Price,
		})
		e.onTrade(Trade{
			ID:        e.nextTradeID,
			OrderID:   m.maker.ID,
			Ticker:    ticker,
			Maker:     m.maker.Trader,
			Taker:     trader,
			TakerSide: side,
			Amount:    m.traded,
			Price:     m.maker.Price,
			Timestamp: now,
		})
		e.nextTradeID++
	}

	e.log.Debug("market order executed",
		zap.String("trader", trader.Hex()),
		zap.Stringer("ticker", ticker),
		zap.Stringer("side", side),
		zap.Stringer("amount", amount),
		zap.Stringer("unfilled", remaining),
		zap.Int("fills", len(fills)))
	return fills, nil
}

func validateOrder(amount num.Uint, side orderbook.Side) error {
	if !side.Valid() {
		return errors.Wrapf(ErrInvalidSide, "%d", side)
	}
	if amount.IsZero() {
		return errors.Wrap(ErrInvalidAmount, "order amount")
	}
	return nil
}
