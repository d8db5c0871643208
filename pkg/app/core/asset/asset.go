package asset

import (
	"iter"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var (
	// ErrAssetNotFound signals that a ticker was never registered
	ErrAssetNotFound = errors.New("asset not found")
	// ErrAssetExists signals a second registration of the same ticker
	ErrAssetExists = errors.New("asset already registered")
	// ErrInvalidTicker signals an empty or oversized ticker symbol
	ErrInvalidTicker = errors.New("invalid ticker")
)

// Asset is a registered ticker and the identifier of the asset it stands
// for (the token contract address for ERC-20s).
type Asset struct {
	Ticker     Ticker         `json:"ticker"`
	Identifier common.Address `json:"identifier"`
}

// Registry maps tickers to assets. Membership is append-only: once a
// ticker is registered it is never removed or rebound.
type Registry struct {
	mu     sync.RWMutex
	assets []Asset         // registration order
	index  map[Ticker]int // ticker -> position in assets
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[Ticker]int),
	}
}

// Register adds a new asset.
// Returns ErrAssetExists if the ticker is already bound.
func (r *Registry) Register(ticker Ticker, identifier common.Address) error {
	if ticker.IsZero() {
		return errors.Wrap(ErrInvalidTicker, "zero ticker")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[ticker]; exists {
		return errors.Wrapf(ErrAssetExists, "ticker %s", ticker)
	}

	r.index[ticker] = len(r.assets)
	r.assets = append(r.assets, Asset{Ticker: ticker, Identifier: identifier})
	return nil
}

// Get retrieves an asset by ticker
func (r *Registry) Get(ticker Ticker) (Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, exists := r.index[ticker]
	if !exists {
		return Asset{}, errors.Wrapf(ErrAssetNotFound, "ticker %s", ticker)
	}
	return r.assets[i], nil
}

func (r *Registry) Has(ticker Ticker) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.index[ticker]
	return exists
}

// All yields the registered assets in registration order. The sequence
// covers the assets present when All was called and can be ranged over
// any number of times.
func (r *Registry) All() iter.Seq[Asset] {
	r.mu.RLock()
	// the slice is append-only, so this prefix never changes underneath us
	snapshot := r.assets[:len(r.assets):len(r.assets)]
	r.mu.RUnlock()

	return func(yield func(Asset) bool) {
		for _, a := range snapshot {
			if !yield(a) {
				return
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}
