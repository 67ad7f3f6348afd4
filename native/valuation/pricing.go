package valuation

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"

	"nftmarket/native/asset"
	"nftmarket/native/common"
)

// comparableWindow is the trailing period of completed orders considered when
// suggesting a listing price.
const comparableWindow = 30 * 24 * time.Hour

var (
	errNilState = errors.New("valuation engine: state not configured")

	ErrNoComparables = fmt.Errorf("valuation: no comparable sales or floor price: %w", common.ErrNotFound)
	ErrNotScored     = fmt.Errorf("valuation: asset has no rarity score: %w", common.ErrValidation)
	ErrNoCollection  = fmt.Errorf("valuation: asset has no collection: %w", common.ErrValidation)
)

// State is the read-only persistence surface used for price suggestions.
type State interface {
	AssetGet(ctx context.Context, id uuid.UUID) (*asset.Asset, error)
	// CompletedSalePrices returns the prices of COMPLETED orders since the
	// given time for assets of the collection and rarity tier.
	CompletedSalePrices(ctx context.Context, collectionID uuid.UUID, tier string, since time.Time) ([]*big.Int, error)
	// CollectionFloorPrice returns the configured floor price of a
	// collection; ok is false when none is set.
	CollectionFloorPrice(ctx context.Context, collectionID uuid.UUID) (*big.Int, bool, error)
}

// Engine produces advisory valuations. Its output never feeds settlement.
type Engine struct {
	state State
	nowFn func() time.Time
}

// NewEngine constructs a valuation engine over the supplied state.
func NewEngine(state State) *Engine {
	return &Engine{state: state, nowFn: time.Now}
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// SuggestListingPrice returns the median completed-sale price over the
// trailing 30 days for the asset's collection and tier, adjusted by up to
// ±10% according to the asset's position inside its tier band. When no
// comparable sale exists the collection floor price is returned instead.
func (e *Engine) SuggestListingPrice(ctx context.Context, assetID uuid.UUID) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	a, err := e.state.AssetGet(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if a.CollectionID == nil {
		return nil, ErrNoCollection
	}
	if a.RarityScore == nil || a.RarityTier == "" {
		return nil, ErrNotScored
	}
	since := e.nowFn().Add(-comparableWindow)
	prices, err := e.state.CompletedSalePrices(ctx, *a.CollectionID, a.RarityTier, since)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		floor, ok, err := e.state.CollectionFloorPrice(ctx, *a.CollectionID)
		if err != nil {
			return nil, err
		}
		if !ok || floor == nil || floor.Sign() <= 0 {
			return nil, ErrNoComparables
		}
		return new(big.Int).Set(floor), nil
	}
	base := median(prices)
	return adjustForBandPosition(base, *a.RarityScore, a.RarityTier), nil
}

func median(prices []*big.Int) *big.Int {
	sorted := make([]*big.Int, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return new(big.Int).Set(sorted[mid])
	}
	sum := new(big.Int).Add(sorted[mid-1], sorted[mid])
	return sum.Div(sum, big.NewInt(2))
}

// adjustForBandPosition scales the base price by 1 + (position-0.5)*20%,
// where position is the asset's relative score inside its tier band. An asset
// at the bottom of the band suggests -10%, at the top +10%.
func adjustForBandPosition(base *big.Int, score float64, tier string) *big.Int {
	lo, hi := tierBand(tier)
	position := 0.5
	if hi > lo {
		position = (score - lo) / (hi - lo)
	}
	if position < 0 {
		position = 0
	}
	if position > 1 {
		position = 1
	}
	adjBps := int64((position - 0.5) * 2000)
	scaled := new(big.Int).Mul(base, big.NewInt(10_000+adjBps))
	return scaled.Div(scaled, big.NewInt(10_000))
}
