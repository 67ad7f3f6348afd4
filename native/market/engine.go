package market

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/asset"
	"nftmarket/native/common"
	"nftmarket/native/escrow"
	"nftmarket/native/fees"
)

const moduleName = "market"

var (
	errNilState = errors.New("market engine: state not configured")

	ErrListingNotFound      = fmt.Errorf("market: listing not found: %w", common.ErrNotFound)
	ErrOfferNotFound        = fmt.Errorf("market: offer not found: %w", common.ErrNotFound)
	ErrAssetIntegrity       = fmt.Errorf("market: listing references a missing asset: %w", common.ErrNotFound)
	ErrListingNotActive     = fmt.Errorf("market: listing is not active: %w", common.ErrInvalidState)
	ErrListingExpired       = fmt.Errorf("market: listing has expired: %w", common.ErrInvalidState)
	ErrAssetNotMinted       = fmt.Errorf("market: asset is not in minted state: %w", common.ErrInvalidState)
	ErrAssetInCustody       = fmt.Errorf("market: asset is locked: %w", common.ErrInvalidState)
	ErrAlreadyListed        = fmt.Errorf("market: asset already has an active listing: %w", common.ErrInvalidState)
	ErrNotSeller            = fmt.Errorf("market: caller is not the seller: %w", common.ErrUnauthorized)
	ErrNotBuyer             = fmt.Errorf("market: caller is not the buyer: %w", common.ErrUnauthorized)
	ErrSelfTrade            = fmt.Errorf("market: buyer and seller are the same user: %w", common.ErrUnauthorized)
	ErrNotOwner             = fmt.Errorf("market: asset is not owned by the seller: %w", common.ErrUnauthorized)
	ErrCurrencyNotSupported = fmt.Errorf("market: currency not supported on chain: %w", common.ErrValidation)
	ErrPriceOutOfBounds     = fmt.Errorf("market: stable price outside configured bounds: %w", common.ErrValidation)
	ErrPriceNotPositive     = fmt.Errorf("market: price must be positive: %w", common.ErrValidation)
)

// ChainPolicy is the subset of operator configuration the market consults when
// validating listings.
type ChainPolicy interface {
	// SupportedCurrency reports whether a currency can be traded on a chain.
	SupportedCurrency(chain, currency string) bool
	// IsStableCurrency reports whether the currency is the chain's
	// designated stable asset, which is subject to price bounds.
	IsStableCurrency(chain, currency string) bool
	// StablePriceBounds returns the configured min/max listing price for
	// stable-denominated listings; ok is false when unbounded.
	StablePriceBounds(chain string) (min, max *big.Int, ok bool)
}

// State is the persistence surface consumed by the market engine. It embeds
// the asset surface because every settlement path touches asset custody and
// ownership inside the same transaction, and the escrow writer so a trade and
// its ledger entry commit together. Conditional writes must report
// common.ErrConflict when the status guard matches zero rows.
type State interface {
	asset.State
	escrow.Writer

	ListingPut(ctx context.Context, l *Listing) error
	ListingGet(ctx context.Context, id uuid.UUID) (*Listing, error)
	// ActiveListingForAsset reports whether an ACTIVE listing references the
	// asset.
	ActiveListingForAsset(ctx context.Context, assetID uuid.UUID) (*Listing, bool, error)
	// ListingApplyStatus performs a guarded status transition.
	ListingApplyStatus(ctx context.Context, id uuid.UUID, from, to ListingStatus) error

	OfferPut(ctx context.Context, o *Offer) error
	OfferGet(ctx context.Context, id uuid.UUID) (*Offer, error)
	OfferApplyStatus(ctx context.Context, id uuid.UUID, from, to OfferStatus) error

	OrderPut(ctx context.Context, o *Order) error

	// ListingsDueForExpiry returns ACTIVE listings whose expiry has elapsed.
	ListingsDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*Listing, error)
	// OffersDueForExpiry returns PENDING offers whose expiry has elapsed.
	OffersDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*Offer, error)

	// Transaction runs fn against a transactional view of the state; the
	// whole unit commits or rolls back together.
	Transaction(ctx context.Context, fn func(State) error) error
}

// Engine implements the listing and offer managers and the order/settlement
// engine over a shared state surface.
type Engine struct {
	state   State
	escrow  *escrow.Engine
	policy  ChainPolicy
	fees    fees.Policy
	emitter events.Emitter
	nowFn   func() time.Time
	pauses  common.PauseView
}

// NewEngine constructs a market engine. The escrow engine may be nil, in which
// case offers and buy-now trades are recorded without ledger entries (useful
// for venues that settle entirely off-platform).
func NewEngine(state State, escrowEngine *escrow.Engine, policy ChainPolicy, feePolicy fees.Policy) *Engine {
	if feePolicy.TradeFeeBps == 0 {
		feePolicy.TradeFeeBps = fees.DefaultTradeFeeBps
	}
	return &Engine{
		state:   state,
		escrow:  escrowEngine,
		policy:  policy,
		fees:    feePolicy,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetEmitter configures the event emitter. Passing nil resets to no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the module pause view.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: evt})
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now()
	}
	return e.nowFn()
}

func (e *Engine) loadListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	l, err := e.state.ListingGet(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return l, nil
}

func (e *Engine) loadOffer(ctx context.Context, id uuid.UUID) (*Offer, error) {
	o, err := e.state.OfferGet(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return o, nil
}

func (e *Engine) loadAsset(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	a, err := e.state.AssetGet(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrAssetIntegrity
		}
		return nil, err
	}
	return a, nil
}
