package market

import (
	"context"
	"log/slog"
	"time"

	"nftmarket/native/asset"
	"nftmarket/observability/metrics"
)

const sweepBatchSize = 200

// SweeperConfig configures the periodic expiry sweep.
type SweeperConfig struct {
	Engine   *Engine
	Interval time.Duration
	Logger   *slog.Logger
}

// Sweeper expires listings and offers whose advisory expiry has elapsed.
// Expiry is also checked on the buy-now and make-offer read paths, so the
// sweep only keeps the records and asset custody flags tidy.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper constructs a sweeper with sane defaults.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{engine: cfg.Engine, interval: interval, logger: logger}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil || s.engine == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce performs a single expiry pass.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	if s == nil || s.engine == nil || s.engine.state == nil {
		return errNilState
	}
	now := s.engine.now()
	listings, err := s.engine.state.ListingsDueForExpiry(ctx, now, sweepBatchSize)
	if err != nil {
		return err
	}
	expiredListings := 0
	for _, listing := range listings {
		listing := listing
		err := s.engine.state.Transaction(ctx, func(tx State) error {
			if err := tx.ListingApplyStatus(ctx, listing.ID, ListingActive, ListingExpired); err != nil {
				return err
			}
			return tx.AssetReleaseCustody(ctx, listing.AssetID, asset.LockReasonMarketplace)
		})
		if err != nil {
			s.logger.Error("expire listing failed", "listingId", listing.ID, "error", err)
			continue
		}
		expiredListings++
		listing.Status = ListingExpired
		s.engine.emit(NewListingExpiredEvent(listing))
	}
	metrics.Market().ObserveSweepExpired("listing", expiredListings)
	offers, err := s.engine.state.OffersDueForExpiry(ctx, now, sweepBatchSize)
	if err != nil {
		return err
	}
	expiredOffers := 0
	for _, offer := range offers {
		offer := offer
		if err := s.engine.state.OfferApplyStatus(ctx, offer.ID, OfferPending, OfferExpired); err != nil {
			s.logger.Error("expire offer failed", "offerId", offer.ID, "error", err)
			continue
		}
		expiredOffers++
		offer.Status = OfferExpired
		s.engine.emit(NewOfferExpiredEvent(offer))
	}
	metrics.Market().ObserveSweepExpired("offer", expiredOffers)
	return nil
}
