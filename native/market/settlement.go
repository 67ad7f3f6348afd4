package market

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"nftmarket/core/types"
	"nftmarket/native/asset"
	"nftmarket/native/common"
	"nftmarket/native/escrow"
	"nftmarket/native/fees"
	"nftmarket/observability/metrics"
)

func errOfferNotPending(current OfferStatus, target OfferStatus) error {
	verb := "close"
	switch target {
	case OfferAccepted:
		verb = "accept"
	case OfferRejected:
		verb = "reject"
	case OfferCancelled:
		verb = "cancel"
	}
	return fmt.Errorf("cannot %s offer with status %s: %w", verb, current, common.ErrInvalidState)
}

// AcceptOffer finalizes a trade from a PENDING offer. The caller must be the
// listing's seller. The offer and listing move to ACCEPTED, ownership
// transfers to the buyer, marketplace custody is released and a CONFIRMED
// order is recorded — all in one transaction whose status writes are guarded
// so a concurrent second accept fails instead of double-settling.
func (e *Engine) AcceptOffer(ctx context.Context, offerID, sellerID uuid.UUID, txRef string) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	start := time.Now()
	offer, err := e.loadOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != OfferPending {
		return nil, errOfferNotPending(offer.Status, OfferAccepted)
	}
	listing, err := e.loadListing(ctx, offer.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, ErrNotSeller
	}
	a, err := e.loadAsset(ctx, offer.AssetID)
	if err != nil {
		return nil, err
	}
	if err := asset.ValidateTransition(a.Status, asset.StatusTransferred); err != nil {
		return nil, err
	}

	price := offer.Price.BigInt()
	order := e.buildOrder(listing, a, offer.BuyerID, price, offer.Currency, txRef)
	offerRef := offer.ID
	order.OfferID = &offerRef
	order.Status = OrderConfirmed

	err = e.state.Transaction(ctx, func(tx State) error {
		if err := tx.OfferApplyStatus(ctx, offer.ID, OfferPending, OfferAccepted); err != nil {
			return err
		}
		if err := tx.ListingApplyStatus(ctx, listing.ID, ListingActive, ListingAccepted); err != nil {
			return err
		}
		if err := tx.AssetApplyTransfer(ctx, a.ID, a.Status, offer.BuyerID, offer.BuyerAddress); err != nil {
			return err
		}
		return tx.OrderPut(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	offer.Status = OfferAccepted
	listing.Status = ListingAccepted
	metrics.Market().ObserveOrderSettled("accept_offer")
	metrics.Market().ObserveSettlementDuration(time.Since(start))
	e.emit(NewOrderConfirmedEvent(order))
	return order, nil
}

// BuyNow finalizes a trade at the listing price without an offer round trip.
// The listing must be ACTIVE and not past its expiry, and the buyer must not
// be the seller. The order completes immediately and a HELD escrow records
// the synchronously custodied funds.
func (e *Engine) BuyNow(ctx context.Context, listingID, buyerID uuid.UUID, buyerAddress, txRef string) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	start := time.Now()
	listing, err := e.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != ListingActive {
		return nil, ErrListingNotActive
	}
	now := e.now()
	if listing.Expired(now) {
		return nil, ErrListingExpired
	}
	if listing.SellerID == buyerID {
		return nil, ErrSelfTrade
	}
	a, err := e.loadAsset(ctx, listing.AssetID)
	if err != nil {
		return nil, err
	}
	if err := asset.ValidateTransition(a.Status, asset.StatusTransferred); err != nil {
		return nil, err
	}

	price := listing.Price.BigInt()
	order := e.buildOrder(listing, a, buyerID, price, listing.Currency, txRef)
	order.Status = OrderCompleted
	completed := now
	order.CompletedAt = &completed

	var esc *escrow.Escrow
	if e.escrow != nil {
		listingRef := listing.ID
		orderRef := order.ID
		esc, err = e.escrow.PrepareHold(escrow.CreateInput{
			ListingID: &listingRef,
			OrderID:   &orderRef,
			BuyerID:   buyerID,
			SellerID:  listing.SellerID,
			Amount:    price,
			Currency:  listing.Currency,
		})
		if err != nil {
			return nil, err
		}
	}
	// The held escrow commits with the trade; a settled trade must never
	// exist without its ledger entry.
	err = e.state.Transaction(ctx, func(tx State) error {
		if err := tx.ListingApplyStatus(ctx, listing.ID, ListingActive, ListingAccepted); err != nil {
			return err
		}
		if err := tx.AssetApplyTransfer(ctx, a.ID, a.Status, buyerID, buyerAddress); err != nil {
			return err
		}
		if err := tx.OrderPut(ctx, order); err != nil {
			return err
		}
		if esc != nil {
			return tx.EscrowPut(ctx, esc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	listing.Status = ListingAccepted
	if esc != nil {
		e.escrow.EmitCreated(esc)
	}
	metrics.Market().ObserveOrderSettled("buy_now")
	metrics.Market().ObserveSettlementDuration(time.Since(start))
	e.emit(NewOrderCompletedEvent(order))
	return order, nil
}

// buildOrder assembles the trade record with the royalty and platform fee
// computed from the sale price. The trade fee rate is a fixed policy knob,
// independent of the escrow commission rate.
func (e *Engine) buildOrder(listing *Listing, a *asset.Asset, buyerID uuid.UUID, price *big.Int, currency, txRef string) *Order {
	now := e.now()
	listingRef := listing.ID
	return &Order{
		ID:            uuid.New(),
		ListingID:     &listingRef,
		AssetID:       listing.AssetID,
		SellerID:      listing.SellerID,
		BuyerID:       buyerID,
		Amount:        types.NewAmount(price),
		Currency:      currency,
		Chain:         listing.Chain,
		TxRef:         txRef,
		Status:        OrderPending,
		RoyaltyAmount: types.NewAmount(fees.Royalty(price, a.RoyaltyBps)),
		PlatformFee:   types.NewAmount(e.fees.TradeFee(price)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
