package market

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"

	"nftmarket/core/types"
	"nftmarket/native/common"
	"nftmarket/native/escrow"
)

// MakeOfferInput describes a buyer bid against a listing.
type MakeOfferInput struct {
	ListingID    uuid.UUID
	BuyerID      uuid.UUID
	BuyerAddress string
	Price        *big.Int
	Currency     string
	ExpiresAt    *time.Time
}

// MakeOffer records a bid against an ACTIVE listing and opens a PENDING
// escrow awaiting the buyer's deposit. Any positive amount is accepted; bids
// are not validated against the listing price.
func (e *Engine) MakeOffer(ctx context.Context, in MakeOfferInput) (*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if in.Price == nil || in.Price.Sign() <= 0 {
		return nil, ErrPriceNotPositive
	}
	listing, err := e.loadListing(ctx, in.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != ListingActive {
		return nil, ErrListingNotActive
	}
	if listing.Expired(e.now()) {
		return nil, ErrListingExpired
	}
	if listing.SellerID == in.BuyerID {
		return nil, ErrSelfTrade
	}
	now := e.now()
	offer := &Offer{
		ID:           uuid.New(),
		ListingID:    listing.ID,
		AssetID:      listing.AssetID,
		BuyerID:      in.BuyerID,
		BuyerAddress: in.BuyerAddress,
		Price:        types.NewAmount(in.Price),
		Currency:     in.Currency,
		Status:       OfferPending,
		ExpiresAt:    in.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var esc *escrow.Escrow
	if e.escrow != nil {
		listingID := listing.ID
		offerID := offer.ID
		esc, err = e.escrow.PreparePending(escrow.CreateInput{
			ListingID: &listingID,
			OfferID:   &offerID,
			BuyerID:   in.BuyerID,
			SellerID:  listing.SellerID,
			Amount:    in.Price,
			Currency:  in.Currency,
		})
		if err != nil {
			return nil, err
		}
	}
	// The offer and its pending escrow commit or roll back together; an
	// offer without a ledger entry could never pass deposit verification.
	err = e.state.Transaction(ctx, func(tx State) error {
		if err := tx.OfferPut(ctx, offer); err != nil {
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
	if esc != nil {
		e.escrow.EmitCreated(esc)
	}
	e.emit(NewOfferCreatedEvent(offer))
	return offer, nil
}

// RejectOffer flips a PENDING offer to REJECTED. Only the listing's seller may
// reject. No asset or escrow side effects.
func (e *Engine) RejectOffer(ctx context.Context, offerID, userID uuid.UUID) (*Offer, error) {
	return e.closeOffer(ctx, offerID, userID, OfferRejected)
}

// CancelOffer flips a PENDING offer to CANCELLED. Only the buyer may cancel.
// No asset or escrow side effects.
func (e *Engine) CancelOffer(ctx context.Context, offerID, userID uuid.UUID) (*Offer, error) {
	return e.closeOffer(ctx, offerID, userID, OfferCancelled)
}

func (e *Engine) closeOffer(ctx context.Context, offerID, userID uuid.UUID, target OfferStatus) (*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	offer, err := e.loadOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != OfferPending {
		return nil, errOfferNotPending(offer.Status, target)
	}
	switch target {
	case OfferRejected:
		listing, err := e.loadListing(ctx, offer.ListingID)
		if err != nil {
			return nil, err
		}
		if listing.SellerID != userID {
			return nil, ErrNotSeller
		}
	case OfferCancelled:
		if offer.BuyerID != userID {
			return nil, ErrNotBuyer
		}
	}
	if err := e.state.OfferApplyStatus(ctx, offerID, OfferPending, target); err != nil {
		return nil, err
	}
	offer.Status = target
	switch target {
	case OfferRejected:
		e.emit(NewOfferRejectedEvent(offer))
	case OfferCancelled:
		e.emit(NewOfferCancelledEvent(offer))
	}
	return offer, nil
}
