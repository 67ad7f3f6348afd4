package market

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"

	"nftmarket/core/types"
	"nftmarket/native/asset"
	"nftmarket/native/common"
)

// CreateListingInput describes a new sale listing.
type CreateListingInput struct {
	AssetID       uuid.UUID
	SellerID      uuid.UUID
	SellerAddress string
	Price         *big.Int
	Currency      string
	Chain         string
	ExpiresAt     *time.Time
}

// CreateListing publishes a sale listing for a minted, unlocked, seller-owned
// asset and takes marketplace custody of the asset. The custody flag and the
// listing row are written in one transaction; the custody write is guarded on
// the asset being unlocked so a concurrent listing loses cleanly.
func (e *Engine) CreateListing(ctx context.Context, in CreateListingInput) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if in.Price == nil || in.Price.Sign() <= 0 {
		return nil, ErrPriceNotPositive
	}
	if e.policy != nil {
		if !e.policy.SupportedCurrency(in.Chain, in.Currency) {
			return nil, ErrCurrencyNotSupported
		}
		if e.policy.IsStableCurrency(in.Chain, in.Currency) {
			if min, max, ok := e.policy.StablePriceBounds(in.Chain); ok {
				if (min != nil && in.Price.Cmp(min) < 0) || (max != nil && in.Price.Cmp(max) > 0) {
					return nil, ErrPriceOutOfBounds
				}
			}
		}
	}
	a, err := e.state.AssetGet(ctx, in.AssetID)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != in.SellerID {
		return nil, ErrNotOwner
	}
	if a.Status != asset.StatusMinted {
		return nil, ErrAssetNotMinted
	}
	if a.Locked {
		return nil, ErrAssetInCustody
	}
	if _, exists, err := e.state.ActiveListingForAsset(ctx, in.AssetID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyListed
	}

	now := e.now()
	listing := &Listing{
		ID:            uuid.New(),
		AssetID:       in.AssetID,
		SellerID:      in.SellerID,
		SellerAddress: in.SellerAddress,
		Price:         types.NewAmount(in.Price),
		Currency:      in.Currency,
		Chain:         in.Chain,
		Status:        ListingActive,
		ExpiresAt:     in.ExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = e.state.Transaction(ctx, func(tx State) error {
		if err := tx.AssetMarkCustody(ctx, in.AssetID, asset.LockReasonMarketplace); err != nil {
			return err
		}
		return tx.ListingPut(ctx, listing)
	})
	if err != nil {
		return nil, err
	}
	e.emit(NewListingCreatedEvent(listing))
	return listing, nil
}

// CancelListing withdraws an ACTIVE listing. Only the seller may cancel; the
// asset's marketplace custody is released in the same transaction.
// Outstanding offers against the listing are left untouched.
func (e *Engine) CancelListing(ctx context.Context, listingID, userID uuid.UUID) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	listing, err := e.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != userID {
		return nil, ErrNotSeller
	}
	if listing.Status != ListingActive {
		return nil, ErrListingNotActive
	}
	err = e.state.Transaction(ctx, func(tx State) error {
		if err := tx.ListingApplyStatus(ctx, listingID, ListingActive, ListingCancelled); err != nil {
			return err
		}
		return tx.AssetReleaseCustody(ctx, listing.AssetID, asset.LockReasonMarketplace)
	})
	if err != nil {
		return nil, err
	}
	listing.Status = ListingCancelled
	e.emit(NewListingCancelledEvent(listing))
	return listing, nil
}
