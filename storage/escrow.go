package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"nftmarket/core/types"
	"nftmarket/native/common"
	"nftmarket/native/escrow"
	"nftmarket/native/market"
)

// --- escrow.State ---

func (s *Store) EscrowPut(ctx context.Context, e *escrow.Escrow) error {
	return s.db.WithContext(ctx).Save(e).Error
}

func (s *Store) EscrowGet(ctx context.Context, id uuid.UUID) (*escrow.Escrow, error) {
	var e escrow.Escrow
	if err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, translate(err, "escrow")
	}
	return &e, nil
}

func (s *Store) EscrowForOffer(ctx context.Context, offerID uuid.UUID) (*escrow.Escrow, error) {
	var e escrow.Escrow
	err := s.db.WithContext(ctx).
		Where("offer_id = ?", offerID).
		Order("created_at DESC").
		First(&e).Error
	if err != nil {
		return nil, translate(err, "escrow")
	}
	return &e, nil
}

// EscrowForOrder returns the ledger entry opened for a buy-now order.
func (s *Store) EscrowForOrder(ctx context.Context, orderID uuid.UUID) (*escrow.Escrow, error) {
	var e escrow.Escrow
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&e).Error
	if err != nil {
		return nil, translate(err, "escrow")
	}
	return &e, nil
}

func (s *Store) EscrowApplyHold(ctx context.Context, id uuid.UUID, txRef string) error {
	res := s.db.WithContext(ctx).Model(&escrow.Escrow{}).
		Where("id = ? AND status = ?", id, escrow.StatusPending).
		Updates(map[string]interface{}{"status": escrow.StatusHeld, "tx_ref": txRef})
	return guarded(res, "escrow")
}

// EscrowApplyResolve merges the supplied metadata into the stored entry and
// flips the status, guarded on the prior status so a concurrent resolve fails.
func (s *Store) EscrowApplyResolve(ctx context.Context, id uuid.UUID, from, to escrow.Status, txRef string, meta types.Metadata) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("storage: escrow status %q -> %q outside the ledger enum: %w", from, to, common.ErrValidation)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e escrow.Escrow
		if err := tx.First(&e, "id = ?", id).Error; err != nil {
			return translate(err, "escrow")
		}
		if e.Status != from {
			return conflict("escrow")
		}
		merged := types.Metadata{}
		for k, v := range e.Metadata {
			merged[k] = v
		}
		for k, v := range meta {
			merged[k] = v
		}
		updates := map[string]interface{}{"status": to, "metadata": merged}
		if txRef != "" {
			updates["tx_ref"] = txRef
		}
		res := tx.Model(&escrow.Escrow{}).
			Where("id = ? AND status = ?", id, from).
			Updates(updates)
		return guarded(res, "escrow")
	})
}

// TradeContext resolves the listing, offer and asset surrounding an escrow.
// For offer escrows the order is looked up by its unique offer reference so a
// release can complete the order created at acceptance.
func (s *Store) TradeContext(ctx context.Context, e *escrow.Escrow) (*escrow.TradeContext, error) {
	tc := &escrow.TradeContext{Currency: e.Currency, OrderID: e.OrderID}
	var assetID uuid.UUID
	if e.ListingID != nil {
		listing, err := s.ListingGet(ctx, *e.ListingID)
		if err != nil {
			return nil, err
		}
		tc.Chain = listing.Chain
		tc.SellerAddress = listing.SellerAddress
		assetID = listing.AssetID
	}
	if e.OfferID != nil {
		offer, err := s.OfferGet(ctx, *e.OfferID)
		if err != nil {
			return nil, err
		}
		tc.BuyerAddress = offer.BuyerAddress
		if assetID == uuid.Nil {
			assetID = offer.AssetID
		}
		if tc.OrderID == nil {
			var order market.Order
			err := s.db.WithContext(ctx).First(&order, "offer_id = ?", *e.OfferID).Error
			switch {
			case err == nil:
				orderID := order.ID
				tc.OrderID = &orderID
			case errors.Is(err, gorm.ErrRecordNotFound):
			default:
				return nil, err
			}
		}
	}
	if assetID != uuid.Nil {
		a, err := s.AssetGet(ctx, assetID)
		if err != nil {
			return nil, err
		}
		tc.RoyaltyBps = a.RoyaltyBps
		tc.CollectionID = a.CollectionID
	}
	return tc, nil
}

// OrderMarkCompleted promotes a CONFIRMED order to COMPLETED. An order that is
// already COMPLETED is left untouched so releasing a buy-now escrow stays
// idempotent.
func (s *Store) OrderMarkCompleted(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&market.Order{}).
		Where("id = ? AND status = ?", orderID, market.OrderConfirmed).
		Updates(map[string]interface{}{"status": market.OrderCompleted, "completed_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	order, err := s.OrderGet(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == market.OrderCompleted {
		return nil
	}
	return conflict("order")
}
