// Package storage persists marketplace records with gorm and implements the
// state surfaces consumed by the native engines. Every status transition is a
// conditional UPDATE guarded by the prior status; a guard that matches zero
// rows reports common.ErrConflict so engines fail instead of double-settling.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"nftmarket/native/asset"
	"nftmarket/native/common"
	"nftmarket/native/escrow"
	"nftmarket/native/market"
)

// Store implements the asset, market, escrow and valuation state interfaces
// over a single gorm connection (postgres in production, sqlite in tests).
type Store struct {
	db *gorm.DB
}

// New wraps a gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate performs all schema migrations for the marketplace core.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&asset.Asset{},
		&market.Listing{},
		&market.Offer{},
		&market.Order{},
		&escrow.Escrow{},
		&Collection{},
		&CreatorWallet{},
	)
}

// Transaction runs fn against a transactional view of the store.
func (s *Store) Transaction(ctx context.Context, fn func(market.State) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

func notFound(entity string) error {
	return fmt.Errorf("storage: %s: %w", entity, common.ErrNotFound)
}

func conflict(entity string) error {
	return fmt.Errorf("storage: %s moved concurrently: %w", entity, common.ErrConflict)
}

func translate(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(entity)
	}
	return err
}

// guarded asserts a conditional write touched exactly one row.
func guarded(res *gorm.DB, entity string) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return conflict(entity)
	}
	return nil
}

// --- asset.State ---

func (s *Store) AssetGet(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	var a asset.Asset
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err, "asset")
	}
	return &a, nil
}

func (s *Store) AssetPut(ctx context.Context, a *asset.Asset) error {
	return s.db.WithContext(ctx).Save(a).Error
}

func (s *Store) AssetApplyLock(ctx context.Context, id uuid.UUID, from asset.Status, reason string, until *time.Time) error {
	res := s.db.WithContext(ctx).Model(&asset.Asset{}).
		Where("id = ? AND status = ? AND locked = ?", id, from, false).
		Updates(map[string]interface{}{
			"status":       asset.StatusLocked,
			"locked":       true,
			"lock_reason":  reason,
			"locked_until": until,
		})
	return guarded(res, "asset")
}

func (s *Store) AssetApplyUnlock(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&asset.Asset{}).
		Where("id = ? AND status = ? AND locked = ?", id, asset.StatusLocked, true).
		Updates(map[string]interface{}{
			"status":       asset.StatusMinted,
			"locked":       false,
			"lock_reason":  "",
			"locked_until": nil,
		})
	return guarded(res, "asset")
}

func (s *Store) AssetApplyStatus(ctx context.Context, id uuid.UUID, from, to asset.Status) error {
	res := s.db.WithContext(ctx).Model(&asset.Asset{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return guarded(res, "asset")
}

func (s *Store) AssetMarkCustody(ctx context.Context, id uuid.UUID, reason string) error {
	res := s.db.WithContext(ctx).Model(&asset.Asset{}).
		Where("id = ? AND locked = ?", id, false).
		Updates(map[string]interface{}{"locked": true, "lock_reason": reason})
	return guarded(res, "asset")
}

func (s *Store) AssetReleaseCustody(ctx context.Context, id uuid.UUID, reason string) error {
	res := s.db.WithContext(ctx).Model(&asset.Asset{}).
		Where("id = ? AND locked = ? AND lock_reason = ?", id, true, reason).
		Updates(map[string]interface{}{"locked": false, "lock_reason": "", "locked_until": nil})
	return guarded(res, "asset")
}

func (s *Store) AssetApplyTransfer(ctx context.Context, id uuid.UUID, from asset.Status, ownerID uuid.UUID, ownerAddress string) error {
	res := s.db.WithContext(ctx).Model(&asset.Asset{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":        asset.StatusTransferred,
			"owner_id":      ownerID,
			"owner_address": ownerAddress,
			"locked":        false,
			"lock_reason":   "",
			"locked_until":  nil,
		})
	return guarded(res, "asset")
}

// --- market.State ---

func (s *Store) ListingPut(ctx context.Context, l *market.Listing) error {
	return s.db.WithContext(ctx).Save(l).Error
}

func (s *Store) ListingGet(ctx context.Context, id uuid.UUID) (*market.Listing, error) {
	var l market.Listing
	if err := s.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, translate(err, "listing")
	}
	return &l, nil
}

func (s *Store) ActiveListingForAsset(ctx context.Context, assetID uuid.UUID) (*market.Listing, bool, error) {
	var l market.Listing
	err := s.db.WithContext(ctx).
		Where("asset_id = ? AND status = ?", assetID, market.ListingActive).
		First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &l, true, nil
}

func (s *Store) ListingApplyStatus(ctx context.Context, id uuid.UUID, from, to market.ListingStatus) error {
	res := s.db.WithContext(ctx).Model(&market.Listing{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return guarded(res, "listing")
}

func (s *Store) OfferPut(ctx context.Context, o *market.Offer) error {
	return s.db.WithContext(ctx).Save(o).Error
}

func (s *Store) OfferGet(ctx context.Context, id uuid.UUID) (*market.Offer, error) {
	var o market.Offer
	if err := s.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, translate(err, "offer")
	}
	return &o, nil
}

func (s *Store) OfferApplyStatus(ctx context.Context, id uuid.UUID, from, to market.OfferStatus) error {
	res := s.db.WithContext(ctx).Model(&market.Offer{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return guarded(res, "offer")
}

func (s *Store) OrderPut(ctx context.Context, o *market.Order) error {
	return s.db.WithContext(ctx).Save(o).Error
}

func (s *Store) OrderGet(ctx context.Context, id uuid.UUID) (*market.Order, error) {
	var o market.Order
	if err := s.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, translate(err, "order")
	}
	return &o, nil
}

func (s *Store) ListingsDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*market.Listing, error) {
	var listings []*market.Listing
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", market.ListingActive, now).
		Limit(limit).
		Find(&listings).Error
	return listings, err
}

func (s *Store) OffersDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*market.Offer, error) {
	var offers []*market.Offer
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", market.OfferPending, now).
		Limit(limit).
		Find(&offers).Error
	return offers, err
}
