package storage

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"nftmarket/core/types"
	"nftmarket/native/market"
)

// Collection groups assets under a creator and carries the advisory floor
// price used when no comparable sale exists.
type Collection struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string        `gorm:"size:128" json:"name"`
	CreatorID  uuid.UUID     `gorm:"type:uuid;index" json:"creatorId"`
	FloorPrice *types.Amount `gorm:"type:text" json:"floorPrice,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// CreatorWallet is a creator's payout address on a specific chain. Royalties
// for a collection route here; without a wallet the royalty is skipped and
// recorded for manual settlement.
type CreatorWallet struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID uuid.UUID `gorm:"type:uuid;index:idx_creator_chain,unique" json:"creatorId"`
	Chain     string    `gorm:"size:32;index:idx_creator_chain,unique" json:"chain"`
	Address   string    `gorm:"size:128" json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

// CollectionPut stores or updates a collection.
func (s *Store) CollectionPut(ctx context.Context, c *Collection) error {
	return s.db.WithContext(ctx).Save(c).Error
}

// CreatorWalletPut stores or updates a creator payout wallet.
func (s *Store) CreatorWalletPut(ctx context.Context, w *CreatorWallet) error {
	return s.db.WithContext(ctx).Save(w).Error
}

// CreatorWallet resolves the payout address of a collection's creator on the
// given chain; ok is false when the creator has no wallet there.
func (s *Store) CreatorWallet(ctx context.Context, collectionID uuid.UUID, chain string) (string, bool, error) {
	var c Collection
	if err := s.db.WithContext(ctx).First(&c, "id = ?", collectionID).Error; err != nil {
		return "", false, translate(err, "collection")
	}
	var w CreatorWallet
	err := s.db.WithContext(ctx).
		Where("creator_id = ? AND chain = ?", c.CreatorID, chain).
		First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return w.Address, true, nil
}

// --- valuation.State ---

// CollectionFloorPrice returns the collection's configured floor price.
func (s *Store) CollectionFloorPrice(ctx context.Context, collectionID uuid.UUID) (*big.Int, bool, error) {
	var c Collection
	if err := s.db.WithContext(ctx).First(&c, "id = ?", collectionID).Error; err != nil {
		return nil, false, translate(err, "collection")
	}
	if c.FloorPrice == nil {
		return nil, false, nil
	}
	return c.FloorPrice.BigInt(), true, nil
}

// CompletedSalePrices returns the amounts of COMPLETED orders since the given
// time for assets of the collection and rarity tier.
func (s *Store) CompletedSalePrices(ctx context.Context, collectionID uuid.UUID, tier string, since time.Time) ([]*big.Int, error) {
	var raw []string
	err := s.db.WithContext(ctx).Model(&market.Order{}).
		Joins("JOIN assets ON assets.id = orders.asset_id").
		Where("orders.status = ? AND orders.completed_at >= ?", market.OrderCompleted, since).
		Where("assets.collection_id = ? AND assets.rarity_tier = ?", collectionID, tier).
		Pluck("orders.amount", &raw).Error
	if err != nil {
		return nil, err
	}
	prices := make([]*big.Int, 0, len(raw))
	for _, v := range raw {
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			continue
		}
		prices = append(prices, n)
	}
	return prices, nil
}
