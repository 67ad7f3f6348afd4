package market

import (
	"time"

	"github.com/google/uuid"

	"nftmarket/core/types"
)

// ListingStatus is the lifecycle state of a sale listing.
type ListingStatus string

const (
	ListingActive    ListingStatus = "ACTIVE"
	ListingAccepted  ListingStatus = "ACCEPTED"
	ListingCancelled ListingStatus = "CANCELLED"
	ListingExpired   ListingStatus = "EXPIRED"
)

// OfferStatus is the lifecycle state of a purchase offer. Transitions only
// ever leave PENDING.
type OfferStatus string

const (
	OfferPending   OfferStatus = "PENDING"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
	OfferCancelled OfferStatus = "CANCELLED"
	OfferExpired   OfferStatus = "EXPIRED"
)

// OrderStatus is the lifecycle state of a finalized trade record.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderFailed    OrderStatus = "FAILED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Listing is an active sale offer created by an asset's owner at a fixed
// price. An ACTIVE listing holds marketplace custody of its asset.
type Listing struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	AssetID       uuid.UUID     `gorm:"type:uuid;index" json:"assetId"`
	SellerID      uuid.UUID     `gorm:"type:uuid;index" json:"sellerId"`
	SellerAddress string        `gorm:"size:128" json:"sellerAddress"`
	Price         *types.Amount `gorm:"type:text" json:"price"`
	Currency      string        `gorm:"size:16" json:"currency"`
	Chain         string        `gorm:"size:32" json:"chain"`
	Status        ListingStatus `gorm:"size:16;index" json:"status"`
	ExpiresAt     *time.Time    `gorm:"index" json:"expiresAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Expired reports whether the listing's advisory expiry has elapsed.
func (l *Listing) Expired(now time.Time) bool {
	return l != nil && l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// Offer is a buyer-submitted bid against a listing. Any positive amount is
// accepted; there is deliberately no floor validation against the listing
// price.
type Offer struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ListingID    uuid.UUID     `gorm:"type:uuid;index" json:"listingId"`
	AssetID      uuid.UUID     `gorm:"type:uuid;index" json:"assetId"`
	BuyerID      uuid.UUID     `gorm:"type:uuid;index" json:"buyerId"`
	BuyerAddress string        `gorm:"size:128" json:"buyerAddress"`
	Price        *types.Amount `gorm:"type:text" json:"price"`
	Currency     string        `gorm:"size:16" json:"currency"`
	Status       OfferStatus   `gorm:"size:16;index" json:"status"`
	ExpiresAt    *time.Time    `gorm:"index" json:"expiresAt,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Order is the finalized trade record. It is created exactly once per trade
// and immutable once COMPLETED.
type Order struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ListingID     *uuid.UUID    `gorm:"type:uuid;index" json:"listingId,omitempty"`
	OfferID       *uuid.UUID    `gorm:"type:uuid;uniqueIndex" json:"offerId,omitempty"`
	AssetID       uuid.UUID     `gorm:"type:uuid;index" json:"assetId"`
	SellerID      uuid.UUID     `gorm:"type:uuid;index" json:"sellerId"`
	BuyerID       uuid.UUID     `gorm:"type:uuid;index" json:"buyerId"`
	Amount        *types.Amount `gorm:"type:text" json:"amount"`
	Currency      string        `gorm:"size:16" json:"currency"`
	Chain         string        `gorm:"size:32" json:"chain"`
	TxRef         string        `gorm:"size:128" json:"txRef,omitempty"`
	Status        OrderStatus   `gorm:"size:16;index" json:"status"`
	RoyaltyAmount *types.Amount `gorm:"type:text" json:"royaltyAmount"`
	PlatformFee   *types.Amount `gorm:"type:text" json:"platformFee"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
