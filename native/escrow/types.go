package escrow

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"nftmarket/core/types"
)

// Status represents the lifecycle states of the escrow ledger.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusHeld     Status = "HELD"
	StatusReleased Status = "RELEASED"
	StatusRefunded Status = "REFUNDED"
	StatusDisputed Status = "DISPUTED"
)

// Valid reports whether the status is a member of the ledger enum.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusHeld, StatusReleased, StatusRefunded, StatusDisputed:
		return true
	default:
		return false
	}
}

// Metadata keys recorded by the ledger. Payout attempts during release are
// recorded independently so a partial failure is visible for manual
// reconciliation.
const (
	MetaSellerPayoutTx     = "sellerPayoutTx"
	MetaSellerPayoutError  = "sellerPayoutError"
	MetaRoyaltyPayoutTx    = "royaltyPayoutTx"
	MetaRoyaltyPayoutError = "royaltyPayoutError"
	MetaRoyaltyWallet      = "royaltyWallet"
	MetaSettlement         = "settlement"
	MetaRefundReason       = "refundReason"
	MetaDisputeReason      = "disputeReason"
)

// Escrow tracks custodied buyer funds for a single trade, including the
// commission fixed at creation. An escrow is never deleted; it always resolves
// to RELEASED or REFUNDED.
type Escrow struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ListingID        *uuid.UUID     `gorm:"type:uuid;index" json:"listingId,omitempty"`
	OfferID          *uuid.UUID     `gorm:"type:uuid;index" json:"offerId,omitempty"`
	OrderID          *uuid.UUID     `gorm:"type:uuid;index" json:"orderId,omitempty"`
	BuyerID          uuid.UUID      `gorm:"type:uuid;index" json:"buyerId"`
	SellerID         uuid.UUID      `gorm:"type:uuid;index" json:"sellerId"`
	Amount           *types.Amount  `gorm:"type:text" json:"amount"`
	Currency         string         `gorm:"size:16" json:"currency"`
	CommissionAmount *types.Amount  `gorm:"type:text" json:"commissionAmount"`
	Status           Status         `gorm:"size:16;index" json:"status"`
	TxRef            string         `gorm:"size:128" json:"txRef,omitempty"`
	Metadata         types.Metadata `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// TradeContext is the resolved view of the listing/offer/asset surrounding an
// escrow, used to recompute the royalty split and route payouts.
type TradeContext struct {
	Chain         string
	Currency      string
	RoyaltyBps    uint32
	SellerAddress string
	BuyerAddress  string
	CollectionID  *uuid.UUID
	OrderID       *uuid.UUID
}

// CreateInput describes a new ledger entry. Exactly one of the offer or order
// references is expected: offers open PENDING escrows awaiting an external
// deposit, buy-now orders open HELD escrows with synchronous custody.
type CreateInput struct {
	ListingID *uuid.UUID
	OfferID   *uuid.UUID
	OrderID   *uuid.UUID
	BuyerID   uuid.UUID
	SellerID  uuid.UUID
	Amount    *big.Int
	Currency  string
}
