package asset

import (
	"time"

	"github.com/google/uuid"
)

// LockReasonMarketplace marks custody taken by an active sale listing.
const LockReasonMarketplace = "marketplace"

// Asset is a tokenized digital collectible tracked by the marketplace. The
// lifecycle Status is orthogonal to the Locked custody flag: Status follows
// the fixed transition table while Locked/LockReason/LockedUntil record who is
// holding the asset and until when.
type Asset struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TokenID      string     `gorm:"size:128;index" json:"tokenId"`
	CollectionID *uuid.UUID `gorm:"type:uuid;index" json:"collectionId,omitempty"`
	OwnerID      uuid.UUID  `gorm:"type:uuid;index" json:"ownerId"`
	OwnerAddress string     `gorm:"size:128;index" json:"ownerAddress"`
	Status       Status     `gorm:"size:32;index" json:"status"`
	Locked       bool       `gorm:"index" json:"locked"`
	LockReason   string     `gorm:"size:64" json:"lockReason,omitempty"`
	LockedUntil  *time.Time `json:"lockedUntil,omitempty"`
	RoyaltyBps   uint32     `json:"royaltyBps"`
	RarityScore  *float64   `json:"rarityScore,omitempty"`
	RarityTier   string     `gorm:"size:16" json:"rarityTier,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy so callers can safely mutate the result without
// affecting the stored instance.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	if a.CollectionID != nil {
		id := *a.CollectionID
		clone.CollectionID = &id
	}
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		clone.LockedUntil = &t
	}
	if a.RarityScore != nil {
		s := *a.RarityScore
		clone.RarityScore = &s
	}
	return &clone
}
