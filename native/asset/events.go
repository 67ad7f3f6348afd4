package asset

import (
	"nftmarket/core/types"
)

const (
	EventTypeAssetMinted   = "asset.minted"
	EventTypeAssetBurned   = "asset.burned"
	EventTypeAssetLocked   = "asset.locked"
	EventTypeAssetUnlocked = "asset.unlocked"
)

type assetEvent struct {
	evt *types.Event
}

func (e assetEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e assetEvent) Event() *types.Event { return e.evt }

// NewMintedEvent returns the canonical payload emitted when an asset is minted.
func NewMintedEvent(a *Asset) *types.Event { return newAssetEvent(EventTypeAssetMinted, a) }

// NewBurnedEvent returns the canonical payload emitted when an asset is burned.
func NewBurnedEvent(a *Asset) *types.Event { return newAssetEvent(EventTypeAssetBurned, a) }

// NewLockedEvent returns the canonical payload emitted when an asset is locked.
func NewLockedEvent(a *Asset) *types.Event { return newAssetEvent(EventTypeAssetLocked, a) }

// NewUnlockedEvent returns the canonical payload emitted when an asset lock is
// released.
func NewUnlockedEvent(a *Asset) *types.Event { return newAssetEvent(EventTypeAssetUnlocked, a) }

func newAssetEvent(eventType string, a *Asset) *types.Event {
	if a == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	attrs := map[string]string{
		"assetId": a.ID.String(),
		"owner":   a.OwnerAddress,
		"status":  string(a.Status),
	}
	if a.Locked {
		attrs["lockReason"] = a.LockReason
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
