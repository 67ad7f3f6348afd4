package asset

import (
	"fmt"

	"nftmarket/native/common"
)

// Status is the lifecycle state of a tokenized asset.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusMinted      Status = "MINTED"
	StatusTransferred Status = "TRANSFERRED"
	StatusLocked      Status = "LOCKED"
	StatusBurned      Status = "BURNED"
)

// Valid reports whether the status is a member of the lifecycle enum.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusMinted, StatusTransferred, StatusLocked, StatusBurned:
		return true
	default:
		return false
	}
}

// transitions is the fixed lifecycle table. BURNED is terminal. TRANSFERRED
// permits a self-transition so an already traded asset can change hands again;
// every other self-transition is rejected.
var transitions = map[Status][]Status{
	StatusPending:     {StatusMinted, StatusBurned},
	StatusMinted:      {StatusTransferred, StatusLocked, StatusBurned},
	StatusTransferred: {StatusLocked, StatusBurned, StatusTransferred},
	StatusLocked:      {StatusMinted, StatusBurned},
	StatusBurned:      {},
}

// ValidateTransition reports whether current may move to target, returning an
// error that names the rejected edge otherwise.
func ValidateTransition(current, target Status) error {
	if !current.Valid() {
		return fmt.Errorf("asset: unknown status %q: %w", current, common.ErrValidation)
	}
	if !target.Valid() {
		return fmt.Errorf("asset: unknown status %q: %w", target, common.ErrValidation)
	}
	if current == target && current != StatusTransferred {
		return fmt.Errorf("asset: self-transition %s rejected: %w", current, common.ErrInvalidState)
	}
	for _, allowed := range transitions[current] {
		if allowed == target {
			return nil
		}
	}
	return fmt.Errorf("asset: transition %s -> %s not allowed: %w", current, target, common.ErrInvalidState)
}
