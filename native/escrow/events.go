package escrow

import (
	"nftmarket/core/types"
)

const (
	EventTypeEscrowCreated  = "escrow.created"
	EventTypeEscrowHeld     = "escrow.held"
	EventTypeEscrowReleased = "escrow.released"
	EventTypeEscrowRefunded = "escrow.refunded"
	EventTypeEscrowDisputed = "escrow.disputed"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent returns the canonical payload for a newly created escrow.
func NewCreatedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCreated, e) }

// NewHeldEvent returns the payload emitted when a deposit is verified and the
// escrow moves into custody.
func NewHeldEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowHeld, e) }

// NewReleasedEvent returns the payload for a release of escrowed funds.
func NewReleasedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowReleased, e) }

// NewRefundedEvent returns the payload for an escrow refund.
func NewRefundedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowRefunded, e) }

// NewDisputedEvent returns the payload emitted when an escrow is marked
// disputed.
func NewDisputedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowDisputed, e) }

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	if e == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	attrs := map[string]string{
		"escrowId":   e.ID.String(),
		"amount":     e.Amount.String(),
		"commission": e.CommissionAmount.String(),
		"currency":   e.Currency,
		"status":     string(e.Status),
	}
	if e.OfferID != nil {
		attrs["offerId"] = e.OfferID.String()
	}
	if e.OrderID != nil {
		attrs["orderId"] = e.OrderID.String()
	}
	if e.TxRef != "" {
		attrs["txRef"] = e.TxRef
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
