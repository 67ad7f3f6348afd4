package market

import (
	"nftmarket/core/types"
)

const (
	EventTypeListingCreated   = "market.listing.created"
	EventTypeListingCancelled = "market.listing.cancelled"
	EventTypeListingExpired   = "market.listing.expired"
	EventTypeOfferCreated     = "market.offer.created"
	EventTypeOfferRejected    = "market.offer.rejected"
	EventTypeOfferCancelled   = "market.offer.cancelled"
	EventTypeOfferExpired     = "market.offer.expired"
	EventTypeOrderConfirmed   = "market.order.confirmed"
	EventTypeOrderCompleted   = "market.order.completed"
)

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

func NewListingCreatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCreated, l)
}

func NewListingCancelledEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCancelled, l)
}

func NewListingExpiredEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingExpired, l)
}

func NewOfferCreatedEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferCreated, o) }

func NewOfferRejectedEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferRejected, o) }

func NewOfferCancelledEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeOfferCancelled, o)
}

func NewOfferExpiredEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferExpired, o) }

func NewOrderConfirmedEvent(o *Order) *types.Event { return newOrderEvent(EventTypeOrderConfirmed, o) }

func NewOrderCompletedEvent(o *Order) *types.Event { return newOrderEvent(EventTypeOrderCompleted, o) }

func newListingEvent(eventType string, l *Listing) *types.Event {
	if l == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"listingId": l.ID.String(),
		"assetId":   l.AssetID.String(),
		"seller":    l.SellerAddress,
		"price":     l.Price.String(),
		"currency":  l.Currency,
		"chain":     l.Chain,
		"status":    string(l.Status),
	}}
}

func newOfferEvent(eventType string, o *Offer) *types.Event {
	if o == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"offerId":   o.ID.String(),
		"listingId": o.ListingID.String(),
		"buyer":     o.BuyerAddress,
		"price":     o.Price.String(),
		"currency":  o.Currency,
		"status":    string(o.Status),
	}}
}

func newOrderEvent(eventType string, o *Order) *types.Event {
	if o == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"orderId":     o.ID.String(),
		"assetId":     o.AssetID.String(),
		"amount":      o.Amount.String(),
		"currency":    o.Currency,
		"chain":       o.Chain,
		"royalty":     o.RoyaltyAmount.String(),
		"platformFee": o.PlatformFee.String(),
		"status":      string(o.Status),
	}}
}
