// Package payments abstracts the payment-rail clients consumed by the escrow
// ledger: one client per chain family, selected by a registry lookup.
package payments

import (
	"context"
	"math/big"
	"strings"
)

// Chain families with distinct verification/payout mechanics. Only the
// account-model family ships with an implementation; UTXO-style families can
// register their own client without touching the ledger.
const (
	FamilyAccount = "account"
)

// Transfer is a value movement observed in a transaction receipt.
type Transfer struct {
	Contract string
	From     string
	To       string
	Value    *big.Int
}

// Receipt is the normalized result of fetching a transaction by reference.
type Receipt struct {
	TxRef     string
	Success   bool
	Transfers []Transfer
}

// Client is the capability surface consumed per chain family.
type Client interface {
	// GetReceipt fetches the receipt for a transaction reference and
	// normalizes its value-transfer events.
	GetReceipt(ctx context.Context, txRef string) (*Receipt, error)
	// SendValueTransfer submits a token transfer signed with the supplied
	// credential and returns the resulting transaction id.
	SendValueTransfer(ctx context.Context, signingKey, assetContract, to string, rawAmount *big.Int) (string, error)
}

// Registry maps chain families to their rail client.
type Registry struct {
	byFamily map[string]Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byFamily: make(map[string]Client)}
}

// Register binds a client to a chain family, replacing any previous binding.
func (r *Registry) Register(family string, c Client) {
	if r == nil || c == nil {
		return
	}
	r.byFamily[normalizeFamily(family)] = c
}

// ForFamily resolves the client registered for a chain family.
func (r *Registry) ForFamily(family string) (Client, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.byFamily[normalizeFamily(family)]
	return c, ok
}

func normalizeFamily(family string) string {
	return strings.ToLower(strings.TrimSpace(family))
}

// SameAddress compares two rail addresses ignoring case, the convention for
// hex-encoded account addresses.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
