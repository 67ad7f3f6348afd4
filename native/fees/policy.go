package fees

import (
	"fmt"
	"math/big"
)

// DefaultTradeFeeBps is the fixed platform fee charged on every settled trade
// (2.5%). It is deliberately a separate knob from the escrow commission rate,
// which operators configure independently.
const DefaultTradeFeeBps uint32 = 250

const bpsDenominator = 10_000

// Policy holds the two independent fee rates applied by the marketplace: the
// fixed trade fee recorded on orders and the configurable commission withheld
// by the escrow ledger.
type Policy struct {
	TradeFeeBps   uint32
	CommissionBps uint32
}

// Validate reports whether both rates are inside the basis-point range.
func (p Policy) Validate() error {
	if p.TradeFeeBps > bpsDenominator {
		return fmt.Errorf("fees: trade fee bps out of range: %d", p.TradeFeeBps)
	}
	if p.CommissionBps > bpsDenominator {
		return fmt.Errorf("fees: commission bps out of range: %d", p.CommissionBps)
	}
	return nil
}

// TradeFee computes the platform fee retained on a settled order.
func (p Policy) TradeFee(price *big.Int) *big.Int {
	return applyBps(price, p.TradeFeeBps)
}

// Commission computes the escrow commission fixed at escrow creation.
func (p Policy) Commission(amount *big.Int) *big.Int {
	return applyBps(amount, p.CommissionBps)
}

// Royalty computes the creator royalty for a sale price given the asset's
// royalty rate in basis points.
func Royalty(price *big.Int, royaltyBps uint32) *big.Int {
	return applyBps(price, royaltyBps)
}

// SellerProceeds returns amount - commission - royalty, rejecting splits that
// would leave the seller with a negative balance.
func SellerProceeds(amount, commission, royalty *big.Int) (*big.Int, error) {
	proceeds := new(big.Int).Set(orZero(amount))
	proceeds.Sub(proceeds, orZero(commission))
	proceeds.Sub(proceeds, orZero(royalty))
	if proceeds.Sign() < 0 {
		return nil, fmt.Errorf("fees: commission and royalty exceed escrowed amount")
	}
	return proceeds, nil
}

// applyBps computes amount*bps/10000 in the smallest denomination, truncating
// toward zero so the seller remainder absorbs any rounding dust.
func applyBps(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return fee.Div(fee, big.NewInt(bpsDenominator))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
