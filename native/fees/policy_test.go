package fees

import (
	"math/big"
	"testing"
)

func TestSplitOnRoundAmount(t *testing.T) {
	// 100.00 units in base denomination with 2% commission and 10% royalty.
	price := big.NewInt(10_000)
	policy := Policy{TradeFeeBps: DefaultTradeFeeBps, CommissionBps: 200}

	if got := policy.Commission(price); got.Int64() != 200 {
		t.Fatalf("commission: got %s want 200", got)
	}
	if got := policy.TradeFee(price); got.Int64() != 250 {
		t.Fatalf("trade fee: got %s want 250", got)
	}
	royalty := Royalty(price, 1000)
	if royalty.Int64() != 1000 {
		t.Fatalf("royalty: got %s want 1000", royalty)
	}
	proceeds, err := SellerProceeds(price, policy.Commission(price), royalty)
	if err != nil {
		t.Fatalf("proceeds: %v", err)
	}
	if proceeds.Int64() != 8_800 {
		t.Fatalf("proceeds: got %s want 8800", proceeds)
	}
}

func TestApplyBpsTruncates(t *testing.T) {
	// 333 * 250 / 10000 = 8.325, truncated to 8.
	if got := (Policy{TradeFeeBps: 250}).TradeFee(big.NewInt(333)); got.Int64() != 8 {
		t.Fatalf("truncation: got %s want 8", got)
	}
	if got := Royalty(big.NewInt(1), 1); got.Sign() != 0 {
		t.Fatalf("dust royalty: got %s want 0", got)
	}
}

func TestApplyBpsDegenerateInputs(t *testing.T) {
	if got := Royalty(nil, 1000); got.Sign() != 0 {
		t.Fatalf("nil price: got %s", got)
	}
	if got := Royalty(big.NewInt(-5), 1000); got.Sign() != 0 {
		t.Fatalf("negative price: got %s", got)
	}
	if got := (Policy{}).Commission(big.NewInt(1000)); got.Sign() != 0 {
		t.Fatalf("zero bps: got %s", got)
	}
}

func TestSellerProceedsRejectsNegative(t *testing.T) {
	if _, err := SellerProceeds(big.NewInt(100), big.NewInt(60), big.NewInt(50)); err == nil {
		t.Fatal("expected error when split exceeds amount")
	}
	proceeds, err := SellerProceeds(big.NewInt(100), big.NewInt(50), big.NewInt(50))
	if err != nil || proceeds.Sign() != 0 {
		t.Fatalf("exact split: got (%v, %v)", proceeds, err)
	}
	proceeds, err = SellerProceeds(big.NewInt(100), nil, nil)
	if err != nil || proceeds.Int64() != 100 {
		t.Fatalf("nil splits: got (%v, %v)", proceeds, err)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := (Policy{TradeFeeBps: 10_000, CommissionBps: 10_000}).Validate(); err != nil {
		t.Fatalf("boundary rates should validate: %v", err)
	}
	if err := (Policy{TradeFeeBps: 10_001}).Validate(); err == nil {
		t.Fatal("trade fee above 100% should fail")
	}
	if err := (Policy{CommissionBps: 10_001}).Validate(); err == nil {
		t.Fatal("commission above 100% should fail")
	}
}
