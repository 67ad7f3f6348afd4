package config

import (
	"math/big"
	"os"
)

// Platform is the engine-facing read view over a loaded Config. It satisfies
// the escrow ledger's platform configuration and the market engine's chain
// policy.
type Platform struct {
	cfg *Config
}

// Platform returns the engine-facing view of the configuration.
func (c *Config) Platform() *Platform {
	return &Platform{cfg: c}
}

// CommissionBps returns the platform commission rate in basis points.
func (p *Platform) CommissionBps() uint32 { return p.cfg.CommissionBps }

// PayoutFailurePolicy returns the terminal-status policy for failed payouts.
func (p *Platform) PayoutFailurePolicy() string { return p.cfg.PayoutFailurePolicy }

// ChainFamily resolves the payment-rail family of a chain.
func (p *Platform) ChainFamily(chain string) (string, bool) {
	cc, ok := p.cfg.chain(chain)
	if !ok || cc.Family == "" {
		return "", false
	}
	return cc.Family, true
}

// CustodyAddress returns the platform deposit address on a chain.
func (p *Platform) CustodyAddress(chain string) (string, bool) {
	cc, ok := p.cfg.chain(chain)
	if !ok || cc.CustodyAddress == "" {
		return "", false
	}
	return cc.CustodyAddress, true
}

// SigningKey resolves the payout signing credential from the environment.
func (p *Platform) SigningKey(chain string) (string, bool) {
	cc, ok := p.cfg.chain(chain)
	if !ok || cc.SigningKeyEnv == "" {
		return "", false
	}
	key := os.Getenv(cc.SigningKeyEnv)
	if key == "" {
		return "", false
	}
	return key, true
}

// StableAsset returns the chain's designated stable currency and contract.
func (p *Platform) StableAsset(chain string) (symbol, contract string, ok bool) {
	cc, found := p.cfg.chain(chain)
	if !found || cc.StableSymbol == "" || cc.StableContract == "" {
		return "", "", false
	}
	return cc.StableSymbol, cc.StableContract, true
}

// SupportedCurrency reports whether a currency can be traded on a chain.
func (p *Platform) SupportedCurrency(chain, currency string) bool {
	cc, ok := p.cfg.chain(chain)
	if !ok {
		return false
	}
	if cc.StableSymbol != "" && currency == cc.StableSymbol {
		return true
	}
	for _, cur := range cc.Currencies {
		if cur == currency {
			return true
		}
	}
	return false
}

// IsStableCurrency reports whether the currency is the chain's stable asset.
func (p *Platform) IsStableCurrency(chain, currency string) bool {
	cc, ok := p.cfg.chain(chain)
	return ok && cc.StableSymbol != "" && cc.StableSymbol == currency
}

// StablePriceBounds returns the configured listing price bounds for
// stable-denominated listings.
func (p *Platform) StablePriceBounds(chain string) (min, max *big.Int, ok bool) {
	cc, found := p.cfg.chain(chain)
	if !found {
		return nil, nil, false
	}
	if cc.StableMinPrice != "" {
		min, _ = new(big.Int).SetString(cc.StableMinPrice, 10)
	}
	if cc.StableMaxPrice != "" {
		max, _ = new(big.Int).SetString(cc.StableMaxPrice, 10)
	}
	if min == nil && max == nil {
		return nil, nil, false
	}
	return min, max, true
}
