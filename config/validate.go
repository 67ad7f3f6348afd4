package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

const maxBps = 10_000

var knownFamilies = map[string]bool{
	"account": true,
}

// Validate checks the loaded configuration for internally consistent values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("config: DatabaseURL is required")
	}
	if c.CommissionBps > maxBps {
		return fmt.Errorf("config: CommissionBps %d exceeds %d", c.CommissionBps, maxBps)
	}
	if c.TradeFeeBps > maxBps {
		return fmt.Errorf("config: TradeFeeBps %d exceeds %d", c.TradeFeeBps, maxBps)
	}
	switch c.PayoutFailurePolicy {
	case "release", "dispute":
	default:
		return fmt.Errorf("config: PayoutFailurePolicy must be release or dispute, got %q", c.PayoutFailurePolicy)
	}
	if _, err := time.ParseDuration(c.SweepInterval); err != nil {
		return fmt.Errorf("config: invalid SweepInterval %q: %v", c.SweepInterval, err)
	}
	seen := map[string]bool{}
	for i := range c.Chains {
		cc := &c.Chains[i]
		if strings.TrimSpace(cc.Name) == "" {
			return fmt.Errorf("config: chain %d has no name", i)
		}
		if seen[cc.Name] {
			return fmt.Errorf("config: duplicate chain %q", cc.Name)
		}
		seen[cc.Name] = true
		if cc.Family != "" && !knownFamilies[cc.Family] {
			return fmt.Errorf("config: chain %q has unknown family %q", cc.Name, cc.Family)
		}
		min, err := parsePrice(cc.StableMinPrice)
		if err != nil {
			return fmt.Errorf("config: chain %q StableMinPrice: %v", cc.Name, err)
		}
		max, err := parsePrice(cc.StableMaxPrice)
		if err != nil {
			return fmt.Errorf("config: chain %q StableMaxPrice: %v", cc.Name, err)
		}
		if min != nil && max != nil && min.Cmp(max) > 0 {
			return fmt.Errorf("config: chain %q StableMinPrice exceeds StableMaxPrice", cc.Name)
		}
	}
	return nil
}

func parsePrice(v string) (*big.Int, error) {
	if v == "" {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("not a non-negative base-10 integer: %q", v)
	}
	return n, nil
}
