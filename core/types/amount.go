package types

import (
	"database/sql/driver"
	"fmt"
	"math/big"
)

// Amount is a monetary value expressed in the smallest denomination of its
// currency. It persists as a base-10 string column so no precision is lost in
// the database round trip.
type Amount struct {
	value big.Int
}

// NewAmount clones the supplied big.Int into an Amount. A nil input yields a
// zero amount.
func NewAmount(v *big.Int) *Amount {
	a := &Amount{}
	if v != nil {
		a.value.Set(v)
	}
	return a
}

// BigInt returns a copy of the underlying integer so callers can safely
// mutate the result.
func (a *Amount) BigInt() *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(&a.value)
}

// String returns the base-10 representation.
func (a *Amount) String() string {
	if a == nil {
		return "0"
	}
	return a.value.String()
}

// Value implements driver.Valuer.
func (a *Amount) Value() (driver.Value, error) {
	if a == nil {
		return "0", nil
	}
	return a.value.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src interface{}) error {
	if a == nil {
		return fmt.Errorf("amount: scan into nil receiver")
	}
	var raw string
	switch v := src.(type) {
	case nil:
		a.value.SetInt64(0)
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("amount: unsupported scan type %T", src)
	}
	if raw == "" {
		a.value.SetInt64(0)
		return nil
	}
	if _, ok := a.value.SetString(raw, 10); !ok {
		return fmt.Errorf("amount: invalid base-10 value %q", raw)
	}
	return nil
}
