package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrTooPrecise is returned when an amount carries more than two fractional digits.
var ErrTooPrecise = errors.New("amount has more than two decimal places")

// ErrOutOfRange is returned when an amount does not fit in Cents.
var ErrOutOfRange = errors.New("amount out of range")

// Cents is a fixed-point monetary amount expressed in hundredths of the currency unit.
type Cents int64

// FromDecimal converts d to Cents. It fails instead of rounding.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	scaled := d.Shift(2)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrTooPrecise, d.String())
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, d.String())
	}
	return Cents(scaled.IntPart()), nil
}

// Parse reads a decimal string such as "2.50".
func Parse(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Cents {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Times returns c multiplied by a quantity.
func (c Cents) Times(qty int) Cents {
	return c * Cents(qty)
}

// Mul is Times with overflow detection.
func (c Cents) Mul(qty int) (Cents, error) {
	return FromDecimal(c.Decimal().Mul(decimal.NewFromInt(int64(qty))))
}

// Add returns c+o, failing with ErrOutOfRange on overflow.
func (c Cents) Add(o Cents) (Cents, error) {
	return FromDecimal(c.Decimal().Add(o.Decimal()))
}

func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// MarshalJSON renders the amount as a quoted two-decimal string, e.g. "7.50".
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare decimal numbers.
func (c *Cents) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
