package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of one certificate token.
const Decimals = 18

// unitsPerMWh is 10^18: one MWh of generation mints one whole token.
var unitsPerMWh = uint256.NewInt(1_000_000_000_000_000_000)

// Amount is a non-negative token quantity in base units.
type Amount struct {
	v uint256.Int
}

func NewAmount(u uint64) Amount {
	var a Amount
	a.v.SetUint64(u)
	return a
}

// ParseAmount parses a base-10 integer string of base units.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	s = strings.TrimSpace(s)
	if s == "" {
		return a, E(KindInvalidAmount, "parse amount", "empty amount")
	}
	if err := a.v.SetFromDecimal(s); err != nil {
		if errors.Is(err, uint256.ErrBig256Range) {
			return a, E(KindArithmeticOverflow, "parse amount", "amount %q exceeds 256 bits", s)
		}
		return a, E(KindInvalidAmount, "parse amount", "invalid amount %q", s)
	}
	return a, nil
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// UnitsFromMWh converts whole MWh of generation into token base units.
func UnitsFromMWh(mwh uint64) (Amount, error) {
	var a Amount
	if _, overflow := a.v.MulOverflow(uint256.NewInt(mwh), unitsPerMWh); overflow {
		return Amount{}, E(KindArithmeticOverflow, "scale amount", "%d MWh overflows token units", mwh)
	}
	return a, nil
}

// ParseTokens converts a human decimal token quantity ("12.5") into base units.
func ParseTokens(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, E(KindInvalidAmount, "parse tokens", "invalid token quantity %q", s)
	}
	if d.IsNegative() {
		return Amount{}, E(KindInvalidAmount, "parse tokens", "negative token quantity %q", s)
	}
	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, E(KindInvalidAmount, "parse tokens", "%q has more than %d decimals", s, Decimals)
	}
	return ParseAmount(scaled.BigInt().String())
}

func (a Amount) IsZero() bool { return a.v.IsZero() }

func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

func (a Amount) Lt(b Amount) bool { return a.v.Lt(&b.v) }

// Add returns a+b or ArithmeticOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, E(KindArithmeticOverflow, "add", "%s + %s overflows", a, b)
	}
	return out, nil
}

// Sub returns a-b or ArithmeticOverflow when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, E(KindArithmeticOverflow, "sub", "%s - %s underflows", a, b)
	}
	return out, nil
}

// String returns the base-unit decimal representation.
func (a Amount) String() string { return a.v.Dec() }

func (a Amount) Big() *big.Int { return a.v.ToBig() }

// Tokens returns the amount in whole-token units for display.
func (a Amount) Tokens() decimal.Decimal {
	return decimal.NewFromBigInt(a.v.ToBig(), -Decimals)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores the amount as a NUMERIC(78,0) literal.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		return a.scanString(v)
	case []byte:
		return a.scanString(string(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("scan amount: negative value %d", v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("scan amount: unsupported type %T", src)
	}
}

func (a *Amount) scanString(s string) error {
	// NUMERIC columns may come back with a trailing ".0..." scale.
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	*a = parsed
	return nil
}
