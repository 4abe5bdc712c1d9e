package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	BRL Currency = "BRL" // Brazilian Real (default)
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = BRL

// MoneyScale is the number of fractional digits every Money amount carries
const MoneyScale int32 = 2

var hundred = decimal.NewFromInt(100)

// Money is a value object representing a non-negative monetary amount.
// It is immutable - all operations return new Money instances, rounded
// half-up to two decimal places.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, shared.ErrInvalidInput.WithMessage("currency cannot be empty").WithDetail("field", "currency")
	}
	// checked before rounding so that -0.004 is not accepted as zero
	if amount.IsNegative() {
		return Money{}, shared.ErrNegativeResult.
			WithMessage("money amount cannot be negative").
			WithDetail("amount", amount.String())
	}
	return Money{amount: amount.Round(MoneyScale), currency: currency}, nil
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, shared.ErrInvalidInput.
			WithMessage(fmt.Sprintf("invalid amount string %q", amount)).
			WithDetail("field", "amount").
			WithCause(err)
	}
	return NewMoney(d, currency)
}

// NewBRL creates Money in BRL from a decimal string.
// It panics on invalid input and is meant for constants and tests.
func NewBRL(amount string) Money {
	m, err := NewMoneyFromString(amount, BRL)
	if err != nil {
		panic(err)
	}
	return m
}

// FromMinorUnits creates Money from an integer amount of cents
func FromMinorUnits(cents int64, currency Currency) (Money, error) {
	return NewMoney(decimal.New(cents, -MoneyScale), currency)
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// ToMinorUnits returns the amount as an integer number of cents
func (m Money) ToMinorUnits() int64 {
	return m.amount.Mul(hundred).Round(0).IntPart()
}

func (m Money) sameCurrency(op string, other Money) error {
	if m.currency != other.currency {
		return shared.ErrCurrencyMismatch.
			WithMessage(fmt.Sprintf("cannot %s money with different currencies: %s and %s", op, m.currency, other.currency)).
			WithDetail("left_currency", string(m.currency)).
			WithDetail("right_currency", string(other.currency))
	}
	return nil
}

// Add returns a new Money with the sum of both amounts
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency("add", other); err != nil {
		return Money{}, err
	}
	return NewMoney(m.amount.Add(other.amount), m.currency)
}

// MustAdd adds two Money values, panics if currencies don't match
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns a new Money with the difference.
// Fails with NEGATIVE_RESULT when other is larger than m.
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency("subtract", other); err != nil {
		return Money{}, err
	}
	return NewMoney(m.amount.Sub(other.amount), m.currency)
}

// Multiply returns a new Money multiplied by the given factor
func (m Money) Multiply(factor decimal.Decimal) (Money, error) {
	return NewMoney(m.amount.Mul(factor), m.currency)
}

// MultiplyByInt returns a new Money multiplied by an integer
func (m Money) MultiplyByInt(factor int64) (Money, error) {
	return m.Multiply(decimal.NewFromInt(factor))
}

// Divide returns a new Money divided by the given divisor
func (m Money) Divide(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, shared.ErrDivisionByZero.WithDetail("field", "divisor")
	}
	return NewMoney(m.amount.DivRound(divisor, MoneyScale), m.currency)
}

// DivideByInt returns a new Money divided by an integer
func (m Money) DivideByInt(divisor int64) (Money, error) {
	return m.Divide(decimal.NewFromInt(divisor))
}

// PercentageOf returns pct percent of this Money
func (m Money) PercentageOf(pct decimal.Decimal) (Money, error) {
	return NewMoney(m.amount.Mul(pct).Div(hundred), m.currency)
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// LessThan returns true if this Money is less than the other
func (m Money) LessThan(other Money) (bool, error) {
	if err := m.sameCurrency("compare", other); err != nil {
		return false, err
	}
	return m.amount.LessThan(other.amount), nil
}

// GreaterThan returns true if this Money is greater than the other
func (m Money) GreaterThan(other Money) (bool, error) {
	if err := m.sameCurrency("compare", other); err != nil {
		return false, err
	}
	return m.amount.GreaterThan(other.amount), nil
}

// Allocate divides money into n parts whose sum is exactly m.
// Leftover cents go to the first parts.
func (m Money) Allocate(parts int) ([]Money, error) {
	if parts <= 0 {
		return nil, shared.ErrInvalidInput.WithMessage("parts must be positive").WithDetail("parts", parts)
	}
	total := m.ToMinorUnits()
	base := total / int64(parts)
	remainder := total % int64(parts)

	result := make([]Money, parts)
	for i := range parts {
		cents := base
		if int64(i) < remainder {
			cents++
		}
		result[i] = Money{amount: decimal.New(cents, -MoneyScale), currency: m.currency}
	}
	return result, nil
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(MoneyScale), m.currency)
}

// StringFixed returns the amount as a decimal string with two places
func (m Money) StringFixed() string {
	return m.amount.StringFixed(MoneyScale)
}

// Formatted renders the amount for display in pt-BR, e.g. "R$ 1.234,56"
func (m Money) Formatted() string {
	unit, err := currency.ParseISO(string(m.currency))
	if err != nil {
		return m.String()
	}
	f, _ := m.amount.Float64()
	p := message.NewPrinter(language.BrazilianPortuguese)
	return p.Sprint(currency.Symbol(unit.Amount(f)))
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.StringFixed(MoneyScale),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler, applying the same validation as NewMoney
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Currency == "" {
		v.Currency = DefaultCurrency
	}
	parsed, err := NewMoneyFromString(v.Amount, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
// Stores the amount only; currency lives in its own column.
func (m Money) Value() (driver.Value, error) {
	return m.amount.StringFixed(MoneyScale), nil
}

// Scan implements sql.Scanner for database retrieval.
// Currency defaults to DefaultCurrency when not already set.
func (m *Money) Scan(value any) error {
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	if value == nil {
		m.amount = decimal.Zero
		return nil
	}

	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("cannot scan %T into Money: %w", value, err)
	}
	m.amount = d.Round(MoneyScale)
	return nil
}
