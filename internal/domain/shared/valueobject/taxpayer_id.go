package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/debtsettle/backend/internal/domain/shared"
)

const taxpayerIDLength = 11

// TaxpayerID is a validated Brazilian individual taxpayer number (CPF).
// The zero value is not valid; use ParseTaxpayerID.
type TaxpayerID struct {
	digits string
}

// ParseTaxpayerID strips formatting from raw and validates both check digits
func ParseTaxpayerID(raw string) (TaxpayerID, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	invalid := func(reason string) error {
		return shared.ErrInvalidIdentifier.
			WithMessage(fmt.Sprintf("invalid taxpayer id: %s", reason)).
			WithDetail("field", "taxpayer_id")
	}

	if len(digits) != taxpayerIDLength {
		return TaxpayerID{}, invalid("must have 11 digits")
	}
	if strings.Count(digits, digits[:1]) == taxpayerIDLength {
		return TaxpayerID{}, invalid("repeated digit sequence")
	}
	if checkDigit(digits[:9], 10) != digits[9] || checkDigit(digits[:10], 11) != digits[10] {
		return TaxpayerID{}, invalid("check digits do not match")
	}
	return TaxpayerID{digits: digits}, nil
}

// MustParseTaxpayerID is like ParseTaxpayerID but panics on error
func MustParseTaxpayerID(raw string) TaxpayerID {
	id, err := ParseTaxpayerID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// IsValidTaxpayerID reports whether raw is a valid taxpayer id
func IsValidTaxpayerID(raw string) bool {
	_, err := ParseTaxpayerID(raw)
	return err == nil
}

// checkDigit computes a CPF check digit over prefix with weights starting at
// firstWeight and descending to 2. Remainders below 2 map to zero.
func checkDigit(prefix string, firstWeight int) byte {
	sum := 0
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * (firstWeight - i)
	}
	rem := sum % 11
	if rem < 2 {
		return '0'
	}
	return byte('0' + 11 - rem)
}

// ComputeTaxpayerCheckDigits returns the two check digits for a 9-digit base.
// Used by data generators to build valid identifiers.
func ComputeTaxpayerCheckDigits(base string) (string, error) {
	if len(base) != 9 || strings.Trim(base, "0123456789") != "" {
		return "", shared.ErrInvalidIdentifier.WithMessage("base must have 9 digits")
	}
	first := checkDigit(base, 10)
	second := checkDigit(base+string(first), 11)
	return string([]byte{first, second}), nil
}

// Canonical returns the digits only
func (t TaxpayerID) Canonical() string {
	return t.digits
}

// Formatted returns the id grouped as 000.000.000-00
func (t TaxpayerID) Formatted() string {
	if len(t.digits) != taxpayerIDLength {
		return ""
	}
	return t.digits[0:3] + "." + t.digits[3:6] + "." + t.digits[6:9] + "-" + t.digits[9:11]
}

// Masked returns the id with the middle blocks hidden, e.g. 111.***.***-35
func (t TaxpayerID) Masked() string {
	if len(t.digits) != taxpayerIDLength {
		return ""
	}
	return t.digits[0:3] + ".***.***-" + t.digits[9:11]
}

// IsZero reports whether t holds no identifier
func (t TaxpayerID) IsZero() bool {
	return t.digits == ""
}

// Equals compares two identifiers by their digits
func (t TaxpayerID) Equals(other TaxpayerID) bool {
	return t.digits == other.digits
}

// String returns the masked projection so identifiers don't leak into logs
func (t TaxpayerID) String() string {
	return t.Masked()
}

// MarshalJSON renders the formatted projection
func (t TaxpayerID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Formatted())
}

// UnmarshalJSON parses and validates the identifier
func (t *TaxpayerID) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTaxpayerID(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer, storing the canonical digits
func (t TaxpayerID) Value() (driver.Value, error) {
	return t.digits, nil
}

// Scan implements sql.Scanner
func (t *TaxpayerID) Scan(value any) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into TaxpayerID", value)
	}
	parsed, err := ParseTaxpayerID(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
