package settlement

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// IdentifierRequest carries the inputs an IdentifierGenerator derives codes from
type IdentifierRequest struct {
	InstrumentID uuid.UUID
	Attempt      int
	Amount       valueobject.Money
	DueDate      time.Time
}

// IdentifierGenerator produces the typeable line and barcode for an instrument.
// Implementations must be deterministic for a given request; callers vary
// Attempt to obtain a different candidate after a collision.
type IdentifierGenerator interface {
	Generate(req IdentifierRequest) (InstrumentIdentifier, error)
}

// Layout widths for the 44-digit barcode
const (
	barcodeLength      = 44
	identifierLength   = 47
	freeFieldLength    = 25
	ourNumberLength    = 13
	amountFieldLength  = 10
	currencyCodeDigit  = "9"
	dueFactorRollover  = 10000
	dueFactorRestartAt = 1000
)

var dueFactorBase = time.Date(1997, time.October, 7, 0, 0, 0, 0, time.UTC)

// BankSlipGenerator lays out a bank-slip style barcode: bank code, currency
// digit, modulus-11 general check digit, due factor, amount in cents and a
// 25-digit free field (agency, account and a number derived from the
// instrument id). The typeable line splits the same digits into fields with
// modulus-10 check digits. Codes are opaque tokens; nothing is registered
// with a bank.
type BankSlipGenerator struct {
	bankCodes []string
	agency    string
	account   string
}

// NewBankSlipGenerator creates a generator for the configured bank codes and account
func NewBankSlipGenerator(bankCodes []string, agency, account string) (*BankSlipGenerator, error) {
	if len(bankCodes) == 0 {
		return nil, fmt.Errorf("at least one bank code is required")
	}
	for _, c := range bankCodes {
		if len(c) != 3 || !isDigits(c) {
			return nil, fmt.Errorf("bank code %q must have 3 digits", c)
		}
	}
	if len(agency) > 4 || !isDigits(agency) {
		return nil, fmt.Errorf("agency %q must have up to 4 digits", agency)
	}
	if len(account) > 8 || !isDigits(account) {
		return nil, fmt.Errorf("account %q must have up to 8 digits", account)
	}
	codes := make([]string, len(bankCodes))
	copy(codes, bankCodes)
	return &BankSlipGenerator{
		bankCodes: codes,
		agency:    leftPad(agency, 4),
		account:   leftPad(account, 8),
	}, nil
}

// Generate implements IdentifierGenerator
func (g *BankSlipGenerator) Generate(req IdentifierRequest) (InstrumentIdentifier, error) {
	cents := req.Amount.ToMinorUnits()
	amountField := fmt.Sprintf("%0*d", amountFieldLength, cents)
	if len(amountField) > amountFieldLength {
		return InstrumentIdentifier{}, ErrIdentifierGeneration.
			WithMessage("Instrument total does not fit the bank slip amount field").
			WithDetail("amount", req.Amount.StringFixed()).
			WithDetail("max_amount", "99999999.99")
	}

	digest := seedDigest(req.InstrumentID, req.Attempt)
	bank := g.bankCodes[binary.BigEndian.Uint32(digest[:4])%uint32(len(g.bankCodes))]
	free := g.agency + g.account + digitsFrom(digest[4:], ourNumberLength)
	factor := fmt.Sprintf("%04d", DueFactor(req.DueDate))

	// Barcode without the general check digit at position 5.
	partial := bank + currencyCodeDigit + factor + amountField + free
	dv := modulo11(partial)
	barcode := partial[:4] + string(dv) + partial[4:]

	return InstrumentIdentifier{
		IdentifierLine: TypeableLineFromBarcode(barcode),
		ChecksumCode:   barcode,
		BankCode:       bank,
	}, nil
}

// DueFactor returns the number of days between the base date and due,
// restarting at 1000 once it would reach five digits.
func DueFactor(due time.Time) int {
	days := daysBetween(dueFactorBase, due)
	if days < dueFactorRestartAt {
		return dueFactorRestartAt
	}
	if days >= dueFactorRollover {
		return (days-dueFactorRollover)%(dueFactorRollover-dueFactorRestartAt) + dueFactorRestartAt
	}
	return days
}

// TypeableLineFromBarcode renders the 47-digit typeable line for a 44-digit barcode,
// grouped as AAAAA.AAAAA BBBBB.BBBBBB CCCCC.CCCCCC D EEEEEEEEEEEEEE.
func TypeableLineFromBarcode(barcode string) string {
	if len(barcode) != barcodeLength {
		return ""
	}
	bankCurrency := barcode[0:4]
	dv := barcode[4:5]
	factorAmount := barcode[5:19]
	free := barcode[19:44]

	f1 := bankCurrency + free[0:5]
	f1 += string(modulo10(f1))
	f2 := free[5:15]
	f2 += string(modulo10(f2))
	f3 := free[15:25]
	f3 += string(modulo10(f3))

	return fmt.Sprintf("%s.%s %s.%s %s.%s %s %s",
		f1[:5], f1[5:], f2[:5], f2[5:], f3[:5], f3[5:], dv, factorAmount)
}

// ValidateChecksumCode verifies the general check digit of a 44-digit barcode
func ValidateChecksumCode(barcode string) error {
	if len(barcode) != barcodeLength || !isDigits(barcode) {
		return shared.ErrInvalidIdentifier.WithMessage("barcode must have 44 digits").WithDetail("field", "checksum_code")
	}
	if modulo11(barcode[:4]+barcode[5:]) != barcode[4] {
		return shared.ErrInvalidIdentifier.WithMessage("barcode check digit does not match").WithDetail("field", "checksum_code")
	}
	return nil
}

// ValidateIdentifierLine verifies every field check digit of a typeable line
// and the general check digit of the barcode it encodes.
func ValidateIdentifierLine(line string) error {
	digits := stripNonDigits(line)
	invalid := func(reason string) error {
		return shared.ErrInvalidIdentifier.WithMessage("typeable line " + reason).WithDetail("field", "identifier_line")
	}
	if len(digits) != identifierLength {
		return invalid("must have 47 digits")
	}
	fields := []string{digits[0:10], digits[10:21], digits[21:32]}
	for i, f := range fields {
		if modulo10(f[:len(f)-1]) != f[len(f)-1] {
			return invalid(fmt.Sprintf("field %d check digit does not match", i+1))
		}
	}
	return ValidateChecksumCode(BarcodeFromTypeableLine(digits))
}

// BarcodeFromTypeableLine reassembles the 44-digit barcode from a 47-digit line
func BarcodeFromTypeableLine(line string) string {
	d := stripNonDigits(line)
	if len(d) != identifierLength {
		return ""
	}
	return d[0:4] + d[32:33] + d[33:47] + d[4:9] + d[10:20] + d[21:31]
}

// modulo11 computes the general barcode check digit with weights 2..9 from the right.
// Results 0, 10 and 11 map to 1.
func modulo11(digits string) byte {
	sum, weight := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	dv := 11 - sum%11
	if dv == 0 || dv == 10 || dv == 11 {
		dv = 1
	}
	return byte('0' + dv)
}

// modulo10 computes a field check digit with alternating weights 2 and 1 from the right
func modulo10(digits string) byte {
	sum, weight := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		p := int(digits[i]-'0') * weight
		sum += p/10 + p%10
		if weight == 2 {
			weight = 1
		} else {
			weight = 2
		}
	}
	return byte('0' + (10-sum%10)%10)
}

func seedDigest(id uuid.UUID, attempt int) [sha256.Size]byte {
	buf := make([]byte, 0, len(id)+8)
	buf = append(buf, id[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(attempt))
	return sha256.Sum256(buf)
}

func digitsFrom(b []byte, n int) string {
	var sb strings.Builder
	for i := 0; sb.Len() < n; i++ {
		sb.WriteByte('0' + b[i%len(b)]%10)
	}
	return sb.String()
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func stripNonDigits(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func leftPad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}
