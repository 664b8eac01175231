package flows

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Input limits.
const (
	MinBankAmount    int64 = 10_000
	MinQRISAmount    int64 = 1_000
	maxAmount        int64 = 1_000_000_000_000
	minNameLength          = 3
	maxNameLength          = 50
	minAccountDigits       = 8
	maxAccountDigits       = 20
)

// Confirmation tokens.
const (
	TokenConfirm = "KONFIRMASI"
	TokenAbort   = "BATAL"
)

var (
	phonePattern   = regexp.MustCompile(`^(\+62|62|0)8[1-9][0-9]{7,11}$`)
	pinPattern     = regexp.MustCompile(`^[0-9]{6}$`)
	otpPattern     = regexp.MustCompile(`^[0-9]{4,6}$`)
	digitsPattern  = regexp.MustCompile(`^[0-9]+$`)
	phoneSeparator = strings.NewReplacer(" ", "", "-", "")
	dotGrouped     = regexp.MustCompile(`^[0-9]{1,3}(\.[0-9]{3})+$`)
	commaGrouped   = regexp.MustCompile(`^[0-9]{1,3}(,[0-9]{3})+$`)
)

// NormalizePhone validates an Indonesian mobile number and returns it
// without the leading 0, 62 or +62.
func NormalizePhone(input string) (string, error) {
	phone := phoneSeparator.Replace(strings.TrimSpace(input))
	if !phonePattern.MatchString(phone) {
		return "", &ValidationError{
			Field:   "phone",
			Message: "That doesn't look like an Indonesian mobile number. Try the format 081234567890.",
		}
	}
	for _, prefix := range []string{"+62", "62", "0"} {
		if strings.HasPrefix(phone, prefix) {
			return phone[len(prefix):], nil
		}
	}
	return phone, nil
}

// ValidatePIN accepts exactly six digits.
func ValidatePIN(input string) (string, error) {
	pin := strings.TrimSpace(input)
	if !pinPattern.MatchString(pin) {
		return "", &ValidationError{Field: "pin", Message: "The PIN must be exactly 6 digits."}
	}
	return pin, nil
}

// ValidateOTP accepts four to six digits.
func ValidateOTP(input string) (string, error) {
	otp := strings.TrimSpace(input)
	if !otpPattern.MatchString(otp) {
		return "", &ValidationError{Field: "otp", Message: "The OTP must be 4 to 6 digits."}
	}
	return otp, nil
}

// ValidateName accepts a wallet name of 3 to 50 characters.
func ValidateName(input string) (string, error) {
	name := strings.TrimSpace(input)
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		return "", &ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("The name must be between %d and %d characters.", minNameLength, maxNameLength),
		}
	}
	return name, nil
}

// ParseAmount reads a whole-Rupiah amount with an optional "Rp" prefix and
// enforces min. Separators must form thousands groups of one kind, so
// "1.250.000" and "50,000" are accepted while "15000.00" is rejected.
func ParseAmount(input string, min int64) (int64, error) {
	s := strings.TrimSpace(input)
	if len(s) >= 2 && strings.EqualFold(s[:2], "rp") {
		s = strings.TrimSpace(s[2:])
	}

	invalid := &ValidationError{
		Field:   "amount",
		Message: fmt.Sprintf("Enter a whole amount of at least %s.", Rupiah(min)),
	}
	switch {
	case digitsPattern.MatchString(s):
	case dotGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	case commaGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	default:
		return 0, invalid
	}
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil || amount > maxAmount {
		return 0, &ValidationError{Field: "amount", Message: "That amount is too large."}
	}
	if amount < min {
		return 0, invalid
	}
	return amount, nil
}

// ValidateAccountNumber accepts 8 to 20 digits.
func ValidateAccountNumber(input string) (string, error) {
	n := strings.TrimSpace(input)
	if !digitsPattern.MatchString(n) || len(n) < minAccountDigits || len(n) > maxAccountDigits {
		return "", &ValidationError{
			Field:   "account_number",
			Message: fmt.Sprintf("The account number must be %d to %d digits.", minAccountDigits, maxAccountDigits),
		}
	}
	return n, nil
}

// ParseConfirmation recognises KONFIRMASI or BATAL in any case.
func ParseConfirmation(input string) (string, bool) {
	token := strings.ToUpper(strings.TrimSpace(input))
	switch token {
	case TokenConfirm, TokenAbort:
		return token, true
	default:
		return "", false
	}
}
