package utils

import (
	"regexp"
	"strings"
)

// emailRe is deliberately loose: it checks the general shape of an address
// and leaves deliverability to the verification e-mail itself.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether s looks like an e-mail address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// NormalizeEmail lower-cases and trims an address. Every storage write and
// lookup goes through this so the same mailbox cannot register twice by case.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeCPF strips everything but digits from a CPF. Both the formatted
// form (000.000.000-00) and the bare 11 digits normalize to the same string,
// which is what gets stored and looked up.
func NormalizeCPF(cpf string) string {
	var b strings.Builder
	b.Grow(11)
	for _, r := range cpf {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCPF checks a Brazilian CPF number, punctuation allowed. A CPF is 11
// digits where the last two are check digits computed from the first nine;
// all-same-digit sequences (111.111.111-11 and friends) pass the checksum
// but are defined as invalid.
func ValidCPF(cpf string) bool {
	cpf = NormalizeCPF(cpf)
	if len(cpf) != 11 {
		return false
	}
	same := true
	for i := 1; i < 11; i++ {
		if cpf[i] != cpf[0] {
			same = false
			break
		}
	}
	if same {
		return false
	}
	d1 := cpfCheckDigit(cpf, 10, 9)
	d2 := cpfCheckDigit(cpf, 11, 10)
	return int(cpf[9]-'0') == d1 && int(cpf[10]-'0') == d2
}

// cpfCheckDigit computes one verifier digit: digits are weighted startWeight
// down to 2 over the first n positions, summed mod 11.
func cpfCheckDigit(cpf string, startWeight, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(cpf[i]-'0') * (startWeight - i)
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}
