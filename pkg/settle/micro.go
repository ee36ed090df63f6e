package settle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedAmount reports a decimal string that cannot be converted to
// microunits exactly.
var ErrMalformedAmount = errors.New("malformed decimal amount")

// ToMicro converts a non-negative decimal string to integer microunits
// (amount x 10^decimals). Digits past the microunit are rounded to
// nearest, half away from zero. All settlement arithmetic runs on the
// returned integers; floats never touch money.
func ToMicro(amount string, decimals int) (int64, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrMalformedAmount)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: negative amount %q", ErrMalformedAmount, amount)
	}

	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
	}
	if intPart == "" {
		intPart = "0"
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
	}

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
	}

	// Frac digits up to the microunit, then one digit for rounding.
	frac := fracPart
	roundUp := false
	if len(frac) > decimals {
		roundUp = frac[decimals] >= '5'
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	fracMicro := int64(0)
	if frac != "" {
		fracMicro, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
		}
	}

	scale := pow10(decimals)
	if whole > (math.MaxInt64-fracMicro-1)/scale {
		return 0, fmt.Errorf("%w: overflow converting %q", ErrMalformedAmount, amount)
	}
	micro := whole*scale + fracMicro
	if roundUp {
		micro++
	}
	return micro, nil
}

// FromMicro renders microunits as a decimal string with trailing zeros
// trimmed, e.g. 75000 -> "0.075", 0 -> "0".
func FromMicro(micro int64, decimals int) string {
	if micro < 0 {
		// Settlement amounts are non-negative by construction; render the
		// sign rather than hide a defect.
		return "-" + FromMicro(-micro, decimals)
	}
	scale := pow10(decimals)
	whole := micro / scale
	frac := micro % scale
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	out := fmt.Sprintf("%d.%0*d", whole, decimals, frac)
	out = strings.TrimRight(out, "0")
	return strings.TrimSuffix(out, ".")
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func pow10(n int) int64 {
	out := int64(1)
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}
