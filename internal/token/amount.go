package token

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatAmount renders a raw smallest-unit amount as a decimal string in human
// units. Trailing zeros are trimmed but at least one fractional digit is kept,
// so ten whole tokens at 18 decimals render as "10.0". The result is for
// display only; arithmetic always stays on the raw value.
func FormatAmount(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	if decimals == 0 {
		return raw.String()
	}
	sign := raw.Sign()
	abs := new(big.Int).Abs(raw)
	rat := new(big.Rat).SetFrac(abs, pow10(decimals))
	text := trimFractionalZeros(rat.FloatString(int(decimals)))
	if sign < 0 {
		return "-" + text
	}
	return text
}

// ParseAmount converts a human-unit decimal string into raw smallest units.
// It rejects negative, malformed, and over-precise input rather than rounding.
func ParseAmount(text string, decimals uint8) (*big.Int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(text, "-") {
		return nil, fmt.Errorf("amount must not be negative: %s", text)
	}

	whole := text
	frac := ""
	if dot := strings.IndexByte(text, '.'); dot >= 0 {
		whole, frac = text[:dot], text[dot+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, fmt.Errorf("invalid amount: %s", text)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %s exceeds %d decimal places", text, decimals)
	}

	padded := frac + strings.Repeat("0", int(decimals)-len(frac))
	raw, ok := new(big.Int).SetString(whole+padded, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", text)
	}
	return raw, nil
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

func trimFractionalZeros(text string) string {
	dot := strings.IndexByte(text, '.')
	if dot < 0 {
		return text
	}
	end := len(text)
	for end > dot+2 && text[end-1] == '0' {
		end--
	}
	return text[:end]
}

func isDigits(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
