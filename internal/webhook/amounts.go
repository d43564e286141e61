package webhook

import (
	"math"
	"strings"
)

// Currencies whose minor unit is not the default two decimal places.
var currencyExponents = map[string]int{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0,
	"KMF": 0, "KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0,
	"VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

func currencyExponent(currency string) int {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ToMinorUnits converts a major-unit amount into the provider's minor-unit
// convention for the currency (222.99 SEK -> 22299).
func ToMinorUnits(amount float64, currency string) int64 {
	factor := math.Pow10(currencyExponent(currency))
	return int64(math.Round(amount * factor))
}

// FromMinorUnits converts a provider minor-unit amount back to major units.
func FromMinorUnits(minor int64, currency string) float64 {
	factor := math.Pow10(currencyExponent(currency))
	return float64(minor) / factor
}

// CalculateTaxRate computes a line's tax rate in percent from its minor-unit
// tax and net amounts: round(100 * tax / net). Either operand being zero
// yields zero, avoiding a division by zero on tax-free or zero-priced lines.
func CalculateTaxRate(taxAmount, netAmount int64) int64 {
	if taxAmount == 0 || netAmount == 0 {
		return 0
	}
	return int64(math.Round(100 * float64(taxAmount) / float64(netAmount)))
}
