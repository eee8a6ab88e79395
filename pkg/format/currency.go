// Package format renders calculation results for terminal output.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Currency returns a currency string with a dollar sign and thousands separators (e.g., "-$1,234.56").
func Currency(amount float64) string {
	return signed(amount < 0, groupThousands(fmt.Sprintf("%.2f", math.Abs(amount))))
}

// WholeCurrency formats a whole-unit amount (e.g., "$359,878" or "-$2,000").
func WholeCurrency(amount int64) string {
	magnitude := strconv.FormatUint(absInt64(amount), 10)
	return signed(amount < 0, groupThousands(magnitude))
}

// Percent formats a percentage with one decimal place (e.g., "50.2%").
func Percent(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}

func signed(negative bool, formatted string) string {
	if negative {
		return "-$" + formatted
	}
	return "$" + formatted
}

func absInt64(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}

// groupThousands inserts commas into the integer part of an unsigned decimal string.
func groupThousands(value string) string {
	intPart, decPart, hasDec := strings.Cut(value, ".")

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	if hasDec {
		return intPart + "." + decPart
	}
	return intPart
}
