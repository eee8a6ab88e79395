// Package loans provides level-payment amortization math.
package loans

import (
	"math"

	"github.com/iwvelando/loan-support/pkg/constants"
)

// MonthlyRate converts a nominal annual percentage rate into the periodic
// monthly rate used by the amortization formulas.
func MonthlyRate(annualInterestRate float64) float64 {
	return annualInterestRate / constants.PercentageMultiplier / constants.MonthsPerYear
}

// GrowthFactor returns (1+r)^n for a monthly rate r over termMonths periods.
func GrowthFactor(monthlyRate float64, termMonths int) float64 {
	return math.Pow(1+monthlyRate, float64(termMonths))
}

// isInterestFree reports whether the amortization formulas degenerate to 0/0,
// either because the rate is zero or because it is too small to move (1+r)^n.
func isInterestFree(monthlyRate, growth float64) bool {
	return monthlyRate == 0 || growth-1 == 0
}

// CalculateMonthlyPayment calculates the monthly payment for a loan using the standard amortization formula.
func CalculateMonthlyPayment(principal, annualInterestRate float64, termMonths int) float64 {
	rate := MonthlyRate(annualInterestRate)
	growth := GrowthFactor(rate, termMonths)
	if isInterestFree(rate, growth) {
		// For zero interest, simply divide the principal by term
		return principal / float64(termMonths)
	}
	return principal * rate * growth / (growth - 1)
}

// CalculateMaxPrincipal inverts the amortization formula: it returns the largest
// principal a fixed monthly payment retires over termMonths.
func CalculateMaxPrincipal(monthlyPayment, annualInterestRate float64, termMonths int) float64 {
	rate := MonthlyRate(annualInterestRate)
	growth := GrowthFactor(rate, termMonths)
	if isInterestFree(rate, growth) {
		return monthlyPayment * float64(termMonths)
	}
	return monthlyPayment * (growth - 1) / (rate * growth)
}

// CalculateInterestPayment calculates the interest portion of a payment.
func CalculateInterestPayment(remainingPrincipal, annualInterestRate float64) float64 {
	return remainingPrincipal * MonthlyRate(annualInterestRate)
}

// TotalInterest is the interest paid over the life of a loan at a level payment.
func TotalInterest(monthlyPayment, principal float64, termMonths int) float64 {
	return monthlyPayment*float64(termMonths) - principal
}
