// Package eligibility computes the monthly installment, the fixed obligations to
// income ratio and the maximum eligible principal for a loan applicant.
//
// The calculation runs in one of two modes. When a loan amount is supplied the
// EMI amortizes that principal. Otherwise the EMI is derived from a 40% FOIR
// ceiling and may be negative when existing obligations already exceed it; such
// values are returned as-is and callers decide how to present them. The
// eligible principal is always sized against a separate 43% ceiling.
//
// All functions are pure and safe for concurrent use.
package eligibility

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/loan-support/pkg/constants"
	"github.com/iwvelando/loan-support/pkg/loans"
	"github.com/iwvelando/loan-support/pkg/mathutil"
)

var (
	// ErrInvalidInput marks inputs outside the domain of the calculation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNonFinite marks a calculation that overflowed to NaN or an infinity.
	ErrNonFinite = errors.New("calculation produced a non-finite value")

	// ErrOutOfRange marks amounts too large to report as exact whole units.
	ErrOutOfRange = errors.New("calculation exceeds the reportable range")
)

// maxWholeAmount is the largest magnitude a float64 holds with unit precision.
const maxWholeAmount = 1 << 53

// Mode identifies how the EMI was obtained.
type Mode string

const (
	// ModeAmortized amortizes a requested loan amount.
	ModeAmortized Mode = "amortized"

	// ModeDerived derives the EMI from the income ceiling.
	ModeDerived Mode = "derived"
)

// Input holds the financial inputs for one eligibility calculation.
type Input struct {
	MonthlyIncome      float64
	MonthlyObligations float64
	AnnualRatePercent  float64
	TenureMonths       int
	LoanAmount         *float64 // nil selects the derived mode
}

// Calculation holds the unrounded values of a calculation.
type Calculation struct {
	Mode               Mode
	MonthlyRate        float64
	EMI                float64
	FOIR               float64
	MaxAffordableEMI   float64
	EligibleLoanAmount float64
}

// Result is a calculation rounded for presentation: whole currency units for
// the EMI and eligible amount, one decimal place for FOIR.
type Result struct {
	EMI                int64   `json:"emi"`
	FOIR               float64 `json:"foir"`
	EligibleLoanAmount int64   `json:"eligible_loan_amount"`
}

// NonAffordable reports whether the applicant cannot service any new EMI: the
// derived EMI is negative or no principal is eligible. It is advisory and never
// an error.
func (r Result) NonAffordable() bool {
	return r.EMI < 0 || r.EligibleLoanAmount <= 0
}

// Compute evaluates the input and rounds the outcome.
func Compute(in Input) (Result, error) {
	calc, err := Evaluate(in)
	if err != nil {
		return Result{}, err
	}
	return calc.Result(), nil
}

// Evaluate runs the calculation without rounding.
func Evaluate(in Input) (Calculation, error) {
	if err := in.validate(); err != nil {
		return Calculation{}, err
	}

	calc := Calculation{MonthlyRate: loans.MonthlyRate(in.AnnualRatePercent)}

	if in.LoanAmount != nil {
		calc.Mode = ModeAmortized
		calc.EMI = loans.CalculateMonthlyPayment(*in.LoanAmount, in.AnnualRatePercent, in.TenureMonths)
	} else {
		calc.Mode = ModeDerived
		calc.EMI = mathutil.ApplyPercentage(in.MonthlyIncome, constants.DerivedEMICeilingPercent) - in.MonthlyObligations
	}

	totalObligations := in.MonthlyObligations + calc.EMI
	calc.FOIR = mathutil.CalculatePercentage(totalObligations, in.MonthlyIncome)

	calc.MaxAffordableEMI = mathutil.ApplyPercentage(in.MonthlyIncome, constants.EligibleAmountCeilingPercent) - in.MonthlyObligations
	calc.EligibleLoanAmount = loans.CalculateMaxPrincipal(calc.MaxAffordableEMI, in.AnnualRatePercent, in.TenureMonths)

	if !mathutil.AllFinite(calc.EMI, calc.FOIR, calc.EligibleLoanAmount) {
		return Calculation{}, fmt.Errorf("%w: emi=%v foir=%v eligible=%v",
			ErrNonFinite, calc.EMI, calc.FOIR, calc.EligibleLoanAmount)
	}
	if math.Abs(calc.EMI) > maxWholeAmount || math.Abs(calc.EligibleLoanAmount) > maxWholeAmount {
		return Calculation{}, fmt.Errorf("%w: emi=%.0f eligible=%.0f",
			ErrOutOfRange, calc.EMI, calc.EligibleLoanAmount)
	}
	return calc, nil
}

// Result rounds the calculation once, at the output boundary.
func (c Calculation) Result() Result {
	return Result{
		EMI:                int64(mathutil.RoundHalfUp(c.EMI)),
		FOIR:               mathutil.RoundHalfUpTo(c.FOIR, constants.FOIRDecimalPlaces),
		EligibleLoanAmount: int64(mathutil.RoundHalfUp(c.EligibleLoanAmount)),
	}
}

func (in Input) validate() error {
	if !mathutil.AllFinite(in.MonthlyIncome, in.MonthlyObligations, in.AnnualRatePercent) {
		return fmt.Errorf("%w: inputs must be finite numbers", ErrInvalidInput)
	}
	if in.MonthlyIncome <= 0 {
		return fmt.Errorf("%w: monthly income must be positive, got %v", ErrInvalidInput, in.MonthlyIncome)
	}
	if in.TenureMonths <= 0 {
		return fmt.Errorf("%w: tenure must be positive, got %d months", ErrInvalidInput, in.TenureMonths)
	}
	if in.LoanAmount != nil && !mathutil.IsFinite(*in.LoanAmount) {
		return fmt.Errorf("%w: loan amount must be a finite number", ErrInvalidInput)
	}
	return nil
}
