// Package calculator is the HTTP-facing side of the eligibility engine: it turns
// loosely typed request payloads into validated inputs and runs calculations
// through a cache and an audit log.
package calculator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/loan-support/pkg/constants"
	"github.com/iwvelando/loan-support/pkg/eligibility"
	"github.com/iwvelando/loan-support/pkg/mathutil"
	"github.com/spf13/cast"
)

// Request field names, as they appear on the wire.
const (
	FieldMonthlyIncome      = "monthly_income"
	FieldMonthlyObligations = "monthly_obligations"
	FieldROI                = "roi"
	FieldTenureMonths       = "tenure_months"
	FieldLoanAmount         = "loan_amount"
)

var requiredFields = []string{FieldMonthlyIncome, FieldMonthlyObligations, FieldROI, FieldTenureMonths}

// ValidationError describes why a request was rejected. It unwraps to
// eligibility.ErrInvalidInput.
type ValidationError struct {
	Missing []string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return "missing required fields: " + strings.Join(e.Missing, ", ")
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match eligibility.ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return eligibility.ErrInvalidInput
}

// ParseRequest validates a decoded JSON object and builds the calculator input.
// Numbers may be JSON numbers or numeric strings. A loan amount of zero, null or
// an empty string selects the derived-EMI mode.
func ParseRequest(payload map[string]interface{}) (eligibility.Input, error) {
	var missing []string
	for _, field := range requiredFields {
		if isBlank(payload[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return eligibility.Input{}, &ValidationError{Missing: missing}
	}

	income, err := number(payload, FieldMonthlyIncome)
	if err != nil {
		return eligibility.Input{}, err
	}
	obligations, err := number(payload, FieldMonthlyObligations)
	if err != nil {
		return eligibility.Input{}, err
	}
	roi, err := number(payload, FieldROI)
	if err != nil {
		return eligibility.Input{}, err
	}
	tenure, err := number(payload, FieldTenureMonths)
	if err != nil {
		return eligibility.Input{}, err
	}

	switch {
	case income <= 0:
		return eligibility.Input{}, &ValidationError{Field: FieldMonthlyIncome, Reason: "must be greater than 0"}
	case obligations < 0:
		return eligibility.Input{}, &ValidationError{Field: FieldMonthlyObligations, Reason: "must not be negative"}
	case roi < 0 || roi > constants.MaxAnnualRatePercent:
		return eligibility.Input{}, &ValidationError{Field: FieldROI,
			Reason: fmt.Sprintf("must be between 0 and %g", constants.MaxAnnualRatePercent)}
	case tenure != math.Trunc(tenure):
		return eligibility.Input{}, &ValidationError{Field: FieldTenureMonths, Reason: "must be a whole number of months"}
	case tenure < constants.MinTenureMonths || tenure > constants.MaxTenureMonths:
		return eligibility.Input{}, &ValidationError{Field: FieldTenureMonths,
			Reason: fmt.Sprintf("must be between %d and %d", constants.MinTenureMonths, constants.MaxTenureMonths)}
	}

	in := eligibility.Input{
		MonthlyIncome:      income,
		MonthlyObligations: obligations,
		AnnualRatePercent:  roi,
		TenureMonths:       int(tenure),
	}

	if !isBlank(payload[FieldLoanAmount]) {
		loan, err := number(payload, FieldLoanAmount)
		if err != nil {
			return eligibility.Input{}, err
		}
		if loan < 0 {
			return eligibility.Input{}, &ValidationError{Field: FieldLoanAmount, Reason: "must be greater than 0"}
		}
		if loan > 0 {
			in.LoanAmount = &loan
		}
	}

	return in, nil
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func number(payload map[string]interface{}, field string) (float64, error) {
	notNumeric := &ValidationError{Field: field, Reason: "must be numeric"}

	var (
		v   float64
		err error
	)
	switch raw := payload[field].(type) {
	case bool, map[string]interface{}, []interface{}:
		return 0, notNumeric
	case json.Number:
		v, err = cast.ToFloat64E(raw.String())
	case string:
		v, err = cast.ToFloat64E(strings.TrimSpace(raw))
	default:
		v, err = cast.ToFloat64E(raw)
	}
	if err != nil || !mathutil.IsFinite(v) {
		return 0, notNumeric
	}
	return v, nil
}
