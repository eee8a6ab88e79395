// Package output renders API results for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/iwvelando/loan-support/pkg/client"
	"github.com/iwvelando/loan-support/pkg/eligibility"
	"github.com/iwvelando/loan-support/pkg/format"
	"github.com/iwvelando/loan-support/pkg/loans"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// JSON writes v as indented JSON.
func JSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Eligibility writes a human-readable summary of a calculation. When req names
// a loan amount, the interest cost of amortizing it is shown as well.
func Eligibility(w io.Writer, res eligibility.Result, req client.EligibilityRequest) {
	fmt.Fprintf(w, "EMI:                  %s\n", format.WholeCurrency(res.EMI))
	fmt.Fprintf(w, "FOIR:                 %s\n", format.Percent(res.FOIR))
	fmt.Fprintf(w, "Eligible loan amount: %s\n", format.WholeCurrency(res.EligibleLoanAmount))
	if req.LoanAmount != nil && *req.LoanAmount > 0 && req.TenureMonths > 0 {
		principal := *req.LoanAmount
		payment := loans.CalculateMonthlyPayment(principal, req.ROI, req.TenureMonths)
		fmt.Fprintf(w, "First-month interest: %s\n", format.Currency(loans.CalculateInterestPayment(principal, req.ROI)))
		fmt.Fprintf(w, "Total interest:       %s\n", format.Currency(loans.TotalInterest(payment, principal, req.TenureMonths)))
	}
	if res.NonAffordable() {
		fmt.Fprintln(w, "Existing obligations exceed the affordable EMI; no additional loan is serviceable.")
	}
}

// History writes a table of audited calculations, newest first.
func History(w io.Writer, entries []client.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No calculations recorded")
		return
	}

	p := message.NewPrinter(language.English)
	fmt.Fprintf(w, "Time                | Income        | Tenure | ROI     | EMI         | FOIR   | Eligible\n")
	fmt.Fprintf(w, "____                | ______        | ______ | ___     | ___         | ____   | ________\n")
	for _, e := range entries {
		_, _ = p.Fprintf(w, "%s | $%-12.2f | %5dm | %6.2f%% | %-11s | %-6s | %s\n",
			e.CreatedAt.Local().Format(time.DateTime),
			e.MonthlyIncome,
			e.TenureMonths,
			e.ROI,
			format.WholeCurrency(e.EMI),
			format.Percent(e.FOIR),
			format.WholeCurrency(e.EligibleLoanAmount),
		)
	}
}
