// Package payment computes the monetary side of a finished convocation:
// worked hours, the statutory payment breakdown, the labor-tax estimate
// attached to payroll registration, and aggregate payment statistics.
//
// All functions are deterministic and side-effect free; amounts use
// shopspring/decimal rounded to 2 decimal places (centavos).
package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fernandolim41/picopro-clt/internal/model"
)

// Statutory proportional rates for intermittent contracts (CLT art. 443):
// vacation pay 1/9, thirteenth salary 1/12, paid weekly rest (DSR) approx.
var (
	vacationRate   = decimal.RequireFromString("0.1111")
	thirteenthRate = decimal.RequireFromString("0.0833")
	dsrRate        = decimal.RequireFromString("0.1667")
)

// HoursWorked returns the billable hours between start and end: the duration
// rounded up to the next whole hour. Rounding up is intentional policy —
// any started hour is paid in full, in the worker's favor.
func HoursWorked(start, end time.Time) (int, error) {
	if !end.After(start) {
		return 0, fmt.Errorf("end time %s is not after start time %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	d := end.Sub(start)
	hours := int(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	return hours, nil
}

// Calculate derives the payment breakdown for hoursWorked at hourlyRate.
// Each component is rounded to centavos independently; the total is the sum
// of the rounded components, so the invariant
// total = base + vacation + thirteenth + dsr holds exactly.
func Calculate(hourlyRate decimal.Decimal, hoursWorked int) model.PaymentBreakdown {
	base := hourlyRate.Mul(decimal.NewFromInt(int64(hoursWorked))).Round(2)
	vacation := base.Mul(vacationRate).Round(2)
	thirteenth := base.Mul(thirteenthRate).Round(2)
	dsr := base.Mul(dsrRate).Round(2)

	return model.PaymentBreakdown{
		BaseSalary:       base,
		VacationPay:      vacation,
		ThirteenthSalary: thirteenth,
		DSR:              dsr,
		TotalPayment:     base.Add(vacation).Add(thirteenth).Add(dsr),
	}
}

// TaxEstimate is the simplified labor-charge decomposition submitted with
// the payroll registration. It is an estimate for the registration payload,
// not a tax-authority computation.
type TaxEstimate struct {
	Gross        decimal.Decimal `json:"gross"`
	INSS         decimal.Decimal `json:"inss"`         // 8%, withheld from worker
	FGTS         decimal.Decimal `json:"fgts"`         // 8%, employer deposit
	EmployerINSS decimal.Decimal `json:"employerInss"` // 20%, employer charge
	IRRF         decimal.Decimal `json:"irrf"`         // progressive withholding
	Net          decimal.Decimal `json:"net"`          // gross − INSS − IRRF
}

var (
	inssRate         = decimal.RequireFromString("0.08")
	fgtsRate         = decimal.RequireFromString("0.08")
	employerInssRate = decimal.RequireFromString("0.20")
)

// irrfBrackets is the monthly progressive withholding table: amounts up to
// Ceiling are taxed at Rate minus Deduction. The last bracket has no ceiling.
var irrfBrackets = []struct {
	Ceiling   decimal.Decimal
	Rate      decimal.Decimal
	Deduction decimal.Decimal
}{
	{decimal.RequireFromString("2112.00"), decimal.Zero, decimal.Zero},
	{decimal.RequireFromString("2826.65"), decimal.RequireFromString("0.075"), decimal.RequireFromString("158.40")},
	{decimal.RequireFromString("3751.05"), decimal.RequireFromString("0.15"), decimal.RequireFromString("370.40")},
	{decimal.RequireFromString("4664.68"), decimal.RequireFromString("0.225"), decimal.RequireFromString("651.73")},
	{decimal.Decimal{}, decimal.RequireFromString("0.275"), decimal.RequireFromString("884.96")},
}

// EstimateTaxes computes the simplified charge breakdown over a gross amount.
func EstimateTaxes(gross decimal.Decimal) TaxEstimate {
	inss := gross.Mul(inssRate).Round(2)
	fgts := gross.Mul(fgtsRate).Round(2)
	employer := gross.Mul(employerInssRate).Round(2)
	irrf := irrfFor(gross)

	return TaxEstimate{
		Gross:        gross,
		INSS:         inss,
		FGTS:         fgts,
		EmployerINSS: employer,
		IRRF:         irrf,
		Net:          gross.Sub(inss).Sub(irrf),
	}
}

func irrfFor(amount decimal.Decimal) decimal.Decimal {
	for _, b := range irrfBrackets[:len(irrfBrackets)-1] {
		if amount.LessThanOrEqual(b.Ceiling) {
			if b.Rate.IsZero() {
				return decimal.Zero
			}
			return amount.Mul(b.Rate).Sub(b.Deduction).Round(2)
		}
	}
	top := irrfBrackets[len(irrfBrackets)-1]
	return amount.Mul(top.Rate).Sub(top.Deduction).Round(2)
}

// Stats aggregates paid convocations for one participant.
type Stats struct {
	TotalEarnings     decimal.Decimal `json:"totalEarnings"`
	TotalHours        int             `json:"totalHours"`
	MonthlyEarnings   decimal.Decimal `json:"monthlyEarnings"` // current calendar month of now
	TotalJobs         int             `json:"totalJobs"`
	AverageHourlyRate decimal.Decimal `json:"averageHourlyRate"`
}

// Aggregate computes payment statistics over a set of paid convocations.
// Records missing timestamps or totals are skipped rather than failing the
// whole aggregation.
func Aggregate(convocations []model.Convocation, now time.Time) Stats {
	stats := Stats{
		TotalEarnings:     decimal.Zero,
		MonthlyEarnings:   decimal.Zero,
		AverageHourlyRate: decimal.Zero,
	}

	for _, c := range convocations {
		if c.TotalPayment == nil || c.StartTime == nil || c.EndTime == nil {
			continue
		}
		hours, err := HoursWorked(*c.StartTime, *c.EndTime)
		if err != nil {
			continue
		}

		stats.TotalJobs++
		stats.TotalHours += hours
		stats.TotalEarnings = stats.TotalEarnings.Add(*c.TotalPayment)

		if c.EndTime.Year() == now.Year() && c.EndTime.Month() == now.Month() {
			stats.MonthlyEarnings = stats.MonthlyEarnings.Add(*c.TotalPayment)
		}
	}

	if stats.TotalHours > 0 {
		stats.AverageHourlyRate = stats.TotalEarnings.
			Div(decimal.NewFromInt(int64(stats.TotalHours))).Round(2)
	}
	return stats
}
