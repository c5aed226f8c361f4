package reports

import (
	"time"

	"backoffice/internal/domain/settlement"
)

// ReportSet is every period report of one month for one pipeline.
type ReportSet struct {
	Pipeline    string                    `json:"pipeline"`
	ShopID      string                    `json:"shopId,omitempty"`
	Month       int                       `json:"month"`
	Year        int                       `json:"year"`
	PeriodMode  string                    `json:"periodMode"`
	Periods     []settlement.PeriodReport `json:"periods"`
	GeneratedAt time.Time                 `json:"generatedAt"`
}

// Period returns the report whose period starts on anchor.
func (s ReportSet) Period(anchor time.Time) (settlement.PeriodReport, bool) {
	day := settlement.Day(anchor)
	for _, report := range s.Periods {
		if report.Period.Start.Equal(day) {
			return report, true
		}
	}
	return settlement.PeriodReport{}, false
}

type SalesSnapshot struct {
	Employees []settlement.Employee
	Orders    []settlement.SalesRecord
	Returns   []settlement.SalesRecord
	Shifts    []settlement.ShiftAssignment
	Payouts   []settlement.Payout
}

type CafeSnapshot struct {
	Employees []settlement.Employee
	Records   []settlement.CashRecord
	Payouts   []settlement.Payout
}

type Shop struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
