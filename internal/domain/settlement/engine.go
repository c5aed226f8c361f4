package settlement

import (
	"fmt"
)

// Engine turns a month's record snapshot into period reports. It holds no
// state besides its calculator and is safe for concurrent use.
type Engine struct {
	calc Calculator
}

func NewEngine(calc Calculator) *Engine {
	if calc.Policy == "" {
		calc.Policy = SplitEqual
	}
	return &Engine{calc: calc}
}

func (e *Engine) Calculator() Calculator {
	return e.calc
}

// ComputeSalesPeriodReports builds the two semimonthly reports of the sales
// pipeline.
func (e *Engine) ComputeSalesPeriodReports(month, year int, orders, returns []SalesRecord, shifts []ShiftAssignment, employees []Employee, payouts []Payout) ([2]PeriodReport, error) {
	halves, err := SplitMonth(month, year)
	if err != nil {
		return [2]PeriodReport{}, err
	}
	reports, err := e.SalesReports(halves[:], orders, returns, shifts, employees, payouts)
	if err != nil {
		return [2]PeriodReport{}, err
	}
	return [2]PeriodReport{reports[0], reports[1]}, nil
}

// ComputeCafePeriodReports builds the two semimonthly reports for one shop.
func (e *Engine) ComputeCafePeriodReports(month, year int, shopID string, records []CashRecord, employees []Employee, payouts []Payout) ([2]PeriodReport, error) {
	halves, err := SplitMonth(month, year)
	if err != nil {
		return [2]PeriodReport{}, err
	}
	reports, err := e.CafeReports(halves[:], shopID, records, employees, payouts)
	if err != nil {
		return [2]PeriodReport{}, err
	}
	return [2]PeriodReport{reports[0], reports[1]}, nil
}

func (e *Engine) SalesReports(periods []Period, orders, returns []SalesRecord, shifts []ShiftAssignment, employees []Employee, payouts []Payout) ([]PeriodReport, error) {
	roster, err := NewRoster(employees)
	if err != nil {
		return nil, err
	}
	adapter, err := NewSalesAdapter(orders, returns, shifts, roster)
	if err != nil {
		return nil, err
	}
	return e.Run(periods, adapter, roster, payouts)
}

func (e *Engine) CafeReports(periods []Period, shopID string, records []CashRecord, employees []Employee, payouts []Payout) ([]PeriodReport, error) {
	roster, err := NewRoster(employees)
	if err != nil {
		return nil, err
	}
	adapter, err := NewCafeAdapter(shopID, records, roster)
	if err != nil {
		return nil, err
	}
	return e.Run(periods, adapter, roster, payouts)
}

// Run is the pipeline shared by every adapter. Periods must be contiguous
// and in order; payouts anchored outside them are ignored.
func (e *Engine) Run(periods []Period, adapter RecordAdapter, roster Roster, payouts []Payout) ([]PeriodReport, error) {
	if len(periods) == 0 {
		return nil, ErrInvalidPeriod
	}
	filed, err := filePayouts(periods, adapter, roster, payouts)
	if err != nil {
		return nil, err
	}
	ledger := NewPayoutLedger(filed)

	reports := make([]PeriodReport, 0, len(periods))
	for _, period := range periods {
		days, err := AggregateDays(period, adapter)
		if err != nil {
			return nil, err
		}
		for i := range days {
			comp, err := e.calc.Compute(days[i], adapter.PercentBase(days[i]), roster)
			if err != nil {
				return nil, err
			}
			days[i].Compensation = comp
		}
		report := Summarize(period, days, ledger, roster)
		if breakdown, ok := adapter.(CreatorBreakdown); ok {
			report.Creators = breakdown.Creators(period)
		}
		if breakdown, ok := adapter.(OrderTypeBreakdown); ok {
			report.OrderTypes = breakdown.OrderTypes(period)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

type shopScoped interface {
	ShopID() string
}

func filePayouts(periods []Period, adapter RecordAdapter, roster Roster, payouts []Payout) ([]Payout, error) {
	first, last := periods[0].Start, periods[len(periods)-1].End
	starts := make(map[int64]struct{}, len(periods))
	for _, period := range periods {
		starts[period.Start.Unix()] = struct{}{}
	}
	shopID := ""
	if scoped, ok := adapter.(shopScoped); ok {
		shopID = scoped.ShopID()
	}

	filed := make([]Payout, 0, len(payouts))
	for _, payout := range payouts {
		if payout.Pipeline != "" && payout.Pipeline != adapter.Pipeline() {
			continue
		}
		if shopID != "" && payout.ShopID != "" && payout.ShopID != shopID {
			continue
		}
		anchor := Day(payout.AnchorDate)
		if anchor.Before(first) || anchor.After(last) {
			continue
		}
		if _, ok := starts[anchor.Unix()]; !ok {
			return nil, fmt.Errorf("%w: payout %q anchored on %s", ErrMisfiledPayout, payout.ID, anchor.Format(dateLayout))
		}
		if err := roster.require(payout.EmployeeID, SourcePayout, anchor); err != nil {
			return nil, err
		}
		filed = append(filed, payout)
	}
	return filed, nil
}
