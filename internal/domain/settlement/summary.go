package settlement

import (
	"sort"

	"github.com/shopspring/decimal"
)

func (t PeriodTotals) add(day DayAggregate) PeriodTotals {
	t.GrossIn = t.GrossIn.Add(day.GrossIn)
	t.GrossOut = t.GrossOut.Add(day.GrossOut)
	t.Net = t.Net.Add(day.Net)
	t.Terminal = t.Terminal.Add(day.Terminal)
	t.CashOnly = t.CashOnly.Add(day.CashOnly)
	for _, comp := range day.Compensation {
		t.Payroll = t.Payroll.Add(comp.Total())
	}
	return t
}

func (s EmployeeSummary) add(comp Compensation) EmployeeSummary {
	s.DaysCredited++
	s.FixedEarned = s.FixedEarned.Add(comp.Fixed)
	s.PercentEarned = s.PercentEarned.Add(comp.Percent)
	return s
}

func (s EmployeeSummary) settle(paid decimal.Decimal) EmployeeSummary {
	s.TotalEarned = s.FixedEarned.Add(s.PercentEarned)
	s.Paid = paid
	s.Outstanding = s.TotalEarned.Sub(paid)
	return s
}

// Summarize folds days into a period report and reconciles every employee
// against the ledger. The result does not depend on the order of days.
func Summarize(period Period, days []DayAggregate, ledger PayoutLedger, roster Roster) PeriodReport {
	ordered := make([]DayAggregate, len(days))
	copy(ordered, days)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	var totals PeriodTotals
	byEmployee := make(map[string]EmployeeSummary)
	for _, day := range ordered {
		totals = totals.add(day)
		for employeeID, comp := range day.Compensation {
			byEmployee[employeeID] = byEmployee[employeeID].add(comp)
		}
	}

	anchor := period.Anchor()
	for _, employeeID := range ledger.Employees(anchor) {
		if _, ok := byEmployee[employeeID]; !ok {
			byEmployee[employeeID] = EmployeeSummary{}
		}
	}

	employees := make([]EmployeeSummary, 0, len(byEmployee))
	for employeeID, summary := range byEmployee {
		employee := roster[employeeID]
		summary.EmployeeID = employeeID
		summary.Name = employee.Name
		summary.Role = employee.Role
		summary = summary.settle(ledger.Paid(employeeID, anchor))
		totals.Paid = totals.Paid.Add(summary.Paid)
		employees = append(employees, summary)
	}
	sort.Slice(employees, func(i, j int) bool {
		if employees[i].Name != employees[j].Name {
			return employees[i].Name < employees[j].Name
		}
		return employees[i].EmployeeID < employees[j].EmployeeID
	})
	totals.Profit = totals.Net.Sub(totals.Payroll)

	return PeriodReport{
		Period:    period,
		Days:      ordered,
		Totals:    totals,
		Employees: employees,
	}
}
