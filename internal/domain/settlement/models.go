package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

type Employee struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Role        string          `json:"role"`
	FixedRate   decimal.Decimal `json:"fixedRate"`
	PercentRate decimal.Decimal `json:"percentRate"`
}

// SalesRecord is an order or a return. Returns carry positive amounts and are
// subtracted by the sales adapter.
type SalesRecord struct {
	ID        string          `json:"id"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedBy string          `json:"createdBy"`
	OrderType string          `json:"orderType,omitempty"`
}

type ShiftAssignment struct {
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	EmployeeIDs []string  `json:"employeeIds"`
}

type CashRecord struct {
	ID             string          `json:"id"`
	Date           time.Time       `json:"date"`
	ShopID         string          `json:"shopId"`
	TotalCash      decimal.Decimal `json:"totalCash"`
	TerminalAmount decimal.Decimal `json:"terminalAmount"`
	CashAmount     decimal.Decimal `json:"cashAmount"`
	Expenses       decimal.Decimal `json:"expenses"`
	BaristaID      string          `json:"baristaId"`
}

type Payout struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employeeId"`
	AnchorDate time.Time       `json:"anchorDate"`
	Amount     decimal.Decimal `json:"amount"`
	Pipeline   string          `json:"pipeline"`
	ShopID     string          `json:"shopId,omitempty"`
	Note       string          `json:"note,omitempty"`
	RecordedBy string          `json:"recordedBy,omitempty"`
	PaidAt     time.Time       `json:"paidAt"`
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Compensation is one employee's earnings for one day.
type Compensation struct {
	Fixed   decimal.Decimal `json:"fixed"`
	Percent decimal.Decimal `json:"percent"`
}

func (c Compensation) Total() decimal.Decimal {
	return c.Fixed.Add(c.Percent)
}

type DayAggregate struct {
	Date         time.Time               `json:"date"`
	GrossIn      decimal.Decimal         `json:"grossIn"`
	GrossOut     decimal.Decimal         `json:"grossOut"`
	Net          decimal.Decimal         `json:"net"`
	Credited     []string                `json:"credited"`
	Compensation map[string]Compensation `json:"compensation"`
	Terminal     decimal.Decimal         `json:"terminal"`
	CashOnly     decimal.Decimal         `json:"cashOnly"`
	Records      int                     `json:"records"`
}

type PeriodTotals struct {
	GrossIn  decimal.Decimal `json:"grossIn"`
	GrossOut decimal.Decimal `json:"grossOut"`
	Net      decimal.Decimal `json:"net"`
	Payroll  decimal.Decimal `json:"payroll"`
	Profit   decimal.Decimal `json:"profit"`
	Terminal decimal.Decimal `json:"terminal"`
	CashOnly decimal.Decimal `json:"cashOnly"`
	Paid     decimal.Decimal `json:"paid"`
}

type EmployeeSummary struct {
	EmployeeID    string          `json:"employeeId"`
	Name          string          `json:"name"`
	Role          string          `json:"role"`
	DaysCredited  int             `json:"daysCredited"`
	FixedEarned   decimal.Decimal `json:"fixedEarned"`
	PercentEarned decimal.Decimal `json:"percentEarned"`
	TotalEarned   decimal.Decimal `json:"totalEarned"`
	Paid          decimal.Decimal `json:"paid"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

type CreatorTotal struct {
	EmployeeID string          `json:"employeeId"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count"`
}

type OrderTypeTotal struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

type PeriodReport struct {
	Period     Period            `json:"period"`
	Days       []DayAggregate    `json:"days"`
	Totals     PeriodTotals      `json:"totals"`
	Employees  []EmployeeSummary `json:"employees"`
	Creators   []CreatorTotal    `json:"creators,omitempty"`
	OrderTypes []OrderTypeTotal  `json:"orderTypes,omitempty"`
}

// Employee returns the summary row for employeeID.
func (r PeriodReport) Employee(employeeID string) (EmployeeSummary, bool) {
	for _, summary := range r.Employees {
		if summary.EmployeeID == employeeID {
			return summary, true
		}
	}
	return EmployeeSummary{}, false
}
