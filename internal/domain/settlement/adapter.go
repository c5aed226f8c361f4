package settlement

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// RecordAdapter reduces one pipeline's records to day aggregates and names
// the amount the percentage component is computed from.
type RecordAdapter interface {
	Pipeline() string
	Aggregate(date time.Time) DayAggregate
	PercentBase(day DayAggregate) decimal.Decimal
}

// CreatorBreakdown is implemented by adapters that can attribute inflow to
// the employee who entered it. The breakdown never affects pay.
type CreatorBreakdown interface {
	Creators(period Period) []CreatorTotal
}

// OrderTypeBreakdown is implemented by adapters whose inflow carries an order
// type. The breakdown never affects pay.
type OrderTypeBreakdown interface {
	OrderTypes(period Period) []OrderTypeTotal
}

type dayIndex struct {
	grossIn  decimal.Decimal
	grossOut decimal.Decimal
	terminal decimal.Decimal
	cashOnly decimal.Decimal
	credited map[string]struct{}
	records  int
}

func (d *dayIndex) credit(employeeID string) {
	if employeeID == "" {
		return
	}
	if d.credited == nil {
		d.credited = make(map[string]struct{})
	}
	d.credited[employeeID] = struct{}{}
}

func (d *dayIndex) aggregate(date time.Time) DayAggregate {
	agg := DayAggregate{
		Date:     date,
		GrossIn:  d.grossIn,
		GrossOut: d.grossOut,
		Net:      d.grossIn.Sub(d.grossOut),
		Credited: []string{},
		Terminal: d.terminal,
		CashOnly: d.cashOnly,
		Records:  d.records,
	}
	for employeeID := range d.credited {
		agg.Credited = append(agg.Credited, employeeID)
	}
	sort.Strings(agg.Credited)
	return agg
}

type tally struct {
	amount decimal.Decimal
	count  int
}

type dailyTallies map[time.Time]map[string]*tally

func (t dailyTallies) add(date time.Time, key string, amount decimal.Decimal) {
	day := Day(date)
	byKey, ok := t[day]
	if !ok {
		byKey = make(map[string]*tally)
		t[day] = byKey
	}
	entry, ok := byKey[key]
	if !ok {
		entry = &tally{}
		byKey[key] = entry
	}
	entry.amount = entry.amount.Add(amount)
	entry.count++
}

func (t dailyTallies) fold(period Period) map[string]tally {
	totals := make(map[string]tally)
	for _, date := range period.Days() {
		for key, entry := range t[date] {
			current := totals[key]
			current.amount = current.amount.Add(entry.amount)
			current.count += entry.count
			totals[key] = current
		}
	}
	return totals
}

// SalesAdapter aggregates orders and returns; shift assignments decide who is
// credited on a date.
type SalesAdapter struct {
	days       map[time.Time]*dayIndex
	creators   dailyTallies
	orderTypes dailyTallies
}

// NewSalesAdapter indexes the month's sales records by date. Return amounts
// are subtracted whatever their sign.
func NewSalesAdapter(orders, returns []SalesRecord, shifts []ShiftAssignment, roster Roster) (*SalesAdapter, error) {
	a := &SalesAdapter{
		days:       make(map[time.Time]*dayIndex),
		creators:   make(dailyTallies),
		orderTypes: make(dailyTallies),
	}
	for _, shift := range shifts {
		day := a.day(shift.Date)
		for _, employeeID := range shift.EmployeeIDs {
			if err := roster.require(employeeID, SourceShift, shift.Date); err != nil {
				return nil, err
			}
			day.credit(employeeID)
		}
	}
	for _, order := range orders {
		day := a.day(order.Date)
		day.grossIn = day.grossIn.Add(order.Amount)
		day.records++
		if order.CreatedBy != "" {
			a.creators.add(order.Date, order.CreatedBy, order.Amount)
		}
		orderType := order.OrderType
		if orderType == "" {
			orderType = OrderTypeUntyped
		}
		a.orderTypes.add(order.Date, orderType, order.Amount)
	}
	for _, ret := range returns {
		day := a.day(ret.Date)
		day.grossOut = day.grossOut.Add(ret.Amount.Abs())
		day.records++
	}
	return a, nil
}

func (a *SalesAdapter) day(date time.Time) *dayIndex {
	key := Day(date)
	day, ok := a.days[key]
	if !ok {
		day = &dayIndex{}
		a.days[key] = day
	}
	return day
}

func (a *SalesAdapter) Pipeline() string { return PipelineSales }

func (a *SalesAdapter) Aggregate(date time.Time) DayAggregate {
	key := Day(date)
	if day, ok := a.days[key]; ok {
		return day.aggregate(key)
	}
	return (&dayIndex{}).aggregate(key)
}

// PercentBase is the day's net sales.
func (a *SalesAdapter) PercentBase(day DayAggregate) decimal.Decimal {
	return day.Net
}

// Creators totals order amounts per creator for the period, largest first.
func (a *SalesAdapter) Creators(period Period) []CreatorTotal {
	totals := a.creators.fold(period)
	out := make([]CreatorTotal, 0, len(totals))
	for employeeID, total := range totals {
		out = append(out, CreatorTotal{EmployeeID: employeeID, Amount: total.amount, Count: total.count})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out
}

// OrderTypes totals order amounts per order type for the period, largest
// first. Orders without a type are grouped under OrderTypeUntyped.
func (a *SalesAdapter) OrderTypes(period Period) []OrderTypeTotal {
	totals := a.orderTypes.fold(period)
	out := make([]OrderTypeTotal, 0, len(totals))
	for orderType, total := range totals {
		out = append(out, OrderTypeTotal{Type: orderType, Amount: total.amount, Count: total.count})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// CafeAdapter aggregates the cash records of a single shop.
type CafeAdapter struct {
	shopID string
	days   map[time.Time]*dayIndex
}

// NewCafeAdapter rejects a second record for any (shop, date) pair among the
// supplied records and keeps only those belonging to shopID.
func NewCafeAdapter(shopID string, records []CashRecord, roster Roster) (*CafeAdapter, error) {
	type shopDay struct {
		shopID string
		date   time.Time
	}
	seen := make(map[shopDay]struct{}, len(records))
	a := &CafeAdapter{shopID: shopID, days: make(map[time.Time]*dayIndex)}
	for _, record := range records {
		key := shopDay{shopID: record.ShopID, date: Day(record.Date)}
		if _, dup := seen[key]; dup {
			return nil, &ConflictingRecordError{ShopID: record.ShopID, Date: key.date}
		}
		seen[key] = struct{}{}

		if record.ShopID != shopID {
			continue
		}
		if record.BaristaID != "" {
			if err := roster.require(record.BaristaID, SourceCash, record.Date); err != nil {
				return nil, err
			}
		}
		day := &dayIndex{
			grossIn:  record.TotalCash,
			grossOut: record.Expenses,
			terminal: record.TerminalAmount,
			cashOnly: record.CashAmount,
			records:  1,
		}
		day.credit(record.BaristaID)
		a.days[key.date] = day
	}
	return a, nil
}

func (a *CafeAdapter) ShopID() string { return a.shopID }

func (a *CafeAdapter) Pipeline() string { return PipelineCafe }

func (a *CafeAdapter) Aggregate(date time.Time) DayAggregate {
	key := Day(date)
	if day, ok := a.days[key]; ok {
		return day.aggregate(key)
	}
	return (&dayIndex{}).aggregate(key)
}

// PercentBase is the day's register total.
func (a *CafeAdapter) PercentBase(day DayAggregate) decimal.Decimal {
	return day.GrossIn
}
