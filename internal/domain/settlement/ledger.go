package settlement

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type ledgerKey struct {
	employeeID string
	anchor     time.Time
}

// PayoutLedger is a read-only index of payouts by employee and anchor date.
type PayoutLedger struct {
	paid    map[ledgerKey]decimal.Decimal
	anchors map[time.Time][]string
}

func NewPayoutLedger(payouts []Payout) PayoutLedger {
	ledger := PayoutLedger{
		paid:    make(map[ledgerKey]decimal.Decimal, len(payouts)),
		anchors: make(map[time.Time][]string),
	}
	for _, payout := range payouts {
		key := ledgerKey{employeeID: payout.EmployeeID, anchor: Day(payout.AnchorDate)}
		current, seen := ledger.paid[key]
		if !seen {
			ledger.anchors[key.anchor] = append(ledger.anchors[key.anchor], payout.EmployeeID)
		}
		ledger.paid[key] = current.Add(payout.Amount)
	}
	for anchor := range ledger.anchors {
		sort.Strings(ledger.anchors[anchor])
	}
	return ledger
}

// Paid sums the payouts filed under anchor for employeeID. Zero when none.
func (l PayoutLedger) Paid(employeeID string, anchor time.Time) decimal.Decimal {
	return l.paid[ledgerKey{employeeID: employeeID, anchor: Day(anchor)}]
}

// Employees lists, sorted, the employees holding payouts under anchor.
func (l PayoutLedger) Employees(anchor time.Time) []string {
	ids := l.anchors[Day(anchor)]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
