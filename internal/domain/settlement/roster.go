package settlement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Roster indexes the employees supplied for one computation.
type Roster map[string]Employee

func NewRoster(employees []Employee) (Roster, error) {
	roster := make(Roster, len(employees))
	for _, employee := range employees {
		if employee.PercentRate.IsNegative() || employee.PercentRate.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: employee %q percent %s", ErrInvalidRate, employee.ID, employee.PercentRate)
		}
		if employee.FixedRate.IsNegative() {
			return nil, fmt.Errorf("%w: employee %q fixed %s", ErrInvalidRate, employee.ID, employee.FixedRate)
		}
		roster[employee.ID] = employee
	}
	return roster, nil
}

func (r Roster) require(employeeID, source string, date time.Time) error {
	if _, ok := r[employeeID]; !ok {
		return &DanglingReferenceError{EmployeeID: employeeID, Date: Day(date), Source: source}
	}
	return nil
}
