package settlement

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPeriod             = errors.New("settlement period is invalid")
	ErrDanglingEmployeeReference = errors.New("record references an unknown employee")
	ErrConflictingRecord         = errors.New("conflicting records for the same shop and date")
	ErrMisfiledPayout            = errors.New("payout anchor date is not a period start")
	ErrInvalidRate               = errors.New("employee rate is out of range")
	ErrUnknownSplitPolicy        = errors.New("unknown percent split policy")
	ErrUnknownPeriodMode         = errors.New("unknown period mode")
)

type DanglingReferenceError struct {
	EmployeeID string
	Date       time.Time
	Source     string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s on %s references unknown employee %q", e.Source, e.Date.Format(dateLayout), e.EmployeeID)
}

func (e *DanglingReferenceError) Unwrap() error {
	return ErrDanglingEmployeeReference
}

type ConflictingRecordError struct {
	ShopID string
	Date   time.Time
}

func (e *ConflictingRecordError) Error() string {
	return fmt.Sprintf("shop %q has more than one cash record on %s", e.ShopID, e.Date.Format(dateLayout))
}

func (e *ConflictingRecordError) Unwrap() error {
	return ErrConflictingRecord
}
