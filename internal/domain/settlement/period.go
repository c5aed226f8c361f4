package settlement

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// LastDayOfMonth returns the number of days in month.
func LastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func validateMonth(month, year int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	if year < 1 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	return nil
}

// SplitMonth returns the two settlement periods of a month: 1..15 and 16..last.
func SplitMonth(month, year int) ([2]Period, error) {
	if err := validateMonth(month, year); err != nil {
		return [2]Period{}, err
	}
	m := time.Month(month)
	last := LastDayOfMonth(year, m)
	return [2]Period{
		{Start: Date(year, m, 1), End: Date(year, m, firstHalfEnd)},
		{Start: Date(year, m, firstHalfEnd+1), End: Date(year, m, last)},
	}, nil
}

// WeeklyPeriods returns 1..7, 8..14, 15..21 and 22..last.
func WeeklyPeriods(month, year int) ([]Period, error) {
	if err := validateMonth(month, year); err != nil {
		return nil, err
	}
	m := time.Month(month)
	last := LastDayOfMonth(year, m)
	return []Period{
		{Start: Date(year, m, 1), End: Date(year, m, 7)},
		{Start: Date(year, m, 8), End: Date(year, m, 14)},
		{Start: Date(year, m, 15), End: Date(year, m, 21)},
		{Start: Date(year, m, 22), End: Date(year, m, last)},
	}, nil
}

func PeriodsFor(mode string, month, year int) ([]Period, error) {
	switch mode {
	case "", PeriodModeSemimonthly:
		halves, err := SplitMonth(month, year)
		if err != nil {
			return nil, err
		}
		return halves[:], nil
	case PeriodModeWeekly:
		return WeeklyPeriods(month, year)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriodMode, mode)
	}
}

// PeriodContaining returns the period of the given mode that includes date.
func PeriodContaining(mode string, date time.Time) (Period, error) {
	periods, err := PeriodsFor(mode, int(date.Month()), date.Year())
	if err != nil {
		return Period{}, err
	}
	day := Day(date)
	for _, period := range periods {
		if period.Contains(day) {
			return period, nil
		}
	}
	return Period{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, day.Format(dateLayout))
}

// IsPeriodStart reports whether date opens a period under mode.
func IsPeriodStart(mode string, date time.Time) (bool, error) {
	period, err := PeriodContaining(mode, date)
	if err != nil {
		return false, err
	}
	return period.Start.Equal(Day(date)), nil
}

// ClosedPeriod returns the latest semimonthly period that has fully elapsed
// before today.
func ClosedPeriod(today time.Time) Period {
	day := Day(today)
	if day.Day() > firstHalfEnd {
		return Period{Start: Date(day.Year(), day.Month(), 1), End: Date(day.Year(), day.Month(), firstHalfEnd)}
	}
	prev := Date(day.Year(), day.Month(), 1).AddDate(0, 0, -1)
	return Period{Start: Date(prev.Year(), prev.Month(), firstHalfEnd+1), End: prev}
}

// Anchor is the date payouts for this period are filed under.
func (p Period) Anchor() time.Time {
	return p.Start
}

func (p Period) Contains(date time.Time) bool {
	day := Day(date)
	return !day.Before(p.Start) && !day.After(p.End)
}

// Days lists every date of the period in order.
func (p Period) Days() []time.Time {
	if p.End.Before(p.Start) {
		return nil
	}
	days := make([]time.Time, 0, int(p.End.Sub(p.Start).Hours()/24)+1)
	for current := p.Start; !current.After(p.End); current = current.AddDate(0, 0, 1) {
		days = append(days, current)
	}
	return days
}

func (p Period) String() string {
	return p.Start.Format(dateLayout) + ".." + p.End.Format(dateLayout)
}
