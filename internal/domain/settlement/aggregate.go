package settlement

// AggregateDays returns one aggregate for every date in period, in date order.
// Dates without records come back zero-valued with an empty credited set.
func AggregateDays(period Period, adapter RecordAdapter) ([]DayAggregate, error) {
	if period.End.Before(period.Start) {
		return nil, ErrInvalidPeriod
	}
	dates := period.Days()
	days := make([]DayAggregate, 0, len(dates))
	for _, date := range dates {
		days = append(days, adapter.Aggregate(date))
	}
	return days, nil
}
