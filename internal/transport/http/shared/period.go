package shared

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MonthYear reads month and year query parameters, defaulting each to now.
func (v *Validator) MonthYear(r *http.Request, now time.Time) (int, int) {
	month, year := int(now.Month()), now.Year()
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("month")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 12 {
			v.Add("month", "must be an integer between 1 and 12")
		} else {
			month = parsed
		}
	}
	if raw := strings.TrimSpace(query.Get("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			v.Add("year", "must be a positive integer")
		} else {
			year = parsed
		}
	}
	return month, year
}
