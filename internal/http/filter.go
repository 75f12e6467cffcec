package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Period selects which slice of the ledger a request covers.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodWeek    Period = "7d"
	PeriodCustom  Period = "custom"
)

// Filter describes one transaction query: a period plus its parameters.
type Filter struct {
	Period Period
	Year   int
	Month  time.Month
	From   time.Time
	To     time.Time
}

// ParseFilter reads filter parameters from the query string. Defaults
// to the current calendar month.
func ParseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	now := time.Now()

	period := Period(strings.TrimSpace(q.Get("period")))
	if period == "" {
		period = PeriodMonthly
	}

	switch period {
	case PeriodMonthly:
		f := Filter{Period: PeriodMonthly, Year: now.Year(), Month: now.Month()}
		if v := strings.TrimSpace(q.Get("year")); v != "" {
			year, err := strconv.Atoi(v)
			if err != nil || year < 1970 || year > 9999 {
				return Filter{}, fmt.Errorf("invalid year %q", v)
			}
			f.Year = year
		}
		if v := strings.TrimSpace(q.Get("month")); v != "" {
			month, err := strconv.Atoi(v)
			if err != nil || month < 1 || month > 12 {
				return Filter{}, fmt.Errorf("invalid month %q", v)
			}
			f.Month = time.Month(month)
		}
		return f, nil

	case PeriodWeek:
		return Filter{Period: PeriodWeek}, nil

	case PeriodCustom:
		from, err := time.Parse("2006-01-02", strings.TrimSpace(q.Get("from")))
		if err != nil {
			return Filter{}, fmt.Errorf("invalid from date %q", q.Get("from"))
		}
		to, err := time.Parse("2006-01-02", strings.TrimSpace(q.Get("to")))
		if err != nil {
			return Filter{}, fmt.Errorf("invalid to date %q", q.Get("to"))
		}
		if to.Before(from) {
			return Filter{}, fmt.Errorf("from date %s is after to date %s",
				from.Format("2006-01-02"), to.Format("2006-01-02"))
		}
		return Filter{Period: PeriodCustom, From: from, To: to}, nil

	default:
		return Filter{}, fmt.Errorf("invalid period %q", period)
	}
}

// Key returns the cache key for this filter scoped to one user.
func (f Filter) Key(email string) string {
	switch f.Period {
	case PeriodWeek:
		return fmt.Sprintf("7d:%s", email)
	case PeriodCustom:
		return fmt.Sprintf("custom:%s:%s:%s", email,
			f.From.Format("2006-01-02"), f.To.Format("2006-01-02"))
	default:
		return fmt.Sprintf("monthly:%s:%d-%02d", email, f.Year, int(f.Month))
	}
}
