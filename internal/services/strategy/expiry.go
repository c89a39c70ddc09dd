package strategy

import "time"

// PickExpiry returns the earliest expiration whose days-to-expiry from now is within [minDTE, maxDTE].
func PickExpiry(expirations []time.Time, now time.Time, minDTE, maxDTE int) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	for _, e := range expirations {
		dte := daysBetween(now, e)
		if dte < minDTE || dte > maxDTE {
			continue
		}
		if !found || e.Before(best) {
			best, found = dateOf(e), true
		}
	}
	return best, found
}

// NextWeekly returns the next Friday at least five days after now.
func NextWeekly(now time.Time) time.Time {
	today := dateOf(now)
	d := today
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}
	if daysBetween(today, d) < 5 {
		d = d.AddDate(0, 0, 7)
	}
	return d
}

func daysBetween(from, to time.Time) int {
	return int(dateOf(to).Sub(dateOf(from)).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
