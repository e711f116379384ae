package quota

import "time"

// DateLayout is the calendar-date format exchanged with the usage store.
const DateLayout = "2006-01-02"

// UntilLocalMidnight returns the time remaining until the next midnight in
// t's location. This is the retry-after for a daily quota rejection.
func UntilLocalMidnight(t time.Time) time.Duration {
	next := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
	return next.Sub(t)
}

// UntilNextLocalMonth returns the time remaining until the first of the next
// month, midnight, in t's location. This is the retry-after for a monthly
// quota rejection.
func UntilNextLocalMonth(t time.Time) time.Duration {
	next := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	return next.Sub(t)
}

func sameLocalDay(date time.Time, localDate string) bool {
	return date.Format(DateLayout) == localDate
}

func sameLocalMonth(date time.Time, localDate string) bool {
	return date.Format("2006-01") == localDate[:7]
}
