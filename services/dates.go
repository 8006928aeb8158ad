package services

import "time"

// UTCDay truncates t to midnight of its UTC calendar day.
func UTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isSameDay(a, b time.Time) bool {
	return UTCDay(a).Equal(UTCDay(b))
}

func isYesterday(last, today time.Time) bool {
	return UTCDay(last).Equal(UTCDay(today).AddDate(0, 0, -1))
}
