package sys

import (
	"time"

	"github.com/dungeonspells/dsvm/internal/cpu"
)

// Dates travel as yyyymmdd longs, times as nanoseconds since midnight. Both
// encodings are dense enough for the date arithmetic the language exposes
// and trivially printable.

const nsPerDay = cpu.Lon(24 * 60 * 60 * 1e9)

// DateValid reports whether year, month and day name a calendar date.
func DateValid(year, month, day cpu.Lon) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
	return cpu.Lon(t.Year()) == year && cpu.Lon(t.Month()) == month && cpu.Lon(t.Day()) == day
}

// DateValue packs a validated date.
func DateValue(year, month, day cpu.Lon) cpu.Lon {
	return year*10000 + month*100 + day
}

func dateTime(date cpu.Lon) time.Time {
	return time.Date(int(date/10000), time.Month((date/100)%100), int(date%100), 0, 0, 0, 0, time.UTC)
}

// DateIsValid checks a packed date.
func DateIsValid(date cpu.Lon) bool {
	return DateValid(date/10000, (date/100)%100, date%100)
}

// BegOfMonth returns the first day of the date's month.
func BegOfMonth(date cpu.Lon) cpu.Lon {
	return (date/100)*100 + 1
}

// EndOfMonth returns the last day of the date's month.
func EndOfMonth(date cpu.Lon) cpu.Lon {
	t := dateTime(date)
	last := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	return DateValue(cpu.Lon(last.Year()), cpu.Lon(last.Month()), cpu.Lon(last.Day()))
}

// DatePart extracts year (1), month (2) or day (3).
func DatePart(date, part cpu.Lon) cpu.Lon {
	switch part {
	case 1:
		return date / 10000
	case 2:
		return (date / 100) % 100
	case 3:
		return date % 100
	}
	return 0
}

// DateAdd shifts a date by days.
func DateAdd(date, days cpu.Lon) cpu.Lon {
	t := dateTime(date).AddDate(0, 0, int(days))
	return DateValue(cpu.Lon(t.Year()), cpu.Lon(t.Month()), cpu.Lon(t.Day()))
}

// DateDiff returns the day distance between two dates.
func DateDiff(d1, d2 cpu.Lon) cpu.Lon {
	return cpu.Lon(dateTime(d1).Sub(dateTime(d2)).Hours() / 24)
}

// TimeValid reports whether hour, minute and second name a wall time.
func TimeValid(hour, minute, second cpu.Lon) bool {
	return hour >= 0 && hour < 24 && minute >= 0 && minute < 60 && second >= 0 && second < 60
}

// TimeValue packs a wall time as nanoseconds since midnight.
func TimeValue(hour, minute, second cpu.Lon) cpu.Lon {
	return ((hour*60+minute)*60 + second) * 1e9
}

// TimeIsValid checks a packed time.
func TimeIsValid(t cpu.Lon) bool {
	return t >= 0 && t < nsPerDay
}

// TimePart extracts hour (1), minute (2), second (3) or nanosecond (4).
func TimePart(t, part cpu.Lon) cpu.Lon {
	switch part {
	case 1:
		return t / 1e9 / 3600
	case 2:
		return (t / 1e9 / 60) % 60
	case 3:
		return (t / 1e9) % 60
	case 4:
		return t % 1e9
	}
	return 0
}

// TimeAdd shifts a time by seconds, wrapping at midnight.
func TimeAdd(t, seconds cpu.Lon) cpu.Lon {
	return NanoSecAdd(t, seconds*1e9)
}

// NanoSecAdd shifts a time by nanoseconds, wrapping at midnight.
func NanoSecAdd(t, nanos cpu.Lon) cpu.Lon {
	v := (t + nanos) % nsPerDay
	if v < 0 {
		v += nsPerDay
	}
	return v
}

// TimeDiff returns the nanosecond distance between two times.
func TimeDiff(t1, t2 cpu.Lon) cpu.Lon {
	return t1 - t2
}

// GetDate returns the current date.
func GetDate() cpu.Lon {
	now := time.Now()
	return DateValue(cpu.Lon(now.Year()), cpu.Lon(now.Month()), cpu.Lon(now.Day()))
}

// GetTime returns the current wall time.
func GetTime() cpu.Lon {
	now := time.Now()
	return TimeValue(cpu.Lon(now.Hour()), cpu.Lon(now.Minute()), cpu.Lon(now.Second())) + cpu.Lon(now.Nanosecond())
}
