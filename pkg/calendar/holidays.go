package calendar

import (
	"sync"
	"time"
)

type dateKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dateKey {
	y, m, d := t.Date()
	return dateKey{y, m, d}
}

// holidaySet lazily computes full-day NYSE closures per year.
type holidaySet struct {
	mu    sync.Mutex
	years map[int]map[dateKey]struct{}
	extra map[dateKey]struct{}
}

func newHolidaySet() *holidaySet {
	return &holidaySet{
		years: make(map[int]map[dateKey]struct{}),
		extra: make(map[dateKey]struct{}),
	}
}

func (h *holidaySet) add(t time.Time) {
	h.mu.Lock()
	h.extra[keyOf(t)] = struct{}{}
	h.mu.Unlock()
}

func (h *holidaySet) contains(local time.Time) bool {
	k := keyOf(local)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.extra[k]; ok {
		return true
	}
	days, ok := h.years[k.year]
	if !ok {
		days = make(map[dateKey]struct{})
		for _, d := range nyseHolidays(k.year) {
			days[keyOf(d)] = struct{}{}
		}
		h.years[k.year] = days
	}
	_, hit := days[k]
	return hit
}

// nyseHolidays lists the observed full-day closures for year.
func nyseHolidays(year int) []time.Time {
	date := func(m time.Month, d int) time.Time { return time.Date(year, m, d, 0, 0, 0, 0, time.UTC) }

	out := []time.Time{
		newYears(year),
		nthWeekday(year, time.January, time.Monday, 3),
		nthWeekday(year, time.February, time.Monday, 3),
		easter(year).AddDate(0, 0, -2),
		lastWeekday(year, time.May, time.Monday),
		observed(date(time.July, 4)),
		nthWeekday(year, time.September, time.Monday, 1),
		nthWeekday(year, time.November, time.Thursday, 4),
		observed(date(time.December, 25)),
	}
	if year >= 2022 {
		out = append(out, observed(date(time.June, 19)))
	}
	return out
}

func newYears(year int) time.Time {
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if d.Weekday() == time.Sunday {
		return d.AddDate(0, 0, 1)
	}
	// Saturday Jan 1 is not made up on Friday Dec 31.
	return d
}

// observed shifts weekend holidays to the adjacent weekday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(wd) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easter computes Western Easter Sunday (anonymous Gregorian algorithm).
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
