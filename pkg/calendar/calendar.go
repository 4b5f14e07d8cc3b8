package calendar

import (
	"fmt"
	"time"
)

// Session is a phase of the US equity trading day.
type Session int

const (
	Closed Session = iota
	PreMarket
	Regular
	AfterHours
)

func (s Session) String() string {
	switch s {
	case PreMarket:
		return "pre_market"
	case Regular:
		return "regular"
	case AfterHours:
		return "after_hours"
	default:
		return "closed"
	}
}

// Session boundaries as minutes after midnight, America/New_York.
const (
	preMarketOpen  = 4 * 60
	regularOpen    = 9*60 + 30
	regularClose   = 16 * 60
	afterHoursEnd  = 20 * 60
	maxLookbackDay = 3660
)

// Calendar answers session questions for NYSE-listed equities.
type Calendar struct {
	loc      *time.Location
	now      func() time.Time
	holidays *holidaySet
}

// Option customises a Calendar.
type Option func(*Calendar)

// WithClock injects the time source; tests pin it to a fixed instant.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) {
		if now != nil {
			c.now = now
		}
	}
}

// WithExtraHolidays adds ad-hoc closures such as national days of mourning.
func WithExtraHolidays(dates ...time.Time) Option {
	return func(c *Calendar) {
		for _, d := range dates {
			c.holidays.add(d)
		}
	}
}

// New loads the America/New_York zone and builds a calendar.
func New(opts ...Option) (*Calendar, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("calendar: load America/New_York: %w", err)
	}
	c := &Calendar{
		loc:      loc,
		now:      time.Now,
		holidays: newHolidaySet(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MustNew is New for program start-up.
func MustNew(opts ...Option) *Calendar {
	c, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Location returns the exchange time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Now returns the current instant from the injected clock.
func (c *Calendar) Now() time.Time { return c.now() }

// IsTradingDay reports whether the exchange opens on t's local date.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays.contains(local)
}

// IsHoliday reports whether t's local date is an exchange holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	return c.holidays.contains(t.In(c.loc))
}

// SessionAt classifies t.
func (c *Calendar) SessionAt(t time.Time) Session {
	if !c.IsTradingDay(t) {
		return Closed
	}
	local := t.In(c.loc)
	m := local.Hour()*60 + local.Minute()
	switch {
	case m >= preMarketOpen && m < regularOpen:
		return PreMarket
	case m >= regularOpen && m < regularClose:
		return Regular
	case m >= regularClose && m < afterHoursEnd:
		return AfterHours
	default:
		return Closed
	}
}

// CurrentSession classifies the present instant.
func (c *Calendar) CurrentSession() Session {
	return c.SessionAt(c.now())
}

// IsTradingNow reports whether any session, extended hours included, is live.
func (c *Calendar) IsTradingNow() bool {
	return c.CurrentSession() != Closed
}

// SessionStart returns the pre-market open of t's local trading date.
func (c *Calendar) SessionStart(t time.Time) time.Time {
	local := t.In(c.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc).Add(preMarketOpen * time.Minute).UTC()
}

// CurrentSessionStart returns the start of today's session when today is a
// trading day and 04:00 has passed, otherwise the start of the most recent one.
func (c *Calendar) CurrentSessionStart() time.Time {
	return c.TradingSessionsAgo(1)
}

// TradingSessionsAgo returns the start of the n-th most recent trading
// session. Today counts as 1 once its pre-market has opened. Weekends and
// holidays are skipped.
func (c *Calendar) TradingSessionsAgo(n int) time.Time {
	if n < 1 {
		n = 1
	}
	now := c.now()
	day := now.In(c.loc)
	if now.Before(c.SessionStart(now)) {
		day = day.AddDate(0, 0, -1)
	}
	found := 0
	for i := 0; i < maxLookbackDay; i++ {
		if c.IsTradingDay(day) {
			found++
			if found == n {
				return c.SessionStart(day)
			}
		}
		day = day.AddDate(0, 0, -1)
	}
	return c.SessionStart(day)
}

// PreviousTradingDay returns the local date of the trading day before t.
func (c *Calendar) PreviousTradingDay(t time.Time) time.Time {
	day := t.In(c.loc).AddDate(0, 0, -1)
	for i := 0; i < maxLookbackDay && !c.IsTradingDay(day); i++ {
		day = day.AddDate(0, 0, -1)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// DailyClose stamps a daily bar's date at the 16:00 local close.
func (c *Calendar) DailyClose(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 16, 0, 0, 0, c.loc).UTC()
}
