package calendar

import (
	"time"
)

// Session tags a wall-clock instant with the market phase it falls in.
type Session string

const (
	SessionClosedWeekend Session = "CLOSED_WEEKEND"
	SessionClosedHoliday Session = "CLOSED_HOLIDAY"
	SessionClosed        Session = "CLOSED"
	SessionPreMarket     Session = "PRE_MARKET"
	SessionOpeningRange  Session = "OPENING_RANGE"
	SessionMorning       Session = "MORNING"
	SessionAfternoon     Session = "AFTERNOON"
	SessionPowerHour     Session = "POWER_HOUR"
)

// IsClosed reports whether no market activity is possible in this session.
func (s Session) IsClosed() bool {
	return s == SessionClosed || s == SessionClosedWeekend || s == SessionClosedHoliday
}

// IsTrading reports whether regular-hours candles are printing.
func (s Session) IsTrading() bool {
	switch s {
	case SessionOpeningRange, SessionMorning, SessionAfternoon, SessionPowerHour:
		return true
	}
	return false
}

// Minute-of-day boundaries in market-local time.
const (
	preMarketOpen = 240 // 04:00
	regularOpen   = 570 // 09:30
	openingEnd    = 600 // 10:00
	morningEnd    = 720 // 12:00
	afternoonEnd  = 780 // 13:00
	regularClose  = 960 // 16:00
	halfDayClose  = 780 // 13:00
)

// Calendar maps wall time to sessions and does trading-day arithmetic.
// Holiday and half-day sets are injected so the mapping stays a pure function
// of its inputs.
type Calendar struct {
	loc      *time.Location
	holidays map[string]bool
	halfDays map[string]bool
	now      func() time.Time
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithHolidays replaces the default holiday set (dates as "2006-01-02").
func WithHolidays(dates []string) Option {
	return func(c *Calendar) {
		c.holidays = make(map[string]bool, len(dates))
		for _, d := range dates {
			c.holidays[d] = true
		}
	}
}

// WithHalfDays replaces the default early-close set.
func WithHalfDays(dates []string) Option {
	return func(c *Calendar) {
		c.halfDays = make(map[string]bool, len(dates))
		for _, d := range dates {
			c.halfDays[d] = true
		}
	}
}

// WithClock overrides the wall-clock source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) { c.now = now }
}

// New builds a Calendar in the fixed market time zone. It falls back to a
// static UTC-5 zone if the tz database is unavailable.
func New(opts ...Option) *Calendar {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("ET", -5*60*60)
	}
	c := &Calendar{
		loc:      loc,
		holidays: defaultHolidays(),
		halfDays: defaultHalfDays(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calendar) dateKey(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

func (c *Calendar) closeMinute(t time.Time) int {
	if c.halfDays[c.dateKey(t)] {
		return halfDayClose
	}
	return regularClose
}

// Session returns the current market session.
func (c *Calendar) Session() Session {
	return c.SessionAt(c.now())
}

// SessionAt classifies an arbitrary instant. It never fails; every instant
// maps to exactly one session.
func (c *Calendar) SessionAt(t time.Time) Session {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return SessionClosedWeekend
	}
	if c.holidays[c.dateKey(local)] {
		return SessionClosedHoliday
	}

	m := local.Hour()*60 + local.Minute()
	closeAt := c.closeMinute(local)
	switch {
	case m < preMarketOpen || m >= closeAt:
		return SessionClosed
	case m < regularOpen:
		return SessionPreMarket
	case m < min(openingEnd, closeAt):
		return SessionOpeningRange
	case m < min(morningEnd, closeAt):
		return SessionMorning
	case m < min(afternoonEnd, closeAt):
		return SessionAfternoon
	default:
		return SessionPowerHour
	}
}

// IsTradingDay reports whether the date is neither a weekend nor a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	return !c.holidays[c.dateKey(local)]
}

// NextTradingDay returns the first trading day strictly after t.
func (c *Calendar) NextTradingDay(t time.Time) time.Time {
	return c.AddTradingDays(t, 1)
}

// AddTradingDays advances n trading days, skipping weekends and holidays.
// n must be non-negative; n=0 returns t unchanged.
func (c *Calendar) AddTradingDays(t time.Time, n int) time.Time {
	d := t.In(c.loc)
	for i := 0; i < n; i++ {
		d = d.AddDate(0, 0, 1)
		for !c.IsTradingDay(d) {
			d = d.AddDate(0, 0, 1)
		}
	}
	return d
}

// MinutesSinceOpen returns minutes elapsed since the 09:30 open, negative
// before the open.
func (c *Calendar) MinutesSinceOpen(t time.Time) int {
	local := t.In(c.loc)
	return local.Hour()*60 + local.Minute() - regularOpen
}

// MinutesToClose returns minutes until today's close (regular or half-day),
// negative after the close.
func (c *Calendar) MinutesToClose(t time.Time) int {
	local := t.In(c.loc)
	return c.closeMinute(local) - (local.Hour()*60 + local.Minute())
}

// IsFriday reports whether the current market-local day is a Friday. The
// scheduler gates its Friday-only ticker set on this.
func (c *Calendar) IsFriday() bool {
	return c.now().In(c.loc).Weekday() == time.Friday
}

// Location exposes the market time zone for callers that build local dates.
func (c *Calendar) Location() *time.Location {
	return c.loc
}
