package schedule

import (
	"strings"
)

// Period groups slots for display.
type Period string

const (
	Morning Period = "morning"
	Evening Period = "evening"
)

// ClosedMarker is what Describe returns for a day without shifts.
const ClosedMarker = "closed"

// BlockedDate closes a single day regardless of its weekday.
type BlockedDate struct {
	Date   Date   `json:"date"`
	Reason string `json:"reason,omitempty"`
}

// Calendar answers which shifts are open on a given date.
type Calendar struct {
	template WeeklyTemplate
	blocked  map[Date]string
}

func NewCalendar(template WeeklyTemplate, blocked ...BlockedDate) *Calendar {
	c := &Calendar{template: template, blocked: make(map[Date]string, len(blocked))}
	for _, b := range blocked {
		c.blocked[b.Date] = b.Reason
	}
	return c
}

func (c *Calendar) Template() WeeklyTemplate { return c.template }

// ShiftsFor returns the shifts open on date, in configured order. Closed or blocked days yield nil.
func (c *Calendar) ShiftsFor(date Date) []Shift {
	if _, ok := c.blocked[date]; ok {
		return nil
	}
	shifts := c.template.Day(date.Weekday()).Shifts
	if len(shifts) == 0 {
		return nil
	}
	return shifts
}

func (c *Calendar) IsWorkingDay(date Date) bool {
	return len(c.ShiftsFor(date)) > 0
}

// Blocked reports whether date was closed explicitly, with the reason given.
func (c *Calendar) Blocked(date Date) (string, bool) {
	reason, ok := c.blocked[date]
	return reason, ok
}

func (c *Calendar) Classify(shift Shift) Period {
	if shift.Start >= EveningStart {
		return Evening
	}
	return Morning
}

func (c *Calendar) HasEveningShift(date Date) bool {
	for _, s := range c.ShiftsFor(date) {
		if c.Classify(s) == Evening {
			return true
		}
	}
	return false
}

// Describe renders the day's hours as "HH:mm - HH:mm | HH:mm - HH:mm".
func (c *Calendar) Describe(date Date) string {
	shifts := c.ShiftsFor(date)
	if len(shifts) == 0 {
		return ClosedMarker
	}
	parts := make([]string, 0, len(shifts))
	for _, s := range shifts {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " | ")
}
