package availability

import (
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

const (
	// StepMinutes is the slot granularity, independent of service duration.
	StepMinutes = 15

	// DefaultServiceDuration is used for unknown services and non-positive durations.
	DefaultServiceDuration = 15
)

// Booking is an already committed appointment occupying [Start, Start+DurationMinutes) on Date.
type Booking struct {
	Date            schedule.Date
	Start           schedule.Clock
	DurationMinutes int
}

func (b Booking) End() schedule.Clock { return b.Start.Add(b.DurationMinutes) }

// TimeSlot is one candidate start time. Unavailable slots are kept so callers can render them.
type TimeSlot struct {
	Time      string          `json:"time"`
	Available bool            `json:"available"`
	Shift     schedule.Period `json:"shift"`
}

// Generator derives a day's slots from the calendar.
type Generator struct {
	calendar *schedule.Calendar
	loc      *time.Location
	now      func() time.Time
}

// NewGenerator returns a generator evaluating "today" and "past" in loc. A nil now uses time.Now.
func NewGenerator(calendar *schedule.Calendar, loc *time.Location, now func() time.Time) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{calendar: calendar, loc: loc, now: now}
}

// Generate returns every slot of date for a service of durationMinutes, shift by shift in
// configured order. A slot is unavailable when it overlaps a booking on the same date or, on
// today's date, starts before now. Closed days produce no slots.
func (g *Generator) Generate(date schedule.Date, durationMinutes int, bookings []Booking) []TimeSlot {
	shifts := g.calendar.ShiftsFor(date)
	if len(shifts) == 0 {
		return []TimeSlot{}
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultServiceDuration
	}

	now := g.now().In(g.loc)
	today := schedule.DateOf(now) == date

	sameDay := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Date == date {
			sameDay = append(sameDay, b)
		}
	}

	var slots []TimeSlot
	for _, shift := range shifts {
		period := g.calendar.Classify(shift)
		for cursor := shift.Start; ; cursor = cursor.Add(StepMinutes) {
			slotEnd := cursor.Add(durationMinutes)
			if slotEnd > shift.End {
				break
			}
			past := today && date.At(cursor, g.loc).Before(now)
			slots = append(slots, TimeSlot{
				Time:      cursor.String(),
				Available: !past && !overlapsAny(cursor, slotEnd, sameDay),
				Shift:     period,
			})
		}
	}
	if slots == nil {
		return []TimeSlot{}
	}
	return slots
}

func overlapsAny(start, end schedule.Clock, bookings []Booking) bool {
	for _, b := range bookings {
		// [start,end) and [b.Start,b.End) overlap iff start < b.End && end > b.Start.
		if start < b.End() && end > b.Start {
			return true
		}
	}
	return false
}

// SelectableForReschedule keeps available slots plus the appointment's current time, which
// otherwise shows as taken by the appointment itself.
func SelectableForReschedule(slots []TimeSlot, current schedule.Clock) []TimeSlot {
	cur := current.String()
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Available || s.Time == cur {
			out = append(out, s)
		}
	}
	return out
}

// Available drops taken slots.
func Available(slots []TimeSlot) []TimeSlot {
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// IsBookable reports whether start is an emitted, available slot.
func IsBookable(slots []TimeSlot, start schedule.Clock) bool {
	want := start.String()
	for _, s := range slots {
		if s.Time == want {
			return s.Available
		}
	}
	return false
}

// ServiceDurations maps service ids to minutes.
type ServiceDurations map[string]int

// Lookup falls back to DefaultServiceDuration for unknown ids.
func (d ServiceDurations) Lookup(serviceID string) int {
	if m, ok := d[serviceID]; ok && m > 0 {
		return m
	}
	return DefaultServiceDuration
}
