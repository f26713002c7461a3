package booking

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/availability"
	"github.com/michalsegal11/your-digital-companion/libs/policy"
	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/scheduling"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/storage"
)

// IntervalLister returns booked intervals intersecting [from, to).
type IntervalLister interface {
	ListBookedIntervals(ctx context.Context, from, to time.Time) ([]storage.BookedInterval, error)
}

// Planner joins the salon configuration with stored bookings to produce slots.
type Planner struct {
	provider scheduling.Provider
	bookings IntervalLister
	now      func() time.Time
}

func NewPlanner(provider scheduling.Provider, bookings IntervalLister, now func() time.Time) *Planner {
	if now == nil {
		now = time.Now
	}
	return &Planner{provider: provider, bookings: bookings, now: now}
}

func (p *Planner) Now() time.Time { return p.now() }

// Snapshot fetches the configuration for one request.
func (p *Planner) Snapshot(ctx context.Context) (salonconfig.Snapshot, error) {
	snap, err := p.provider.Snapshot(ctx)
	if err != nil {
		return salonconfig.Snapshot{}, fmt.Errorf("load salon config: %w", err)
	}
	return snap, nil
}

// Day is the availability of one date for one service.
type Day struct {
	Date            schedule.Date
	ServiceID       string
	ServiceName     string
	DurationMinutes int
	WorkingHours    string
	Slots           []availability.TimeSlot
}

// Day computes slots for date. Unknown services use the default duration.
// Appointments listed in exclude do not block any slot, so a booking being moved never collides with itself.
func (p *Planner) Day(ctx context.Context, snap salonconfig.Snapshot, date schedule.Date, serviceID string, exclude ...string) (Day, error) {
	duration := availability.ServiceDurations(snap.Durations()).Lookup(serviceID)
	return p.DayWithDuration(ctx, snap, date, serviceID, duration, exclude...)
}

// DayWithDuration is Day for a caller that already knows how long the appointment runs.
func (p *Planner) DayWithDuration(ctx context.Context, snap salonconfig.Snapshot, date schedule.Date, serviceID string, durationMinutes int, exclude ...string) (Day, error) {
	loc := snap.Location()
	cal := snap.Calendar()
	if durationMinutes <= 0 {
		durationMinutes = availability.DefaultServiceDuration
	}

	day := Day{
		Date:            date,
		ServiceID:       serviceID,
		DurationMinutes: durationMinutes,
		WorkingHours:    cal.Describe(date),
	}
	if svc, ok := snap.Service(serviceID); ok {
		day.ServiceName = svc.Name
	}

	var bookings []availability.Booking
	if cal.IsWorkingDay(date) {
		intervals, err := p.bookings.ListBookedIntervals(ctx, date.At(0, loc), date.AddDays(1).At(0, loc))
		if err != nil {
			return Day{}, fmt.Errorf("list bookings: %w", err)
		}
		bookings = ToBookings(withoutAppointments(intervals, exclude), loc)
	}

	day.Slots = availability.NewGenerator(cal, loc, p.now).Generate(date, durationMinutes, bookings)
	return day, nil
}

// CancellationPolicy evaluates deadlines in the salon's timezone.
func (p *Planner) CancellationPolicy(snap salonconfig.Snapshot) *policy.CancellationPolicy {
	return policy.NewCancellationPolicy(snap.Location(), p.now)
}

func withoutAppointments(intervals []storage.BookedInterval, ids []string) []storage.BookedInterval {
	if len(ids) == 0 {
		return intervals
	}
	out := intervals[:0:0]
	for _, iv := range intervals {
		if !slices.Contains(ids, iv.AppointmentID) {
			out = append(out, iv)
		}
	}
	return out
}

// ToBookings converts stored intervals to wall-clock bookings in loc.
func ToBookings(intervals []storage.BookedInterval, loc *time.Location) []availability.Booking {
	out := make([]availability.Booking, 0, len(intervals))
	for _, iv := range intervals {
		start := iv.Start.In(loc)
		out = append(out, availability.Booking{
			Date:            schedule.DateOf(start),
			Start:           schedule.ClockOf(start),
			DurationMinutes: int(iv.End.Sub(iv.Start) / time.Minute),
		})
	}
	return out
}

// LocalDateTime splits t into the salon's date and time of day.
func LocalDateTime(t time.Time, loc *time.Location) (schedule.Date, schedule.Clock) {
	local := t.In(loc)
	return schedule.DateOf(local), schedule.ClockOf(local)
}
