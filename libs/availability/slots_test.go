package availability

import (
	"reflect"
	"testing"
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

var (
	monday   = schedule.Date{Year: 2026, Month: time.March, Day: 2}
	friday   = schedule.Date{Year: 2026, Month: time.March, Day: 6}
	morning  = schedule.Shift{Start: schedule.NewClock(9, 30), End: schedule.NewClock(14, 45)}
	evening  = schedule.Shift{Start: schedule.NewClock(21, 0), End: schedule.NewClock(23, 0)}
	mondayAt = func(h, m int) time.Time { return time.Date(2026, time.March, 2, h, m, 0, 0, time.UTC) }
)

func newTestGenerator(t *testing.T, now time.Time) *Generator {
	t.Helper()
	tpl := schedule.MustWeeklyTemplate(
		schedule.DaySchedule{Weekday: time.Monday, Shifts: []schedule.Shift{morning, evening}},
		schedule.DaySchedule{Weekday: time.Tuesday, Shifts: []schedule.Shift{morning}},
	)
	return NewGenerator(schedule.NewCalendar(tpl), time.UTC, func() time.Time { return now })
}

func times(slots []TimeSlot, period schedule.Period) []string {
	var out []string
	for _, s := range slots {
		if s.Shift == period {
			out = append(out, s.Time)
		}
	}
	return out
}

func TestGenerate_MondayAllAvailable(t *testing.T) {
	g := newTestGenerator(t, mondayAt(8, 0))
	slots := g.Generate(monday, 15, nil)

	m := times(slots, schedule.Morning)
	if len(m) != 21 || m[0] != "09:30" || m[len(m)-1] != "14:30" {
		t.Fatalf("unexpected morning slots %v", m)
	}
	e := times(slots, schedule.Evening)
	if len(e) != 8 || e[0] != "21:00" || e[len(e)-1] != "22:45" {
		t.Fatalf("unexpected evening slots %v", e)
	}
	if len(slots) != len(m)+len(e) {
		t.Fatalf("slots carry an unexpected period: %v", slots)
	}
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("expected %s to be available", s.Time)
		}
	}
	// Morning shift comes first.
	if slots[0].Shift != schedule.Morning || slots[len(slots)-1].Shift != schedule.Evening {
		t.Fatalf("shifts out of template order")
	}
}

func TestGenerate_LongServiceAroundBooking(t *testing.T) {
	g := newTestGenerator(t, mondayAt(8, 0))
	bookings := []Booking{{Date: monday, Start: schedule.NewClock(10, 0), DurationMinutes: 60}}
	slots := g.Generate(monday, 60, bookings)

	got := map[string]bool{}
	for _, s := range slots {
		got[s.Time] = s.Available
	}
	for _, taken := range []string{"09:30", "09:45", "10:00", "10:15", "10:30", "10:45"} {
		if avail, ok := got[taken]; !ok || avail {
			t.Fatalf("expected %s to be listed and unavailable (listed=%v)", taken, ok)
		}
	}
	if !got["11:00"] {
		t.Fatalf("expected 11:00 to be available, it only touches the booking")
	}
	if _, ok := got["14:00"]; ok {
		t.Fatalf("14:00 would overflow the morning shift")
	}
	if !got["13:45"] {
		t.Fatalf("13:45 ends exactly at shift end and must be offered")
	}
	if e := times(slots, schedule.Evening); len(e) != 5 || e[len(e)-1] != "22:00" {
		t.Fatalf("unexpected evening slots %v", e)
	}
}

func TestGenerate_NoSlotOverflowsShift(t *testing.T) {
	g := newTestGenerator(t, mondayAt(8, 0))
	for _, d := range []int{15, 30, 45, 60, 90, 125} {
		for _, s := range g.Generate(monday, d, nil) {
			start, _ := schedule.ParseClock(s.Time)
			end := start.Add(d)
			shift := morning
			if s.Shift == schedule.Evening {
				shift = evening
			}
			if start < shift.Start || end > shift.End {
				t.Fatalf("duration %d: slot %s overflows %s", d, s.Time, shift)
			}
		}
	}
}

func TestGenerate_TouchingIsNotOverlap(t *testing.T) {
	g := newTestGenerator(t, mondayAt(8, 0))
	bookings := []Booking{
		{Date: monday, Start: schedule.NewClock(10, 0), DurationMinutes: 15},
		{Date: monday.AddDays(1), Start: schedule.NewClock(9, 30), DurationMinutes: 300},
	}
	got := map[string]bool{}
	for _, s := range g.Generate(monday, 15, bookings) {
		got[s.Time] = s.Available
	}
	if !got["09:45"] || !got["10:15"] {
		t.Fatalf("slots touching the booking must stay available: %v", got)
	}
	if got["10:00"] {
		t.Fatalf("10:00 overlaps the booking")
	}
	if !got["09:30"] {
		t.Fatalf("bookings on another date must be ignored")
	}
}

func TestGenerate_PastOnlyToday(t *testing.T) {
	g := newTestGenerator(t, mondayAt(10, 7))
	got := map[string]bool{}
	for _, s := range g.Generate(monday, 15, nil) {
		got[s.Time] = s.Available
	}
	for _, past := range []string{"09:30", "09:45", "10:00"} {
		if got[past] {
			t.Fatalf("expected %s to be in the past", past)
		}
	}
	if !got["10:15"] {
		t.Fatalf("expected 10:15 to be available")
	}

	// A date other than today is never marked past, whatever the clock says.
	g = newTestGenerator(t, mondayAt(23, 59).Add(-7*24*time.Hour))
	for _, s := range g.Generate(monday, 15, nil) {
		if !s.Available {
			t.Fatalf("future date slot %s marked unavailable", s.Time)
		}
	}
}

func TestGenerate_TodayInSalonLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	tpl := schedule.MustWeeklyTemplate(schedule.DaySchedule{Weekday: time.Monday, Shifts: []schedule.Shift{morning}})
	// 08:00 UTC is 10:00 in Jerusalem on 2 March.
	now := mondayAt(8, 0)
	g := NewGenerator(schedule.NewCalendar(tpl), loc, func() time.Time { return now })

	got := map[string]bool{}
	for _, s := range g.Generate(monday, 15, nil) {
		got[s.Time] = s.Available
	}
	if got["09:45"] || !got["10:00"] {
		t.Fatalf("past evaluation must use the salon's wall clock: %v", got)
	}
}

func TestGenerate_ClosedDay(t *testing.T) {
	g := newTestGenerator(t, mondayAt(8, 0))
	slots := g.Generate(friday, 60, []Booking{{Date: friday, Start: schedule.NewClock(10, 0), DurationMinutes: 30}})
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected an empty, non-nil slot list, got %#v", slots)
	}
}

func TestGenerate_ServiceLongerThanShift(t *testing.T) {
	g := newTestGenerator(t, mondayAt(8, 0))
	slots := g.Generate(monday, 6*60, nil)
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	g := newTestGenerator(t, mondayAt(9, 50))
	bookings := []Booking{{Date: monday, Start: schedule.NewClock(11, 0), DurationMinutes: 30}}
	a := g.Generate(monday, 30, bookings)
	b := g.Generate(monday, 30, bookings)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical inputs produced different output")
	}
	for i := 1; i < len(a); i++ {
		if a[i].Shift == a[i-1].Shift && a[i].Time <= a[i-1].Time {
			t.Fatalf("slots not increasing within a shift at %d: %s then %s", i, a[i-1].Time, a[i].Time)
		}
	}
}

func TestGenerate_NonPositiveDurationUsesDefault(t *testing.T) {
	g := newTestGenerator(t, mondayAt(8, 0))
	if !reflect.DeepEqual(g.Generate(monday, 0, nil), g.Generate(monday, DefaultServiceDuration, nil)) {
		t.Fatalf("expected zero duration to behave like the default")
	}
}

func TestSelectableForReschedule(t *testing.T) {
	g := newTestGenerator(t, mondayAt(8, 0))
	current := schedule.NewClock(10, 0)
	slots := g.Generate(monday, 15, []Booking{
		{Date: monday, Start: current, DurationMinutes: 15},
		{Date: monday, Start: schedule.NewClock(11, 0), DurationMinutes: 15},
	})

	selectable := SelectableForReschedule(slots, current)
	has := map[string]bool{}
	for _, s := range selectable {
		has[s.Time] = true
	}
	if !has["10:00"] {
		t.Fatalf("current slot must stay selectable")
	}
	if has["11:00"] {
		t.Fatalf("slot taken by another appointment must be filtered out")
	}
	if len(selectable) != len(slots)-1 {
		t.Fatalf("expected only 11:00 to be dropped, got %d of %d", len(selectable), len(slots))
	}
}

func TestAvailable(t *testing.T) {
	g := newTestGenerator(t, mondayAt(8, 0))
	slots := g.Generate(monday, 15, []Booking{{Date: monday, Start: schedule.NewClock(10, 0), DurationMinutes: 15}})
	free := Available(slots)
	if len(free) != len(slots)-1 {
		t.Fatalf("expected one taken slot dropped, got %d of %d", len(free), len(slots))
	}
	for _, s := range free {
		if s.Time == "10:00" {
			t.Fatalf("taken slot kept")
		}
	}
}

func TestIsBookable(t *testing.T) {
	g := newTestGenerator(t, mondayAt(8, 0))
	slots := g.Generate(monday, 15, []Booking{{Date: monday, Start: schedule.NewClock(10, 0), DurationMinutes: 15}})
	if !IsBookable(slots, schedule.NewClock(9, 30)) {
		t.Fatalf("09:30 should be bookable")
	}
	if IsBookable(slots, schedule.NewClock(10, 0)) {
		t.Fatalf("10:00 is taken")
	}
	if IsBookable(slots, schedule.NewClock(9, 40)) {
		t.Fatalf("off-grid times are not slots")
	}
	if IsBookable(slots, schedule.NewClock(16, 0)) {
		t.Fatalf("16:00 is outside every shift")
	}
}

func TestServiceDurationsLookup(t *testing.T) {
	d := ServiceDurations{"purchase": 60, "broken": 0}
	if d.Lookup("purchase") != 60 {
		t.Fatalf("expected configured duration")
	}
	if d.Lookup("unknown") != DefaultServiceDuration || d.Lookup("broken") != DefaultServiceDuration {
		t.Fatalf("expected fallback to the default duration")
	}
}
