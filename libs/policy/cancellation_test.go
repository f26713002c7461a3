package policy

import (
	"strings"
	"testing"
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCanCancelBoundary(t *testing.T) {
	date := schedule.Date{Year: 2026, Month: time.March, Day: 3}
	at := schedule.NewClock(10, 0)
	deadline := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"one minute before deadline", deadline.Add(-time.Minute), true},
		{"at deadline", deadline, false},
		{"after deadline", deadline.Add(time.Minute), false},
		{"after appointment", deadline.Add(48 * time.Hour), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := NewCancellationPolicy(time.UTC, fixedNow(c.now))
			if got := p.CanCancel(date, at, 24); got != c.want {
				t.Fatalf("CanCancel at %s = %v, want %v", c.now, got, c.want)
			}
		})
	}
}

func TestCanCancelUsesSalonLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	date := schedule.Date{Year: 2026, Month: time.March, Day: 3}
	// 10:00 in Jerusalem on 3 March is 08:00 UTC; the 24h deadline is 2 March 08:00 UTC.
	p := NewCancellationPolicy(loc, fixedNow(time.Date(2026, time.March, 2, 7, 59, 0, 0, time.UTC)))
	if !p.CanCancel(date, schedule.NewClock(10, 0), 24) {
		t.Fatalf("expected cancellation one minute before the deadline")
	}
	p = NewCancellationPolicy(loc, fixedNow(time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)))
	if p.CanCancel(date, schedule.NewClock(10, 0), 24) {
		t.Fatalf("expected refusal at the deadline")
	}
}

func TestDecideNamesDeadline(t *testing.T) {
	date := schedule.Date{Year: 2026, Month: time.March, Day: 3}
	p := NewCancellationPolicy(time.UTC, fixedNow(time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)))

	d := p.Decide(date, schedule.NewClock(10, 0), 12)
	if d.Permitted {
		t.Fatalf("expected refusal one hour before the appointment")
	}
	if !strings.Contains(d.Reason, "12 hours") {
		t.Fatalf("expected reason to name the deadline, got %q", d.Reason)
	}
	if !d.Deadline.Equal(time.Date(2026, time.March, 2, 22, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected deadline %s", d.Deadline)
	}

	d = p.Decide(date, schedule.NewClock(10, 0), 0)
	if !d.Permitted || d.Reason != "" {
		t.Fatalf("expected a zero hour deadline to permit, got %#v", d)
	}
}

func TestReminderDate(t *testing.T) {
	got := ReminderDate(schedule.Date{Year: 2026, Month: time.March, Day: 1}, 1)
	if got.String() != "2026-02-28" {
		t.Fatalf("expected the previous day, got %s", got)
	}
}
