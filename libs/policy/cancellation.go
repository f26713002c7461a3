package policy

import (
	"fmt"
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

// Decision is the outcome of a cancellation check. Reason is set when the request is refused.
type Decision struct {
	Permitted bool      `json:"permitted"`
	Reason    string    `json:"reason,omitempty"`
	Deadline  time.Time `json:"deadline"`
}

// CancellationPolicy decides whether an appointment may still be cancelled.
type CancellationPolicy struct {
	loc *time.Location
	now func() time.Time
}

// NewCancellationPolicy combines appointment dates and times in loc. A nil now uses time.Now.
func NewCancellationPolicy(loc *time.Location, now func() time.Time) *CancellationPolicy {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &CancellationPolicy{loc: loc, now: now}
}

// Deadline is the last instant, exclusive, at which the appointment may be cancelled.
func (p *CancellationPolicy) Deadline(date schedule.Date, at schedule.Clock, deadlineHours int) time.Time {
	return date.At(at, p.loc).Add(-time.Duration(deadlineHours) * time.Hour)
}

// CanCancel is true iff now is strictly before the deadline.
func (p *CancellationPolicy) CanCancel(date schedule.Date, at schedule.Clock, deadlineHours int) bool {
	return p.now().Before(p.Deadline(date, at, deadlineHours))
}

func (p *CancellationPolicy) Decide(date schedule.Date, at schedule.Clock, deadlineHours int) Decision {
	d := Decision{
		Permitted: p.CanCancel(date, at, deadlineHours),
		Deadline:  p.Deadline(date, at, deadlineHours),
	}
	if !d.Permitted {
		d.Reason = RefusalMessage(deadlineHours)
	}
	return d
}

// RefusalMessage is shown to clients who try to cancel too late.
func RefusalMessage(deadlineHours int) string {
	return fmt.Sprintf("appointments can only be cancelled up to %d hours in advance; please contact the salon", deadlineHours)
}

// ReminderDate is the day a reminder is due for an appointment on date.
func ReminderDate(date schedule.Date, daysBefore int) schedule.Date {
	return date.AddDays(-daysBefore)
}
