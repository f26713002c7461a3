package salonconfig

import (
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

const (
	DefaultCancellationDeadlineHours = 24
	DefaultReminderDaysBefore        = 1
	DefaultTimezone                  = "Asia/Jerusalem"
)

// DefaultSnapshot is the salon's standard week: mornings Sunday to Thursday, extra evenings on
// Monday and Wednesday, closed Friday and Saturday.
func DefaultSnapshot() Snapshot {
	morning := schedule.Shift{Start: schedule.NewClock(9, 30), End: schedule.NewClock(14, 45)}
	evening := schedule.Shift{Start: schedule.NewClock(21, 0), End: schedule.NewClock(23, 0)}

	return Snapshot{
		Template: schedule.MustWeeklyTemplate(
			schedule.DaySchedule{Weekday: time.Sunday, Shifts: []schedule.Shift{morning}},
			schedule.DaySchedule{Weekday: time.Monday, Shifts: []schedule.Shift{morning, evening}},
			schedule.DaySchedule{Weekday: time.Tuesday, Shifts: []schedule.Shift{morning}},
			schedule.DaySchedule{Weekday: time.Wednesday, Shifts: []schedule.Shift{morning, evening}},
			schedule.DaySchedule{Weekday: time.Thursday, Shifts: []schedule.Shift{morning}},
		),
		Services: []Service{
			{ID: "siruq", Name: "Wig combing", DurationMinutes: 15, Active: true},
			{ID: "tiqun", Name: "Wig repair", DurationMinutes: 15, Active: true},
			{ID: "purchase", Name: "Wig purchase", DurationMinutes: 60, Active: true},
			{ID: "consultation", Name: "Consultation", DurationMinutes: 30, Active: true},
		},
		Settings: Settings{
			CancellationDeadlineHours: DefaultCancellationDeadlineHours,
			ReminderDaysBefore:        DefaultReminderDaysBefore,
			Timezone:                  DefaultTimezone,
		},
	}
}
