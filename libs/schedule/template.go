package schedule

import (
	"fmt"
	"time"
)

// Shift is an open interval [Start, End) on a day.
type Shift struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

func (s Shift) Minutes() int { return int(s.End - s.Start) }

func (s Shift) String() string {
	return s.Start.String() + " - " + s.End.String()
}

// DaySchedule lists a weekday's shifts in chronological order. No shifts means closed.
type DaySchedule struct {
	Weekday time.Weekday `json:"weekday"`
	Shifts  []Shift      `json:"shifts"`
}

// WeeklyTemplate holds exactly one DaySchedule per weekday, indexed by time.Weekday.
type WeeklyTemplate struct {
	days [7]DaySchedule
}

// NewWeeklyTemplate builds a template from the given days. Days not listed are closed.
func NewWeeklyTemplate(days ...DaySchedule) (WeeklyTemplate, error) {
	var tpl WeeklyTemplate
	for wd := range tpl.days {
		tpl.days[wd].Weekday = time.Weekday(wd)
	}

	var seen [7]bool
	for _, day := range days {
		if day.Weekday < time.Sunday || day.Weekday > time.Saturday {
			return WeeklyTemplate{}, invalid("weekday", fmt.Sprint(int(day.Weekday)), "must be 0-6")
		}
		if seen[day.Weekday] {
			return WeeklyTemplate{}, invalid("weekday", day.Weekday.String(), "listed more than once")
		}
		seen[day.Weekday] = true
		if err := validateShifts(day); err != nil {
			return WeeklyTemplate{}, err
		}
		tpl.days[day.Weekday].Shifts = append([]Shift(nil), day.Shifts...)
	}
	return tpl, nil
}

// MustWeeklyTemplate panics on an invalid template. Only for built-in defaults.
func MustWeeklyTemplate(days ...DaySchedule) WeeklyTemplate {
	tpl, err := NewWeeklyTemplate(days...)
	if err != nil {
		panic(err)
	}
	return tpl
}

func validateShifts(day DaySchedule) error {
	var prevEnd Clock
	for i, s := range day.Shifts {
		if s.Start < 0 || s.End > MinutesPerDay {
			return invalid("shift", s.String(), "outside the day")
		}
		if s.Start >= s.End {
			return invalid("shift", s.String(), "start must be before end")
		}
		if i > 0 && s.Start < prevEnd {
			return invalid("shift", s.String(), fmt.Sprintf("overlaps or precedes the previous shift on %s", day.Weekday))
		}
		prevEnd = s.End
	}
	return nil
}

// Day returns a copy of the schedule for wd.
func (t WeeklyTemplate) Day(wd time.Weekday) DaySchedule {
	if wd < time.Sunday || wd > time.Saturday {
		return DaySchedule{Weekday: wd}
	}
	d := t.days[wd]
	d.Shifts = append([]Shift(nil), d.Shifts...)
	return d
}

// Days returns all seven schedules starting with Sunday.
func (t WeeklyTemplate) Days() []DaySchedule {
	out := make([]DaySchedule, 0, len(t.days))
	for wd := range t.days {
		out = append(out, t.Day(time.Weekday(wd)))
	}
	return out
}
