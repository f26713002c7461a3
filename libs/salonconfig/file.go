package salonconfig

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

// fileConfig is the YAML layout of a salon config file:
//
//	timezone: Asia/Jerusalem
//	cancellation_deadline_hours: 24
//	working_hours:
//	  monday: ["09:30-14:45", "21:00-23:00"]
//	services:
//	  - {id: siruq, name: Wig combing, duration_minutes: 15}
//	blocked_dates:
//	  - {date: "2026-04-02", reason: Passover}
type fileConfig struct {
	Timezone                  string              `yaml:"timezone"`
	CancellationDeadlineHours *int                `yaml:"cancellation_deadline_hours"`
	ReminderDaysBefore        *int                `yaml:"reminder_days_before"`
	WorkingHours              map[string][]string `yaml:"working_hours"`
	Services                  []fileService       `yaml:"services"`
	BlockedDates              []fileBlockedDate   `yaml:"blocked_dates"`
}

type fileService struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	PriceAgorot     int64  `yaml:"price_agorot"`
	Inactive        bool   `yaml:"inactive"`
}

type fileBlockedDate struct {
	Date   string `yaml:"date"`
	Reason string `yaml:"reason"`
}

// LoadFile reads a YAML salon config. Fields left out keep the DefaultSnapshot values.
func LoadFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()
	snap, err := Decode(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

func Decode(r io.Reader) (Snapshot, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && err != io.EOF {
		return Snapshot{}, err
	}

	snap := DefaultSnapshot()
	if fc.Timezone != "" {
		snap.Settings.Timezone = fc.Timezone
	}
	if fc.CancellationDeadlineHours != nil {
		snap.Settings.CancellationDeadlineHours = *fc.CancellationDeadlineHours
	}
	if fc.ReminderDaysBefore != nil {
		snap.Settings.ReminderDaysBefore = *fc.ReminderDaysBefore
	}

	if fc.WorkingHours != nil {
		days := make([]schedule.DaySchedule, 0, len(fc.WorkingHours))
		for name, ranges := range fc.WorkingHours {
			wd, err := parseWeekday(name)
			if err != nil {
				return Snapshot{}, err
			}
			day := schedule.DaySchedule{Weekday: wd}
			for _, rng := range ranges {
				shift, err := ParseShift(rng)
				if err != nil {
					return Snapshot{}, err
				}
				day.Shifts = append(day.Shifts, shift)
			}
			days = append(days, day)
		}
		tpl, err := schedule.NewWeeklyTemplate(days...)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Template = tpl
	}

	if fc.Services != nil {
		snap.Services = nil
		for _, s := range fc.Services {
			snap.Services = append(snap.Services, Service{
				ID:              s.ID,
				Name:            s.Name,
				DurationMinutes: s.DurationMinutes,
				PriceAgorot:     s.PriceAgorot,
				Active:          !s.Inactive,
			})
		}
	}

	for _, b := range fc.BlockedDates {
		d, err := schedule.ParseDate(b.Date)
		if err != nil {
			return Snapshot{}, err
		}
		snap.BlockedDates = append(snap.BlockedDates, schedule.BlockedDate{Date: d, Reason: b.Reason})
	}

	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// ParseShift parses "HH:mm-HH:mm".
func ParseShift(s string) (schedule.Shift, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return schedule.Shift{}, &schedule.ValidationError{Field: "shift", Value: s, Reason: "expected HH:mm-HH:mm"}
	}
	start, err := schedule.ParseClock(from)
	if err != nil {
		return schedule.Shift{}, err
	}
	end, err := schedule.ParseClock(to)
	if err != nil {
		return schedule.Shift{}, err
	}
	return schedule.Shift{Start: start, End: end}, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if key == full || key == full[:3] {
			return wd, nil
		}
	}
	return 0, &schedule.ValidationError{Field: "weekday", Value: name, Reason: "expected a day name such as monday or mon"}
}
