package salonconfig

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

const (
	// ConfigPath is where business-service publishes the snapshot.
	ConfigPath = "/api/v1/salon/config"

	// CacheKey holds the redis copy of the snapshot. Writers delete it after every change.
	CacheKey = "salon:config:v1"
)

// Service is a bookable salon service.
type Service struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceAgorot     int64  `json:"price_agorot,omitempty"`
	Active          bool   `json:"is_active"`
}

type Settings struct {
	CancellationDeadlineHours int    `json:"cancellation_deadline_hours"`
	ReminderDaysBefore        int    `json:"reminder_days_before"`
	Timezone                  string `json:"timezone"`
}

// Snapshot is the salon configuration used to answer one request.
type Snapshot struct {
	Template     schedule.WeeklyTemplate
	Services     []Service
	Settings     Settings
	BlockedDates []schedule.BlockedDate
}

// Location loads the configured timezone, falling back to UTC.
func (s Snapshot) Location() *time.Location {
	if s.Settings.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Settings.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s Snapshot) Calendar() *schedule.Calendar {
	return schedule.NewCalendar(s.Template, s.BlockedDates...)
}

// Durations returns active service durations keyed by id.
func (s Snapshot) Durations() map[string]int {
	out := make(map[string]int, len(s.Services))
	for _, svc := range s.Services {
		if svc.Active {
			out[svc.ID] = svc.DurationMinutes
		}
	}
	return out
}

func (s Snapshot) Service(id string) (Service, bool) {
	for _, svc := range s.Services {
		if svc.ID == id {
			return svc, true
		}
	}
	return Service{}, false
}

// Validate checks settings that the calendar cannot check itself.
func (s Snapshot) Validate() error {
	if s.Settings.CancellationDeadlineHours < 0 {
		return fmt.Errorf("cancellation_deadline_hours must not be negative")
	}
	if s.Settings.ReminderDaysBefore < 0 {
		return fmt.Errorf("reminder_days_before must not be negative")
	}
	if s.Settings.Timezone != "" {
		if _, err := time.LoadLocation(s.Settings.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %q", s.Settings.Timezone)
		}
	}
	seen := map[string]bool{}
	for _, svc := range s.Services {
		if svc.ID == "" {
			return fmt.Errorf("service id is required")
		}
		if seen[svc.ID] {
			return fmt.Errorf("service %q listed more than once", svc.ID)
		}
		seen[svc.ID] = true
		if svc.DurationMinutes <= 0 {
			return fmt.Errorf("service %q: duration_minutes must be positive", svc.ID)
		}
	}
	return nil
}

type wireSnapshot struct {
	WorkingHours []schedule.DaySchedule `json:"working_hours"`
	Services     []Service              `json:"services"`
	Settings     Settings               `json:"settings"`
	BlockedDates []schedule.BlockedDate `json:"blocked_dates"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSnapshot{
		WorkingHours: s.Template.Days(),
		Services:     s.Services,
		Settings:     s.Settings,
		BlockedDates: s.BlockedDates,
	})
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var w wireSnapshot
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	tpl, err := schedule.NewWeeklyTemplate(w.WorkingHours...)
	if err != nil {
		return err
	}
	*s = Snapshot{Template: tpl, Services: w.Services, Settings: w.Settings, BlockedDates: w.BlockedDates}
	return nil
}
