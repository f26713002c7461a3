package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func TestWorkingHoursGroupsShifts(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM salon_working_hours").
		WillReturnRows(pgxmock.NewRows([]string{"weekday", "start_minute", "end_minute"}).
			AddRow(1, 9*60+30, 14*60+45).
			AddRow(1, 21*60, 23*60).
			AddRow(2, 9*60+30, 14*60+45))

	tpl, err := repo.WorkingHours(context.Background())
	if err != nil {
		t.Fatalf("WorkingHours: %v", err)
	}
	if got := len(tpl.Day(time.Monday).Shifts); got != 2 {
		t.Fatalf("expected 2 monday shifts, got %d", got)
	}
	if len(tpl.Day(time.Friday).Shifts) != 0 {
		t.Fatalf("friday should be closed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWorkingHoursRejectsOverlap(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM salon_working_hours").
		WillReturnRows(pgxmock.NewRows([]string{"weekday", "start_minute", "end_minute"}).
			AddRow(1, 9*60, 12*60).
			AddRow(1, 11*60, 13*60))

	if _, err := repo.WorkingHours(context.Background()); !schedule.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReplaceWorkingHours(t *testing.T) {
	repo, mock := newMockRepo(t)
	tpl := salonconfig.DefaultSnapshot().Template

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM salon_working_hours").WillReturnResult(pgxmock.NewResult("DELETE", 7))
	shifts := 0
	for _, day := range tpl.Days() {
		for _, s := range day.Shifts {
			mock.ExpectExec("INSERT INTO salon_working_hours").
				WithArgs(int(day.Weekday), int(s.Start), int(s.End)).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			shifts++
		}
	}
	mock.ExpectCommit()

	if err := repo.ReplaceWorkingHours(context.Background(), tpl); err != nil {
		t.Fatalf("ReplaceWorkingHours: %v", err)
	}
	if shifts != 7 {
		t.Fatalf("expected 7 default shifts, got %d", shifts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateServiceDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO salon_services").
		WithArgs("siruq", "Wig combing", 15, int64(0), true).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.CreateService(context.Background(), salonconfig.Service{ID: "siruq", Name: "Wig combing", DurationMinutes: 15, Active: true})
	if err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUpdateServiceMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE salon_services").
		WithArgs("nope", "x", 15, int64(0), false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdateService(context.Background(), salonconfig.Service{ID: "nope", Name: "x", DurationMinutes: 15}); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSettingsDefaultsWhenUnset(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM salon_settings").
		WillReturnRows(pgxmock.NewRows([]string{"cancellation_deadline_hours", "reminder_days_before", "timezone"}))

	s, err := repo.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if s != salonconfig.DefaultSnapshot().Settings {
		t.Fatalf("expected defaults, got %+v", s)
	}
}

func TestSnapshot(t *testing.T) {
	repo, mock := newMockRepo(t)
	today := schedule.Date{Year: 2026, Month: time.March, Day: 1}

	mock.ExpectQuery("FROM salon_working_hours").
		WillReturnRows(pgxmock.NewRows([]string{"weekday", "start_minute", "end_minute"}).AddRow(4, 9*60+30, 14*60+45))
	mock.ExpectQuery("FROM salon_services").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "duration_minutes", "price_agorot", "is_active"}).
			AddRow("purchase", "Wig purchase", 60, int64(0), true))
	mock.ExpectQuery("FROM salon_settings").
		WillReturnRows(pgxmock.NewRows([]string{"cancellation_deadline_hours", "reminder_days_before", "timezone"}).
			AddRow(48, 2, "Asia/Jerusalem"))
	mock.ExpectQuery("FROM salon_blocked_dates").
		WithArgs(today.At(0, time.UTC)).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_on", "reason"}).
			AddRow(time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC), "Passover"))

	snap, err := repo.Snapshot(context.Background(), today)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Settings.CancellationDeadlineHours != 48 || len(snap.Services) != 1 || len(snap.BlockedDates) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.BlockedDates[0].Date != (schedule.Date{Year: 2026, Month: time.April, Day: 2}) {
		t.Fatalf("unexpected blocked date %v", snap.BlockedDates[0].Date)
	}
	if snap.Calendar().IsWorkingDay(schedule.Date{Year: 2026, Month: time.April, Day: 2}) {
		t.Fatalf("blocked date must be closed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
