package storage

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
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

func TestInsertNotification(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(pgxmock.AnyArg(), TypeNewBooking, "New booking", "msg", "appt-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Insert(context.Background(), Notification{Type: TypeNewBooking, Title: "New booking", Message: "msg", AppointmentID: "appt-1"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListClampsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM notifications").
		WithArgs(true, 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "title", "message", "appointment_id", "read", "created_at"}).
			AddRow("n-1", TypeReminder, "Reminder", "Remind Dana", "appt-1", false, created))

	got, err := repo.List(context.Background(), true, 1000)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Type != TypeReminder || got[0].Read {
		t.Fatalf("unexpected notifications %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkReadMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE notifications").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.MarkRead(context.Background(), "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE notifications SET read = true").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.MarkAllRead(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("expected 3 rows, got %d err=%v", n, err)
	}
}
