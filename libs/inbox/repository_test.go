package inbox

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
)

func TestRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewRepository(mock)

	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-1", "booking.appointment.booked.v1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-1", "booking.appointment.booked.v1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-2", "booking.appointment.booked.v1").
		WillReturnError(&pgconn.PgError{Code: "57P01"})

	fresh, err := repo.Record(context.Background(), "evt-1", "booking.appointment.booked.v1")
	if err != nil || !fresh {
		t.Fatalf("expected first record to be fresh, got %v err=%v", fresh, err)
	}
	fresh, err = repo.Record(context.Background(), "evt-1", "booking.appointment.booked.v1")
	if err != nil || fresh {
		t.Fatalf("expected duplicate to be reported, got %v err=%v", fresh, err)
	}
	if _, err := repo.Record(context.Background(), "evt-2", "booking.appointment.booked.v1"); err == nil {
		t.Fatalf("expected database error to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
