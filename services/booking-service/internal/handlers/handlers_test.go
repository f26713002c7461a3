package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/michalsegal11/your-digital-companion/libs/outbox"
	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/booking"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/scheduling"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/storage"
)

var (
	// Monday 2 March 2026, 08:00 UTC. Tuesdays only have the 09:30 - 14:45 shift.
	fixedNow = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	at       = func(day, h, m int) time.Time { return time.Date(2026, time.March, day, h, m, 0, 0, time.UTC) }
)

var appointmentCols = []string{
	"id", "service_id", "service_name", "client_name", "client_phone", "client_email", "notes", "reminder_opt_in",
	"start_at", "end_at", "status", "cancelled_at", "cancellation_reason", "created_at",
}

func newTestHandler(t *testing.T) (*BookingHandler, pgxmock.PgxPoolIface, *http.ServeMux) {
	t.Helper()
	return newTestHandlerWith(t, nil)
}

// newTestHandlerWith lets a test adjust the salon configuration before the handler is built.
func newTestHandlerWith(t *testing.T, configure func(*salonconfig.Snapshot)) (*BookingHandler, pgxmock.PgxPoolIface, *http.ServeMux) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)

	snap := salonconfig.DefaultSnapshot()
	snap.Settings.Timezone = "UTC"
	if configure != nil {
		configure(&snap)
	}
	repo := storage.NewBookingRepository(mock)
	planner := booking.NewPlanner(scheduling.NewStaticProvider(snap), repo, func() time.Time { return fixedNow })
	h := NewBookingHandler(repo, outbox.NewRepository(), planner, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	mux := http.NewServeMux()
	h.Routes(mux)
	return h, mock, mux
}

func appointmentRow(id, serviceID, status string, start time.Time, minutes int) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentCols).AddRow(
		id, serviceID, "Service", "Dana", "050-0000000", "", "", false,
		start, start.Add(time.Duration(minutes)*time.Minute), status, (*time.Time)(nil), "", fixedNow.Add(-48*time.Hour),
	)
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func expectIntervals(mock pgxmock.PgxPoolIface, intervals ...[2]time.Time) {
	rows := pgxmock.NewRows([]string{"id", "start_at", "end_at"})
	for i, iv := range intervals {
		rows.AddRow("booked-"+string(rune('a'+i)), iv[0], iv[1])
	}
	mock.ExpectQuery("SELECT id, start_at, end_at").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(rows)
}

// expectOutboxInsert matches one outbox row: id, aggregate type and id, event type, payload and trace context.
func expectOutboxInsert(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func retirePurchase(snap *salonconfig.Snapshot) {
	for i := range snap.Services {
		if snap.Services[i].ID == "purchase" {
			snap.Services[i].Active = false
		}
	}
}

func TestSlotsMarksOverlaps(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	expectIntervals(mock, [2]time.Time{at(3, 10, 0), at(3, 10, 15)})

	rec := do(mux, http.MethodGet, "/api/v1/public/slots?date=2026-03-03&service_id=purchase", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DurationMinutes != 60 || !resp.IsWorkingDay || resp.WorkingHours != "09:30 - 14:45" {
		t.Fatalf("unexpected day %+v", resp)
	}
	got := map[string]bool{}
	for _, s := range resp.Slots {
		got[s.Time] = s.Available
	}
	if got["09:30"] || got["09:45"] || got["10:00"] {
		t.Fatalf("slots overlapping 10:00 must be taken: %v", got)
	}
	if !got["10:15"] {
		t.Fatalf("10:15 starts when the booking ends and must be free")
	}
	if _, ok := got["14:00"]; ok {
		t.Fatalf("60 minute slot at 14:00 overflows the shift")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSlotsClosedDaySkipsStore(t *testing.T) {
	_, mock, mux := newTestHandler(t)

	// Saturday
	rec := do(mux, http.MethodGet, "/api/v1/public/slots?date=2026-03-07", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"slots":[]`) || !strings.Contains(rec.Body.String(), `"working_hours":"closed"`) {
		t.Fatalf("expected empty slots for a closed day, got %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSlotsValidation(t *testing.T) {
	_, _, mux := newTestHandler(t)
	for _, target := range []string{"/api/v1/public/slots", "/api/v1/public/slots?date=02/03/2026"} {
		if rec := do(mux, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
	if rec := do(mux, http.MethodPost, "/api/v1/public/slots?date=2026-03-02", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestBookCreatesAppointment(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	mock.ExpectBegin()
	expectIntervals(mock)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs("consultation", pgxmock.AnyArg(), "Dana", "050-0000000", "", "", true, at(3, 11, 0), at(3, 11, 30), "scheduled").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10"))
	expectOutboxInsert(mock)
	mock.ExpectCommit()

	rec := do(mux, http.MethodPost, "/api/v1/public/book",
		`{"service_id":"consultation","date":"2026-03-03","time":"11:00","client_name":"Dana","client_phone":"050-0000000","reminder_opt_in":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp bookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AppointmentID != "3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10" || resp.DurationMinutes != 30 || resp.Time != "11:00" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookRejectsTakenSlot(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	mock.ExpectBegin()
	expectIntervals(mock, [2]time.Time{at(3, 10, 30), at(3, 11, 30)})
	mock.ExpectRollback()

	rec := do(mux, http.MethodPost, "/api/v1/public/book",
		`{"service_id":"siruq","date":"2026-03-03","time":"11:00","client_name":"Dana","client_phone":"050"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookRejectsPastAndUnknown(t *testing.T) {
	_, mock, mux := newTestHandler(t)

	rec := do(mux, http.MethodPost, "/api/v1/public/book",
		`{"service_id":"nope","date":"2026-03-03","time":"11:00","client_name":"Dana","client_phone":"050"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown service: expected 422, got %d", rec.Code)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()
	rec = do(mux, http.MethodPost, "/api/v1/public/book",
		`{"service_id":"siruq","date":"2026-03-01","time":"11:00","client_name":"Dana","client_phone":"050"}`)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "past") {
		t.Fatalf("past booking: expected 422, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(mux, http.MethodPost, "/api/v1/public/book", `{"service_id":"siruq","date":"2026-03-03","time":"11:00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing client: expected 400, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookReplaysIdempotentResponse(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM booking_idempotency_keys").
		WithArgs("key-1").
		WillReturnRows(pgxmock.NewRows([]string{"idempotency_key", "appointment_id", "status_code", "response_payload"}).
			AddRow("key-1", "3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", 201, `{"appointment_id":"3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10"}`))
	mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book",
		strings.NewReader(`{"service_id":"siruq","date":"2026-03-03","time":"11:00","client_name":"Dana","client_phone":"050"}`))
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated || rec.Body.String() != `{"appointment_id":"3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10"}` {
		t.Fatalf("expected stored response, got %d %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelRespectsDeadline(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, service_id").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10").
		WillReturnRows(appointmentRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "siruq", "scheduled", at(2, 10, 0), 15))
	mock.ExpectRollback()

	rec := do(mux, http.MethodPost, "/api/v1/public/cancel", `{"appointment_id":"3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "24 hours") {
		t.Fatalf("expected refusal message, got %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelBeforeDeadline(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	cancelledAt := fixedNow
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, service_id").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10").
		WillReturnRows(appointmentRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "siruq", "scheduled", at(5, 10, 0), 15))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "sick").
		WillReturnRows(pgxmock.NewRows([]string{"cancelled_at"}).AddRow(cancelledAt))
	expectOutboxInsert(mock)
	mock.ExpectCommit()

	rec := do(mux, http.MethodPost, "/api/v1/public/cancel", `{"appointment_id":"3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10","reason":"sick"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"cancelled"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancellationCheck(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	mock.ExpectQuery("SELECT id, service_id").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10").
		WillReturnRows(appointmentRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "siruq", "scheduled", at(3, 8, 0), 15))

	// Exactly 24 hours ahead: the deadline is now, which is already too late.
	rec := do(mux, http.MethodGet, "/api/v1/public/cancellation?appointment_id=3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp cancellationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Permitted || resp.DeadlineHours != 24 || resp.Deadline != "2026-03-02T08:00:00Z" {
		t.Fatalf("unexpected decision %+v", resp)
	}
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, service_id").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10").
		WillReturnRows(appointmentRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "siruq", "completed", at(1, 10, 0), 15))
	mock.ExpectRollback()

	rec := do(mux, http.MethodPost, "/api/v1/appointments/status", `{"appointment_id":"3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10","status":"scheduled"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if rec := do(mux, http.MethodPost, "/api/v1/appointments/status", `{"appointment_id":"3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10","status":"gone"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdminCancelBypassesDeadline(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, service_id").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10").
		WillReturnRows(appointmentRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "siruq", "scheduled", at(2, 10, 0), 15))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "").
		WillReturnRows(pgxmock.NewRows([]string{"cancelled_at"}).AddRow(fixedNow))
	expectOutboxInsert(mock)
	expectOutboxInsert(mock)
	mock.ExpectCommit()

	rec := do(mux, http.MethodPost, "/api/v1/appointments/status", `{"appointment_id":"3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10","status":"cancelled"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRescheduleSlotsKeepCurrentTime(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	mock.ExpectQuery("SELECT id, service_id").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10").
		WillReturnRows(appointmentRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "siruq", "scheduled", at(3, 10, 0), 15))
	expectIntervals(mock, [2]time.Time{at(3, 10, 0), at(3, 10, 15)}, [2]time.Time{at(3, 11, 0), at(3, 11, 15)})

	rec := do(mux, http.MethodGet, "/api/v1/appointments/reschedule-slots?appointment_id=3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp rescheduleSlotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	has := map[string]bool{}
	for _, s := range resp.Slots {
		has[s.Time] = true
	}
	if !has["10:00"] || has["11:00"] || resp.CurrentTime != "10:00" {
		t.Fatalf("unexpected reschedule options %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRescheduleMovesAppointment(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, service_id").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10").
		WillReturnRows(appointmentRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "siruq", "scheduled", at(3, 10, 0), 15))
	expectIntervals(mock, [2]time.Time{at(3, 10, 0), at(3, 10, 15)})
	mock.ExpectExec("UPDATE appointments").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "siruq", pgxmock.AnyArg(), at(3, 12, 0), at(3, 12, 15)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectOutboxInsert(mock)
	mock.ExpectCommit()

	rec := do(mux, http.MethodPost, "/api/v1/appointments/reschedule", `{"appointment_id":"3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10","date":"2026-03-03","time":"12:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"time":"12:00"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRescheduleOverlappingItsOwnSlot(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, service_id").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10").
		WillReturnRows(appointmentRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "purchase", "scheduled", at(3, 10, 0), 60))
	mock.ExpectQuery("SELECT id, start_at, end_at").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "start_at", "end_at"}).AddRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", at(3, 10, 0), at(3, 11, 0)))
	mock.ExpectExec("UPDATE appointments").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "purchase", pgxmock.AnyArg(), at(3, 10, 30), at(3, 11, 30)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectOutboxInsert(mock)
	mock.ExpectCommit()

	rec := do(mux, http.MethodPost, "/api/v1/appointments/reschedule", `{"appointment_id":"3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10","date":"2026-03-03","time":"10:30"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRescheduleKeepsLengthOfRetiredService(t *testing.T) {
	_, mock, mux := newTestHandlerWith(t, retirePurchase)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, service_id").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10").
		WillReturnRows(appointmentRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "purchase", "scheduled", at(3, 10, 0), 60))
	expectIntervals(mock, [2]time.Time{at(3, 12, 30), at(3, 12, 45)})
	mock.ExpectExec("UPDATE appointments").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "purchase", pgxmock.AnyArg(), at(3, 11, 30), at(3, 12, 30)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectOutboxInsert(mock)
	mock.ExpectCommit()

	rec := do(mux, http.MethodPost, "/api/v1/appointments/reschedule", `{"appointment_id":"3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10","date":"2026-03-03","time":"11:30"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"duration_minutes":60`) {
		t.Fatalf("expected the booked length to be kept, got %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRescheduleRetiredServiceChecksFullLength(t *testing.T) {
	_, mock, mux := newTestHandlerWith(t, retirePurchase)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, service_id").
		WithArgs("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10").
		WillReturnRows(appointmentRow("3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10", "purchase", "scheduled", at(3, 10, 0), 60))
	// 12:00 is free for 15 minutes but not for the hour the appointment runs.
	expectIntervals(mock, [2]time.Time{at(3, 12, 30), at(3, 12, 45)})
	mock.ExpectRollback()

	rec := do(mux, http.MethodPost, "/api/v1/appointments/reschedule", `{"appointment_id":"3f6c1e2a-9b7d-4c5e-8a1f-0d2b4c6e8a10","date":"2026-03-03","time":"12:00"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMalformedAppointmentIDIsRejected(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	cases := []struct {
		method, target, body string
	}{
		{http.MethodGet, "/api/v1/public/cancellation?appointment_id=abc", ""},
		{http.MethodPost, "/api/v1/public/cancel", `{"appointment_id":"abc"}`},
		{http.MethodPost, "/api/v1/appointments/status", `{"appointment_id":"abc","status":"arrived"}`},
		{http.MethodGet, "/api/v1/appointments/reschedule-slots?appointment_id=abc", ""},
		{http.MethodPost, "/api/v1/appointments/reschedule", `{"appointment_id":"abc","date":"2026-03-03","time":"12:00"}`},
	}
	for _, c := range cases {
		rec := do(mux, c.method, c.target, c.body)
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid appointment_id") {
			t.Fatalf("%s %s: expected 400, got %d %s", c.method, c.target, rec.Code, rec.Body.String())
		}
	}
	// None of them reaches the database.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookRejectionMatchesIdempotentReplay(t *testing.T) {
	_, mock, mux := newTestHandler(t)
	want := `{"error":"requested time is in the past"}`

	mock.ExpectBegin()
	mock.ExpectQuery("FROM booking_idempotency_keys").
		WithArgs("key-2").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO booking_idempotency_keys").
		WithArgs("key-2").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("FROM booking_idempotency_keys").
		WithArgs("key-2").
		WillReturnRows(pgxmock.NewRows([]string{"idempotency_key", "appointment_id", "status_code", "response_payload"}).
			AddRow("key-2", "", 0, ""))
	mock.ExpectExec("UPDATE booking_idempotency_keys").
		WithArgs("key-2", pgxmock.AnyArg(), http.StatusUnprocessableEntity, []byte(want)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book",
		strings.NewReader(`{"service_id":"siruq","date":"2026-03-01","time":"11:00","client_name":"Dana","client_phone":"050"}`))
	req.Header.Set("Idempotency-Key", "key-2")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity || rec.Body.String() != want {
		t.Fatalf("expected the stored rejection body, got %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected a JSON rejection, got %q", ct)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
