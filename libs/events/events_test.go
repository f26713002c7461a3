package events

import (
	"strings"
	"testing"
)

func TestDecodeFlattensEmbeddedAppointment(t *testing.T) {
	body := []byte(`{"appointment_id":"a1","service_id":"siruq","client_name":"Dana","date":"2026-03-02","time":"10:00","duration_minutes":15,"status":"cancelled","reason":"sick"}`)
	evt, err := Decode[AppointmentCancelledV1](AppointmentCancelled, body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if evt.AppointmentID != "a1" || evt.Time != "10:00" || evt.Reason != "sick" {
		t.Fatalf("unexpected event %#v", evt)
	}

	_, err = Decode[AppointmentBookedV1](AppointmentBooked, []byte(`{`))
	if err == nil || !strings.Contains(err.Error(), AppointmentBooked) {
		t.Fatalf("expected error naming the event type, got %v", err)
	}
}
