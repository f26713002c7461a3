package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/httpx"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
	"github.com/michalsegal11/your-digital-companion/services/analytics-service/internal/storage"
)

const maxRangeDays = 366

type Handler struct {
	repo   *storage.Repository
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// New reports days in loc, the salon's timezone.
func New(repo *storage.Repository, loc *time.Location, logger *slog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{repo: repo, loc: loc, logger: logger, now: time.Now}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/analytics/daily", h.Daily)
	mux.HandleFunc("/api/v1/analytics/kpis", h.KPIs)
}

func (h *Handler) today() schedule.Date {
	return schedule.DateOf(h.now().In(h.loc))
}

func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	to := h.today()
	from := to.AddDays(-29)
	var err error
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		if from, err = schedule.ParseDate(raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		if to, err = schedule.ParseDate(raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if to.Before(from) {
		http.Error(w, "to must not be before from", http.StatusBadRequest)
		return
	}
	if from.AddDays(maxRangeDays).Before(to) {
		http.Error(w, "range too large", http.StatusBadRequest)
		return
	}

	days, err := h.repo.Daily(r.Context(), from, to)
	if err != nil {
		h.logger.Error("load daily metrics failed", "err", err)
		http.Error(w, "failed to load metrics", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"from": from.String(),
		"to":   to.String(),
		"days": days,
	})
}

type kpiResponse struct {
	Date               string `json:"date"`
	TodayAppointments  int    `json:"today_appointments"`
	WeekAppointments   int    `json:"week_appointments"`
	TodayCancellations int    `json:"today_cancellations"`
}

// KPIs summarises date and its Sunday-to-Saturday week.
func (h *Handler) KPIs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	date := h.today()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		d, err := schedule.ParseDate(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		date = d
	}
	weekStart := date.AddDays(-int(date.Weekday()))

	days, err := h.repo.Daily(r.Context(), weekStart, weekStart.AddDays(6))
	if err != nil {
		h.logger.Error("load kpis failed", "err", err)
		http.Error(w, "failed to load metrics", http.StatusInternalServerError)
		return
	}
	resp := kpiResponse{Date: date.String()}
	for _, d := range days {
		resp.WeekAppointments += d.Active()
		if d.Day == date {
			resp.TodayAppointments = d.Active()
			resp.TodayCancellations = d.Cancelled
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
