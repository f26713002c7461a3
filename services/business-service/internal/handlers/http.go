package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/michalsegal11/your-digital-companion/libs/httpx"
	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
	"github.com/michalsegal11/your-digital-companion/libs/schedule"
	"github.com/michalsegal11/your-digital-companion/services/business-service/internal/storage"
)

type Handler struct {
	repo   *storage.Repository
	cache  redis.Cmdable
	logger *slog.Logger
	now    func() time.Time
}

// New builds the back office handler. cache may be nil when booking-service reads without redis.
func New(repo *storage.Repository, cache redis.Cmdable, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, cache: cache, logger: logger, now: time.Now}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/salon/working-hours", h.WorkingHours)
	mux.HandleFunc("/api/v1/salon/services", h.Services)
	mux.HandleFunc("/api/v1/salon/services/update", h.UpdateService)
	mux.HandleFunc("/api/v1/salon/settings", h.Settings)
	mux.HandleFunc("/api/v1/salon/blocked-dates", h.BlockedDates)
	mux.HandleFunc("/api/v1/salon/blocked-dates/delete", h.UnblockDate)
	mux.HandleFunc(salonconfig.ConfigPath, h.Config)
}

func (h *Handler) WorkingHours(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tpl, err := h.repo.WorkingHours(r.Context())
		if err != nil {
			h.logger.Error("load working hours failed", "err", err)
			http.Error(w, "failed to load working hours", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, tpl.Days())
	case http.MethodPut:
		var days []schedule.DaySchedule
		if err := httpx.DecodeJSON(r, &days); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		tpl, err := schedule.NewWeeklyTemplate(days...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.repo.ReplaceWorkingHours(r.Context(), tpl); err != nil {
			h.logger.Error("replace working hours failed", "err", err)
			http.Error(w, "failed to save working hours", http.StatusInternalServerError)
			return
		}
		h.invalidate(r.Context())
		httpx.WriteJSON(w, http.StatusOK, tpl.Days())
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

type serviceRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceAgorot     int64  `json:"price_agorot"`
	Active          *bool  `json:"is_active"`
}

func (req serviceRequest) service() (salonconfig.Service, error) {
	svc := salonconfig.Service{
		ID:              strings.TrimSpace(req.ID),
		Name:            strings.TrimSpace(req.Name),
		DurationMinutes: req.DurationMinutes,
		PriceAgorot:     req.PriceAgorot,
		Active:          true,
	}
	if req.Active != nil {
		svc.Active = *req.Active
	}
	switch {
	case svc.Name == "":
		return svc, errors.New("name is required")
	case svc.DurationMinutes <= 0 || svc.DurationMinutes > 8*60:
		return svc, errors.New("duration_minutes must be between 1 and 480")
	case svc.PriceAgorot < 0:
		return svc, errors.New("price_agorot must not be negative")
	}
	return svc, nil
}

func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		services, err := h.repo.ListServices(r.Context())
		if err != nil {
			http.Error(w, "failed to list services", http.StatusInternalServerError)
			return
		}
		if services == nil {
			services = []salonconfig.Service{}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"services": services})
	case http.MethodPost:
		var req serviceRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		svc, err := req.service()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if svc.ID == "" {
			svc.ID = uuid.NewString()
		}
		if err := h.repo.CreateService(r.Context(), svc); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				http.Error(w, "service id already exists", http.StatusConflict)
				return
			}
			h.logger.Error("create service failed", "err", err)
			http.Error(w, "failed to create service", http.StatusInternalServerError)
			return
		}
		h.invalidate(r.Context())
		httpx.WriteJSON(w, http.StatusCreated, svc)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, http.MethodPut)
		return
	}
	var req serviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	svc, err := req.service()
	if err == nil && svc.ID == "" {
		err = errors.New("id is required")
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.UpdateService(r.Context(), svc); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update service", http.StatusInternalServerError)
		return
	}
	h.invalidate(r.Context())
	httpx.WriteJSON(w, http.StatusOK, svc)
}

func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s, err := h.repo.Settings(r.Context())
		if err != nil {
			http.Error(w, "failed to load settings", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, s)
	case http.MethodPut:
		var s salonconfig.Settings
		if err := httpx.DecodeJSON(r, &s); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		s.Timezone = strings.TrimSpace(s.Timezone)
		if s.Timezone == "" {
			http.Error(w, "timezone is required", http.StatusBadRequest)
			return
		}
		if err := (salonconfig.Snapshot{Settings: s}).Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.repo.UpdateSettings(r.Context(), s); err != nil {
			http.Error(w, "failed to save settings", http.StatusInternalServerError)
			return
		}
		h.invalidate(r.Context())
		httpx.WriteJSON(w, http.StatusOK, s)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

func (h *Handler) BlockedDates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		from := h.today()
		if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
			d, err := schedule.ParseDate(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			from = d
		}
		blocked, err := h.repo.ListBlockedDates(r.Context(), from)
		if err != nil {
			http.Error(w, "failed to list blocked dates", http.StatusInternalServerError)
			return
		}
		if blocked == nil {
			blocked = []schedule.BlockedDate{}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"blocked_dates": blocked})
	case http.MethodPost:
		var b schedule.BlockedDate
		if err := httpx.DecodeJSON(r, &b); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if b.Date.IsZero() {
			http.Error(w, "date is required", http.StatusBadRequest)
			return
		}
		b.Reason = strings.TrimSpace(b.Reason)
		if err := h.repo.BlockDate(r.Context(), b); err != nil {
			http.Error(w, "failed to block date", http.StatusInternalServerError)
			return
		}
		h.invalidate(r.Context())
		httpx.WriteJSON(w, http.StatusCreated, b)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handler) UnblockDate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req struct {
		Date schedule.Date `json:"date"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Date.IsZero() {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}
	if err := h.repo.UnblockDate(r.Context(), req.Date); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "date is not blocked", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to unblock date", http.StatusInternalServerError)
		return
	}
	h.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Config serves the snapshot booking-service reads.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	snap, err := h.repo.Snapshot(r.Context(), h.today())
	if err != nil {
		h.logger.Error("build salon config failed", "err", err)
		http.Error(w, "failed to load salon config", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snap)
}

// today is a day behind UTC so no timezone sees a current blocked date dropped.
func (h *Handler) today() schedule.Date {
	return schedule.DateOf(h.now().UTC()).AddDays(-1)
}

func (h *Handler) invalidate(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Del(ctx, salonconfig.CacheKey).Err(); err != nil {
		h.logger.Warn("salon config cache invalidation failed", "err", err)
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
