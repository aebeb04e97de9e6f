package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"pfagent/internal/domain"
	apperrors "pfagent/internal/errors"
	"pfagent/internal/services"
)

// LicenseHandler exposes the cached license inventory and the refresh
// pipeline over HTTP.
type LicenseHandler struct {
	service *services.LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates a new license handler.
func NewLicenseHandler(service *services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// RefreshRequest selects what a POST /refresh covers. An empty instance id
// refreshes the whole inventory.
type RefreshRequest struct {
	InstanceID string `json:"instance_id,omitempty"`
}

// Bind implements render.Binder.
func (rr *RefreshRequest) Bind(r *http.Request) error {
	return nil
}

// Routes returns the chi router for license endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/licenses", h.ListLicenses)
	r.Get("/licenses/{instanceID}", h.GetLicense)
	r.Get("/audit", h.ListAudit)
	r.Post("/refresh", h.Refresh)

	return r
}

// ListLicenses handles GET /api/licenses. Optional filters: env, status and
// expiring_within (days).
func (h *LicenseHandler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		records []domain.LicenseRecord
		err     error
	)
	switch {
	case r.URL.Query().Get("status") != "":
		records, err = h.service.GetByStatus(ctx, domain.Status(r.URL.Query().Get("status")))
	case r.URL.Query().Get("env") != "":
		records, err = h.service.GetByEnv(ctx, r.URL.Query().Get("env"))
	case r.URL.Query().Get("expiring_within") != "":
		var days int
		days, err = strconv.Atoi(r.URL.Query().Get("expiring_within"))
		if err != nil {
			render.Render(w, r, apperrors.New(http.StatusBadRequest, "INVALID_REQUEST", "expiring_within must be an integer"))
			return
		}
		records, err = h.service.GetExpiringSoon(ctx, days)
	default:
		records, err = h.service.GetAll(ctx)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.LicenseRecord{}
	}
	render.JSON(w, r, records)
}

// GetLicense handles GET /api/licenses/{instanceID}.
func (h *LicenseHandler) GetLicense(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	record, err := h.service.GetByInstance(r.Context(), instanceID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, record)
}

// ListAudit handles GET /api/audit. Optional filters: instance, limit
// (default 50).
func (h *LicenseHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			render.Render(w, r, apperrors.New(http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	records, err := h.service.RecentAudit(r.Context(), r.URL.Query().Get("instance"), limit)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}
	render.JSON(w, r, records)
}

// Refresh handles POST /api/refresh. With an instance id it refreshes one
// instance; without one it refreshes the whole inventory and reports
// per-instance outcomes.
func (h *LicenseHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &RefreshRequest{}
	if r.ContentLength > 0 {
		if err := render.Bind(r, req); err != nil {
			render.Render(w, r, apperrors.New(http.StatusBadRequest, "INVALID_REQUEST", "invalid request body"))
			return
		}
	}
	if req.InstanceID == "" {
		req.InstanceID = r.URL.Query().Get("instance")
	}

	if req.InstanceID != "" {
		summary, err := h.service.RefreshOne(ctx, req.InstanceID)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		render.JSON(w, r, summary)
		return
	}

	report, err := h.service.RefreshAll(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (h *LicenseHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apperrors.ToAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	render.Render(w, r, apiErr)
}
