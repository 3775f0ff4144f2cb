package leads

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/formgate/leadcapture/internal/http/middleware"
	"github.com/formgate/leadcapture/pkg/logging"
)

// EraseArchiver snapshots a lead before compliance erasure. Enabled reports
// whether archiving is configured; when it is, a failed snapshot aborts the
// erasure so no record disappears without an audit copy.
type EraseArchiver interface {
	Enabled() bool
	ArchiveLead(ctx context.Context, lead *Lead) error
}

// AdminHandler serves the operator-only endpoints.
type AdminHandler struct {
	store    LeadStore
	archiver EraseArchiver
	logger   *logging.Logger
}

// NewAdminHandler creates the admin handler. archiver may be nil when no
// archive bucket is configured.
func NewAdminHandler(store LeadStore, archiver EraseArchiver, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{
		store:    store,
		archiver: archiver,
		logger:   logger,
	}
}

// EraseLead handles DELETE /admin/leads/{leadID} requests: snapshot the
// record when archiving is configured, then remove it permanently.
func (h *AdminHandler) EraseLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if _, err := uuid.Parse(leadID); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "leadID must be a valid UUID", "leadId")
		return
	}

	lead, err := h.store.GetByID(r.Context(), leadID)
	if err != nil {
		h.renderEraseError(w, err, leadID)
		return
	}

	if h.archiver != nil && h.archiver.Enabled() {
		if err := h.archiver.ArchiveLead(r.Context(), lead); err != nil {
			h.logger.Error("erasure archive failed, aborting erasure", "lead_id", leadID, "error", err)
			writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", "")
			return
		}
	}

	if err := h.store.Delete(r.Context(), leadID); err != nil {
		h.renderEraseError(w, err, leadID)
		return
	}

	actor := "unknown"
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		actor = claims.Subject
	}
	h.logger.Info("lead erased", "lead_id", leadID, "actor", actor)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"leadId":  leadID,
	})
}

func (h *AdminHandler) renderEraseError(w http.ResponseWriter, err error, leadID string) {
	if errors.Is(err, ErrLeadNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "lead not found", "")
		return
	}
	h.logger.Error("lead erasure failed", "error", err, "lead_id", leadID)
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", "")
}

// Stats handles GET /admin/leads/stats requests, counting stored leads
// within an optional createdAt range.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var start, end *time.Time
	q := r.URL.Query()

	if raw := q.Get("startDate"); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidation, "startDate must be an ISO-8601 timestamp", "startDate")
			return
		}
		start = &t
	}
	if raw := q.Get("endDate"); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidation, "endDate must be an ISO-8601 timestamp", "endDate")
			return
		}
		end = &t
	}
	if start != nil && end != nil && start.After(*end) {
		writeError(w, http.StatusBadRequest, CodeValidation, "startDate must not be after endDate", "startDate")
		return
	}

	total, err := h.store.Count(r.Context(), start, end)
	if err != nil {
		h.logger.Error("lead count failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"total":       total,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
	})
}
