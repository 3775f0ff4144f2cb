package leads

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formgate/leadcapture/internal/observability/metrics"
	"github.com/formgate/leadcapture/pkg/logging"
)

// maxBodyBytes caps submission payloads well beyond any legitimate form.
const maxBodyBytes = 64 << 10

// Error codes carried in the response envelope.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeSpam         = "SPAM_DETECTED"
	CodeRateLimited  = "RATE_LIMIT_EXCEEDED"
	CodeDuplicate    = "DUPLICATE_LEAD"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

// errorBody is the error half of the response envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Handler handles HTTP requests for leads
type Handler struct {
	service *SubmissionService
	store   LeadStore
	logger  *logging.Logger
	metrics *metrics.LeadMetrics
}

// NewHandler creates a new leads handler
func NewHandler(service *SubmissionService, store LeadStore, logger *logging.Logger, m *metrics.LeadMetrics) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// SubmitLead handles POST /leads requests.
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "request body must be a JSON object", "")
		return
	}

	meta := RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
		Referrer:  r.Header.Get("Referer"),
		Origin:    r.Header.Get("Origin"),
	}

	leadID, err := h.service.Submit(r.Context(), payload, meta)
	if err != nil {
		h.renderSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"leadId":  leadID,
	})
}

func (h *Handler) renderSubmitError(w http.ResponseWriter, err error) {
	var fieldErr *FieldError
	var spamErr *SpamError
	var limitErr *RateLimitError

	switch {
	case errors.As(err, &fieldErr):
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErr.Message, fieldErr.Field)
	case errors.As(err, &spamErr):
		// Reasons stay server-side so abusive callers learn nothing.
		writeError(w, http.StatusBadRequest, CodeSpam, "submission rejected", "")
	case errors.As(err, &limitErr):
		w.Header().Set("Retry-After", strconv.Itoa(limitErr.ResetMinutes*60))
		message := fmt.Sprintf("rate limit exceeded, retry in %d minutes", limitErr.ResetMinutes)
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, message, "")
	case errors.Is(err, ErrDuplicateLead):
		writeError(w, http.StatusConflict, CodeDuplicate, "lead already exists", "")
	default:
		h.logger.Error("lead submission failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", "")
	}
}

type listParams struct {
	LeadID string
	Filter QueryFilter
	Format string
}

// parseListParams validates retrieval query parameters. The returned params
// are valid as far as parsing got, so callers can still read Format when a
// later parameter fails.
func parseListParams(q url.Values) (*listParams, *FieldError) {
	p := &listParams{Format: "raw"}
	p.Filter.Limit = defaultPageSize

	if raw := q.Get("format"); raw != "" {
		if raw != "raw" && raw != "export" {
			return p, &FieldError{Field: "format", Message: `format must be "raw" or "export"`}
		}
		p.Format = raw
	}

	if raw := q.Get("leadId"); raw != "" {
		if _, err := uuid.Parse(raw); err != nil {
			return p, &FieldError{Field: "leadId", Message: "leadId must be a valid UUID"}
		}
		p.LeadID = raw
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			return p, &FieldError{Field: "limit", Message: "limit must be between 1 and 100"}
		}
		p.Filter.Limit = int32(n)
	}

	if raw := q.Get("email"); raw != "" {
		email := strings.ToLower(sanitize(raw))
		if !emailPattern.MatchString(email) {
			return p, &FieldError{Field: "email", Message: "email must be a valid address"}
		}
		p.Filter.Email = email
	}

	if raw := q.Get("startDate"); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return p, &FieldError{Field: "startDate", Message: "startDate must be an ISO-8601 timestamp"}
		}
		p.Filter.StartDate = &t
	}
	if raw := q.Get("endDate"); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return p, &FieldError{Field: "endDate", Message: "endDate must be an ISO-8601 timestamp"}
		}
		p.Filter.EndDate = &t
	}
	if p.Filter.StartDate != nil && p.Filter.EndDate != nil && p.Filter.StartDate.After(*p.Filter.EndDate) {
		return p, &FieldError{Field: "startDate", Message: "startDate must not be after endDate"}
	}

	p.Filter.NextToken = q.Get("nextToken")
	return p, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// ListLeads handles GET /leads requests.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	params, fieldErr := parseListParams(r.URL.Query())
	if fieldErr != nil {
		h.metrics.ObserveRetrieval("bad_request", params.Format)
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErr.Message, fieldErr.Field)
		return
	}

	if params.LeadID != "" {
		h.getLead(w, r, params)
		return
	}

	page, err := h.store.Query(r.Context(), params.Filter)
	if err != nil {
		if errors.Is(err, ErrInvalidPageToken) {
			h.metrics.ObserveRetrieval("bad_request", params.Format)
			writeError(w, http.StatusBadRequest, CodeValidation, "nextToken is not valid for this query", "nextToken")
			return
		}
		h.logger.Error("lead query failed", "error", err)
		h.metrics.ObserveRetrieval("error", params.Format)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", "")
		return
	}

	h.metrics.ObserveRetrieval("ok", params.Format)
	writeJSON(w, http.StatusOK, listEnvelope(page.Items, page.NextToken, params.Format))
}

func (h *Handler) getLead(w http.ResponseWriter, r *http.Request, params *listParams) {
	lead, err := h.store.GetByID(r.Context(), params.LeadID)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			h.metrics.ObserveRetrieval("not_found", params.Format)
			writeError(w, http.StatusNotFound, CodeNotFound, "lead not found", "")
			return
		}
		h.logger.Error("lead lookup failed", "error", err, "lead_id", params.LeadID)
		h.metrics.ObserveRetrieval("error", params.Format)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", "")
		return
	}

	h.metrics.ObserveRetrieval("ok", params.Format)
	writeJSON(w, http.StatusOK, listEnvelope([]*Lead{lead}, "", params.Format))
}

// listEnvelope renders the retrieval response; data holds raw leads or
// export records depending on format. nextToken is always present so
// callers can page deterministically; "" means the sequence is exhausted.
func listEnvelope(items []*Lead, nextToken, format string) map[string]any {
	var data any = items
	if format == "export" {
		records := make([]map[string]string, 0, len(items))
		for _, lead := range items {
			records = append(records, ExportLead(lead))
		}
		data = records
	}
	return map[string]any{
		"success":   true,
		"data":      data,
		"count":     len(items),
		"nextToken": nextToken,
		"hasMore":   nextToken != "",
	}
}

// HealthCheck handles GET /health requests with a store reachability probe.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("health probe failed", "error", err)
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// clientIP extracts the caller address. The router's RealIP middleware has
// already folded forwarding headers into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders the structured error envelope shared by all endpoints.
func writeError(w http.ResponseWriter, status int, code, message, field string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   errorBody{Code: code, Message: message, Field: field},
	})
}
