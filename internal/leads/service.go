package leads

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/formgate/leadcapture/internal/observability/metrics"
	"github.com/formgate/leadcapture/internal/ratelimit"
	"github.com/formgate/leadcapture/pkg/logging"
)

// RateLimiter is the per-client quota surface the submission pipeline uses.
type RateLimiter interface {
	Check(ctx context.Context, clientID string) (ratelimit.Decision, error)
	Record(ctx context.Context, clientID string) error
}

// Notifier is told about each accepted lead. Delivery is best-effort; a
// failure never fails the submission.
type Notifier interface {
	LeadCaptured(ctx context.Context, lead *Lead) error
}

// SubmissionService runs the capture pipeline: validate, screen for spam,
// enforce the rate limit, persist, then fire side effects.
type SubmissionService struct {
	store           LeadStore
	limiter         RateLimiter
	notifier        Notifier
	maxCustomFields int
	logger          *logging.Logger
	metrics         *metrics.LeadMetrics
	tracer          trace.Tracer
	now             func() time.Time
	newID           func() string
}

// NewSubmissionService wires the pipeline. notifier and m may be nil.
func NewSubmissionService(store LeadStore, limiter RateLimiter, notifier Notifier, maxCustomFields int, logger *logging.Logger, m *metrics.LeadMetrics) *SubmissionService {
	if store == nil {
		panic("leads: store cannot be nil")
	}
	if limiter == nil {
		panic("leads: limiter cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if maxCustomFields <= 0 {
		maxCustomFields = 20
	}

	return &SubmissionService{
		store:           store,
		limiter:         limiter,
		notifier:        notifier,
		maxCustomFields: maxCustomFields,
		logger:          logger,
		metrics:         m,
		tracer:          otel.Tracer("leadcapture.internal.leads.submission"),
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// Submit runs one decoded payload through the pipeline and returns the
// stored lead's id. Failures are typed: *FieldError, *SpamError,
// *RateLimitError, ErrDuplicateLead, or *StorageError.
func (s *SubmissionService) Submit(ctx context.Context, payload map[string]any, meta RequestMeta) (string, error) {
	ctx, span := s.tracer.Start(ctx, "leads.submit")
	defer span.End()

	sub, fieldErr := ValidateSubmission(payload, s.maxCustomFields)
	if fieldErr != nil {
		s.metrics.ObserveSubmission("validation_failed")
		return "", fieldErr
	}

	verdict := ScoreSubmission(sub, meta)
	if verdict.IsSpam {
		s.metrics.ObserveSubmission("spam_rejected")
		s.logger.Warn("submission rejected as spam",
			"email", sub.Email,
			"reasons", strings.Join(verdict.Reasons, "; "))
		span.SetAttributes(attribute.Int("leadcapture.spam_signals", len(verdict.Reasons)))
		return "", &SpamError{Reasons: verdict.Reasons}
	}

	decision, err := s.limiter.Check(ctx, meta.IPAddress)
	if err != nil {
		s.metrics.ObserveSubmission("limiter_error")
		span.RecordError(err)
		return "", &StorageError{Op: "rate limit check", Err: err}
	}
	if !decision.Allowed {
		s.metrics.ObserveSubmission("rate_limited")
		return "", &RateLimitError{CurrentCount: decision.CurrentCount, ResetMinutes: decision.ResetMinutes}
	}

	now := s.now()
	lead := &Lead{
		LeadID:    s.newID(),
		CreatedAt: FormatTime(now),
		UpdatedAt: FormatTime(now),
		Source:    SourceFromMeta(meta),
		Contact: Contact{
			Name:    sub.Name,
			Email:   sub.Email,
			Company: sub.Company,
			Phone:   sub.Phone,
		},
		CustomFields: sub.CustomFields,
		Metadata:     meta,
	}
	span.SetAttributes(attribute.String("leadcapture.lead_id", lead.LeadID))

	if err := s.store.Insert(ctx, lead); err != nil {
		if errors.Is(err, ErrDuplicateLead) {
			s.metrics.ObserveSubmission("duplicate")
			return "", err
		}
		s.metrics.ObserveSubmission("storage_error")
		span.RecordError(err)
		return "", err
	}

	// The counter only moves for leads that are durably stored; a failed
	// increment relaxes the limit slightly and is not worth failing over.
	if err := s.limiter.Record(ctx, meta.IPAddress); err != nil {
		s.logger.Warn("rate limit record failed", "client", meta.IPAddress, "error", err)
	}

	if s.notifier != nil {
		if err := s.notifier.LeadCaptured(ctx, lead); err != nil {
			s.logger.Warn("lead notification failed", "lead_id", lead.LeadID, "error", err)
		}
	}

	s.metrics.ObserveSubmission("accepted")
	s.logger.Info("lead captured", "lead_id", lead.LeadID, "source", lead.Source)
	return lead.LeadID, nil
}
