package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/formgate/leadcapture/internal/leads"
	"github.com/formgate/leadcapture/pkg/logging"
)

// NewEmailSender selects the email provider. "ses" and "sendgrid" force one
// provider; anything else prefers SES when a client is available and falls
// back to SendGrid. Returns nil when nothing usable is configured.
func NewEmailSender(provider string, sesClient *sesv2.Client, sesCfg SESConfig, sgCfg SendGridConfig, logger *logging.Logger) EmailSender {
	switch provider {
	case "ses":
		if s := NewSESSender(sesClient, sesCfg, logger); s != nil {
			return s
		}
	case "sendgrid":
		if s := NewSendGridSender(sgCfg, logger); s != nil {
			return s
		}
	default:
		if s := NewSESSender(sesClient, sesCfg, logger); s != nil {
			return s
		}
		if s := NewSendGridSender(sgCfg, logger); s != nil {
			return s
		}
	}
	return nil
}

// Service emails the configured operator address whenever a lead is accepted.
// Delivery is best-effort: the submission pipeline logs failures and moves on.
type Service struct {
	email  EmailSender
	to     string
	logger *logging.Logger
}

// NewService creates the lead notification service. Returns nil when no
// sender or recipient is configured so callers can leave the notifier unset.
func NewService(email EmailSender, to string, logger *logging.Logger) *Service {
	if email == nil || to == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:  email,
		to:     to,
		logger: logger,
	}
}

// LeadCaptured sends the new-lead email for an accepted submission.
func (s *Service) LeadCaptured(ctx context.Context, lead *leads.Lead) error {
	subject := fmt.Sprintf("New lead: %s (%s)", lead.Contact.Name, lead.Source)

	body := fmt.Sprintf(`A new lead has come in!

Name: %s
Email: %s%s%s
Source: %s
Received: %s%s

Lead ID: %s`,
		lead.Contact.Name, lead.Contact.Email,
		optionalLine("Company", lead.Contact.Company), optionalLine("Phone", lead.Contact.Phone),
		lead.Source, lead.CreatedAt, customFieldLines(lead.CustomFields), lead.LeadID)

	msg := EmailMessage{
		To:      s.to,
		Subject: subject,
		Body:    body,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: lead email: %w", err)
	}

	s.logger.Info("lead notification sent", "to", s.to, "lead_id", lead.LeadID)
	return nil
}

func optionalLine(label, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf("\n%s: %s", label, value)
}

func customFieldLines(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, fields[k])
	}
	return b.String()
}

// Ensure interface compliance
var _ leads.Notifier = (*Service)(nil)
