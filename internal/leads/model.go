package leads

import (
	"net/url"
	"strings"
	"time"
)

// createdAtLayout is the timestamp format stored on every lead. Fixed-width
// milliseconds keep lexicographic order identical to chronological order,
// which the email index relies on for its range key.
const createdAtLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in the canonical stored-timestamp layout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(createdAtLayout)
}

// Contact holds the validated, sanitized identity fields of a submission.
type Contact struct {
	Name    string `dynamodbav:"name" json:"name"`
	Email   string `dynamodbav:"email" json:"email"`
	Company string `dynamodbav:"company,omitempty" json:"company,omitempty"`
	Phone   string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
}

// RequestMeta carries transport-level facts about a submission. Values are
// captured verbatim for audit and spam scoring; they are never validated.
type RequestMeta struct {
	IPAddress string `dynamodbav:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	UserAgent string `dynamodbav:"userAgent,omitempty" json:"userAgent,omitempty"`
	Referrer  string `dynamodbav:"referrer,omitempty" json:"referrer,omitempty"`
	Origin    string `dynamodbav:"origin,omitempty" json:"origin,omitempty"`
}

// Lead is one captured submission as persisted and returned by the API.
//
// Email is duplicated at the top level because the by-email index needs a
// scalar key attribute; it always mirrors Contact.Email and is hidden from
// JSON responses.
type Lead struct {
	LeadID       string            `dynamodbav:"leadId" json:"leadId"`
	Email        string            `dynamodbav:"email" json:"-"`
	CreatedAt    string            `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt    string            `dynamodbav:"updatedAt" json:"updatedAt"`
	Source       string            `dynamodbav:"source" json:"source"`
	Contact      Contact           `dynamodbav:"contact" json:"contact"`
	CustomFields map[string]string `dynamodbav:"customFields,omitempty" json:"customFields,omitempty"`
	Metadata     RequestMeta       `dynamodbav:"metadata" json:"metadata"`
}

// SourceFromMeta derives where a submission came from: the Origin host when
// present, then the Referrer host, falling back to "direct".
func SourceFromMeta(meta RequestMeta) string {
	for _, raw := range []string{meta.Origin, meta.Referrer} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	return "direct"
}
