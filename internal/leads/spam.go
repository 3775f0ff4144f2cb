package leads

import (
	"fmt"
	"strings"
)

// spamCustomFieldLimit is the custom-field count above which a submission
// looks machine-generated. Distinct from the validation cap: entries up to
// the validation cap are stored, but crossing this line counts as a signal.
const spamCustomFieldLimit = 10

// suspiciousNameTokens flag names that are almost never real submitters.
var suspiciousNameTokens = []string{"test", "bot", "admin", "fake", "sample"}

// disposableEmailDomains are throwaway-mail providers commonly used by
// form-spam tooling.
var disposableEmailDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"temp-mail.org":     {},
	"throwawaymail.com": {},
	"yopmail.com":       {},
	"trashmail.com":     {},
	"getnada.com":       {},
	"sharklasers.com":   {},
	"maildrop.cc":       {},
}

// SpamVerdict is the outcome of scoring one submission.
type SpamVerdict struct {
	IsSpam  bool
	Reasons []string
}

// ScoreSubmission evaluates independent suspicion signals against a
// sanitized submission. A single signal never rejects on its own; two or
// more firing together do. Heuristic only, never a security boundary.
func ScoreSubmission(sub *Submission, meta RequestMeta) SpamVerdict {
	var reasons []string

	name := strings.ToLower(sub.Name)
	for _, token := range suspiciousNameTokens {
		if strings.Contains(name, token) {
			reasons = append(reasons, fmt.Sprintf("name contains suspicious token %q", token))
			break
		}
	}

	if _, domain, found := strings.Cut(sub.Email, "@"); found {
		if _, disposable := disposableEmailDomains[domain]; disposable {
			reasons = append(reasons, fmt.Sprintf("disposable email domain %q", domain))
		}
	}

	if strings.TrimSpace(meta.UserAgent) == "" {
		reasons = append(reasons, "missing user agent")
	}

	if n := len(sub.CustomFields); n > spamCustomFieldLimit {
		reasons = append(reasons, fmt.Sprintf("excessive custom fields (%d)", n))
	}

	return SpamVerdict{IsSpam: len(reasons) >= 2, Reasons: reasons}
}
