package leads

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	nameMinLen        = 2
	nameMaxLen        = 50
	companyMaxLen     = 200
	phoneMaxLen       = 20
	customKeyMaxLen   = 50
	customValueMaxLen = 500
)

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z .'-]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9+()\-. ]+$`)

	// unsafeChars removes markup-significant characters so stored values
	// are inert in downstream consumers.
	unsafeChars = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "&", "")
)

// Submission is the sanitized, validated output of a raw payload, ready for
// spam scoring and persistence.
type Submission struct {
	Name         string
	Email        string
	Company      string
	Phone        string
	CustomFields map[string]string
}

// sanitize strips unsafe characters and trims surrounding whitespace.
func sanitize(s string) string {
	return strings.TrimSpace(unsafeChars.Replace(s))
}

// stringifyScalar renders a decoded JSON scalar as a string. Objects,
// arrays, and nulls report ok=false and are ignored by the caller.
func stringifyScalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// reservedFields are top-level payload keys that map to structured contact
// fields; everything else is folded into customFields.
var reservedFields = map[string]struct{}{
	"name":         {},
	"email":        {},
	"company":      {},
	"phone":        {},
	"customFields": {},
}

// ValidateSubmission sanitizes and validates a decoded JSON payload.
// maxCustomFields bounds how many custom entries are retained; anything
// beyond the cap is dropped silently rather than failing the submission.
// The function is pure: it never touches the store or the clock.
func ValidateSubmission(payload map[string]any, maxCustomFields int) (*Submission, *FieldError) {
	sub := &Submission{}

	name, _ := stringifyScalar(payload["name"])
	sub.Name = sanitize(name)
	if sub.Name == "" {
		return nil, &FieldError{Field: "name", Message: "name is required"}
	}
	if n := utf8.RuneCountInString(sub.Name); n < nameMinLen || n > nameMaxLen {
		return nil, &FieldError{Field: "name", Message: "name must be between 2 and 50 characters"}
	}
	if !namePattern.MatchString(sub.Name) {
		return nil, &FieldError{Field: "name", Message: "name may only contain letters, spaces, hyphens, apostrophes, and periods"}
	}

	email, _ := stringifyScalar(payload["email"])
	sub.Email = strings.ToLower(sanitize(email))
	if sub.Email == "" {
		return nil, &FieldError{Field: "email", Message: "email is required"}
	}
	if !emailPattern.MatchString(sub.Email) {
		return nil, &FieldError{Field: "email", Message: "email must be a valid address"}
	}

	if company, ok := stringifyScalar(payload["company"]); ok {
		sub.Company = sanitize(company)
		if utf8.RuneCountInString(sub.Company) > companyMaxLen {
			return nil, &FieldError{Field: "company", Message: "company must be 200 characters or fewer"}
		}
	}

	if phone, ok := stringifyScalar(payload["phone"]); ok {
		sub.Phone = sanitize(phone)
		if sub.Phone != "" {
			if utf8.RuneCountInString(sub.Phone) > phoneMaxLen {
				return nil, &FieldError{Field: "phone", Message: "phone must be 20 characters or fewer"}
			}
			if !phonePattern.MatchString(sub.Phone) {
				return nil, &FieldError{Field: "phone", Message: "phone may only contain digits and punctuation"}
			}
		}
	}

	sub.CustomFields = collectCustomFields(payload, maxCustomFields)
	return sub, nil
}

// collectCustomFields merges the explicit customFields object with unknown
// top-level keys, sanitizing and truncating each entry. Keys are visited in
// sorted order so the count cap drops the same entries on every submission
// of the same payload.
func collectCustomFields(payload map[string]any, maxCustomFields int) map[string]string {
	out := make(map[string]string)

	if nested, ok := payload["customFields"].(map[string]any); ok {
		addCustomFields(out, nested, maxCustomFields)
	}

	extras := make(map[string]any)
	for key, value := range payload {
		if _, reserved := reservedFields[key]; reserved {
			continue
		}
		extras[key] = value
	}
	addCustomFields(out, extras, maxCustomFields)

	if len(out) == 0 {
		return nil
	}
	return out
}

func addCustomFields(dst map[string]string, src map[string]any, max int) {
	keys := make([]string, 0, len(src))
	for key := range src {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, ok := stringifyScalar(src[key])
		if !ok {
			continue
		}
		cleanKey := truncate(sanitize(key), customKeyMaxLen)
		cleanValue := truncate(sanitize(value), customValueMaxLen)
		if cleanKey == "" || cleanValue == "" {
			continue
		}
		if _, exists := dst[cleanKey]; !exists && len(dst) >= max {
			continue
		}
		dst[cleanKey] = cleanValue
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
