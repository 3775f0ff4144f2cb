package leads

import "strings"

// customFieldPrefix namespaces custom entries in export output so they can
// never collide with the fixed contact columns.
const customFieldPrefix = "custom_"

// ExportLead maps a stored lead to the flat contact shape expected by
// marketing-automation imports, splitting the contact name into first/last
// on the first space.
func ExportLead(lead *Lead) map[string]string {
	first, last, _ := strings.Cut(lead.Contact.Name, " ")
	out := map[string]string{
		"email":      lead.Contact.Email,
		"firstname":  first,
		"lastname":   last,
		"company":    lead.Contact.Company,
		"phone":      lead.Contact.Phone,
		"source":     lead.Source,
		"created_at": lead.CreatedAt,
		"ip_address": lead.Metadata.IPAddress,
		"user_agent": lead.Metadata.UserAgent,
		"referrer":   lead.Metadata.Referrer,
	}
	for key, value := range lead.CustomFields {
		out[customFieldPrefix+key] = value
	}
	return out
}
