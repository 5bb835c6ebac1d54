package mail

import (
	"strings"

	"github.com/fhagen/clientpulse/internal/store"
)

// ResolveClient maps a sender address to a known client. Exact contact-email
// match wins; otherwise a fuzzy first-name containment check against contact
// names is attempted. Best-effort, not authoritative: a nil result just
// leaves the email unassociated.
func ResolveClient(clients []*store.Client, sender string) *store.Client {
	sender = strings.ToLower(strings.TrimSpace(sender))
	if sender == "" {
		return nil
	}

	for _, c := range clients {
		if c.ContactEmail != "" && strings.EqualFold(c.ContactEmail, sender) {
			return c
		}
	}

	// Fuzzy pass: does the sender's local part contain a contact's first name?
	local := sender
	if at := strings.Index(sender, "@"); at > 0 {
		local = sender[:at]
	}
	for _, c := range clients {
		first := firstName(c.ContactName)
		if first == "" || len(first) < 3 {
			continue
		}
		if strings.Contains(local, first) {
			return c
		}
	}

	return nil
}

func firstName(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
