package identity

import "strings"

// EmailAllowed reports whether the address belongs to one of the allowed domains.
// Domains are matched as "@"+domain suffixes so "evil-u.northwestern.edu" never passes.
func EmailAllowed(email string, domains []string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return false
	}
	for _, domain := range domains {
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
		if domain == "" {
			continue
		}
		if strings.HasSuffix(email, "@"+domain) {
			return true
		}
	}
	return false
}
