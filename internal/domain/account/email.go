package account

import "strings"

// NormalizeEmail lower-cases the domain part of an address and keeps the
// local part exactly as submitted. Input without an "@" is only trimmed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)

	at := strings.LastIndex(email, "@")

	if at < 0 {
		return email
	}

	return email[:at] + "@" + strings.ToLower(email[at+1:])
}
