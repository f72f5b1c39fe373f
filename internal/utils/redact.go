package utils

import "regexp"

// Contact redaction is the platform's anti-disintermediation control: every
// message body passes through here server-side before storage, so neither
// party can hand over a phone number or email before the workspace is paid
// for and unlocked.

var (
	phoneRe = regexp.MustCompile(`[0-9]{10,}`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

const (
	phoneMask = "**********"
	emailMask = "***@***.com"
)

// RedactContacts masks phone-number runs (10+ digits) and email-shaped tokens.
// The masks contain no digits and no word characters around '@', so applying
// it twice is a no-op.
func RedactContacts(text string) string {
	text = emailRe.ReplaceAllString(text, emailMask)
	text = phoneRe.ReplaceAllString(text, phoneMask)
	return text
}
