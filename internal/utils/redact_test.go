package utils

import "testing"

func TestRedactContacts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"phone and email", "Call me at 9876543210 or a@b.com", "Call me at ********** or ***@***.com"},
		{"plain text untouched", "GST filing due next week", "GST filing due next week"},
		{"short digit run kept", "invoice #123456789 attached", "invoice #123456789 attached"},
		{"long digit run masked whole", "acct 123456789012", "acct **********"},
		{"email with dots and plus", "reach me: first.last+tax@firm.co.in", "reach me: ***@***.com"},
		{"multiple occurrences", "9876543210 / 9123456780, x@y.org", "********** / **********, ***@***.com"},
		{"digits inside words", "ref AB9876543210Z", "ref AB**********Z"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		if got := RedactContacts(tt.in); got != tt.want {
			t.Errorf("%s: RedactContacts(%q) = %q, want %q", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestRedactContacts_Idempotent(t *testing.T) {
	inputs := []string{
		"Call me at 9876543210 or a@b.com",
		"plain text",
		"********** already masked, ***@***.com too",
	}
	for _, in := range inputs {
		once := RedactContacts(in)
		twice := RedactContacts(once)
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}
