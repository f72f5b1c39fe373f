package mailer

import (
	"strings"
	"testing"
)

func TestCompose(t *testing.T) {
	msg := string(Compose("noreply@taxbridge.in", "ca@example.org", "You were hired", "A client hired you."))

	for _, want := range []string{
		"To: ca@example.org\r\n",
		"From: noreply@taxbridge.in\r\n",
		"Subject: You were hired\r\n",
		"\r\n\r\nA client hired you.",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestIsConfigured(t *testing.T) {
	if New(Config{}).IsConfigured() {
		t.Error("empty config should not be configured")
	}
	if !New(Config{Host: "smtp.example.org", Port: "587", From: "noreply@taxbridge.in"}).IsConfigured() {
		t.Error("host+from should be configured")
	}
}

func TestSend_Unconfigured(t *testing.T) {
	if err := New(Config{}).Send("x@y.org", "s", "b"); err == nil {
		t.Error("expected error from unconfigured mailer")
	}
}
