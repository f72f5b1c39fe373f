// Package mailer sends transactional emails. Delivery is fire-and-forget: the
// workflow never waits on it and a send failure never rolls back a committed
// transition.
package mailer

import (
	"fmt"
	"log"
	"net/smtp"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type Mailer struct {
	cfg    Config
	server string
	auth   smtp.Auth
}

func New(cfg Config) *Mailer {
	return &Mailer{
		cfg:    cfg,
		server: cfg.Host + ":" + cfg.Port,
		auth:   smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
	}
}

func (m *Mailer) IsConfigured() bool {
	return m.cfg.Host != "" && m.cfg.From != ""
}

// Compose builds the raw RFC 5322 message bytes.
func Compose(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf(
		"To: %s\r\nFrom: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s\r\n",
		to, from, subject, body))
}

func (m *Mailer) Send(to, subject, body string) error {
	if !m.IsConfigured() {
		return fmt.Errorf("mailer not configured")
	}
	return smtp.SendMail(m.server, m.auth, m.cfg.From, []string{to}, Compose(m.cfg.From, to, subject, body))
}

// SendAsync sends in a goroutine, logging failures.
func (m *Mailer) SendAsync(to, subject, body string) {
	if !m.IsConfigured() {
		return
	}
	go func() {
		if err := m.Send(to, subject, body); err != nil {
			log.Printf("mailer: send to %s failed: %v", to, err)
		}
	}()
}
