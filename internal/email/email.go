package email

import (
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

// Sender delivers a single email. Delivery is best-effort: callers log
// failures and move on, they never abort the operation that triggered the
// email.
type Sender interface {
	Send(to, subject, textBody, htmlBody string) error
}

// SMTPSender sends mail through an SMTP relay configured via environment
// variables (EMAIL_HOST, EMAIL_PORT, EMAIL_USER, EMAIL_PASS,
// EMAIL_SENDER_NAME).
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSenderFromEnv builds an SMTPSender from the environment. The second
// return value is false when EMAIL_HOST is unset, in which case callers
// should fall back to the LogSender.
func NewSMTPSenderFromEnv() (*SMTPSender, bool) {
	host := os.Getenv("EMAIL_HOST")
	if host == "" {
		return nil, false
	}

	port, err := strconv.Atoi(os.Getenv("EMAIL_PORT"))
	if err != nil {
		port = 587
	}

	user := os.Getenv("EMAIL_USER")
	pass := os.Getenv("EMAIL_PASS")

	senderName := os.Getenv("EMAIL_SENDER_NAME")
	if senderName == "" {
		senderName = "Auction Marketplace"
	}

	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   senderName + " <" + user + ">",
	}, true
}

func (s *SMTPSender) Send(to, subject, textBody, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	return s.dialer.DialAndSend(m)
}

// LogSender is used when no SMTP relay is configured; it records the email in
// the application log and reports success.
type LogSender struct{}

func (LogSender) Send(to, subject, textBody, htmlBody string) error {
	log.Info().
		Str("component", "email").
		Str("to", to).
		Str("subject", subject).
		Msg("email delivery skipped: no SMTP relay configured")
	return nil
}
