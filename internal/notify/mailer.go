package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Mailer is the outbound mail collaborator. Implementations must be safe for
// sequential use from the queue consumer.
type Mailer interface {
	Send(from, to, body, subject string) error
}

// RemoveAccents folds diacritics to plain ASCII, for mail headers that some
// relays mangle otherwise.
func RemoveAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// SMTPMailer delivers through a plain SMTP relay.
type SMTPMailer struct {
	Addr string // host:port
	From string // enveloppe expéditeur
}

func (m *SMTPMailer) Send(from, to, body, subject string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", RemoveAccents(subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	recipients := strings.Split(to, ",")
	for i := range recipients {
		recipients[i] = extractAddress(recipients[i])
	}
	return smtp.SendMail(m.Addr, nil, m.From, recipients, []byte(msg.String()))
}

// extractAddress pulls the bare address out of "Name <addr>" forms.
func extractAddress(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "<"); i >= 0 {
		if j := strings.LastIndex(s, ">"); j > i {
			return s[i+1 : j]
		}
	}
	return s
}

// ConsoleMailer logs messages instead of sending them; used in development
// and tests.
type ConsoleMailer struct {
	Log  zerolog.Logger
	Sent []SentMessage
}

type SentMessage struct {
	From, To, Body, Subject string
}

func (m *ConsoleMailer) Send(from, to, body, subject string) error {
	m.Sent = append(m.Sent, SentMessage{From: from, To: to, Body: body, Subject: subject})
	m.Log.Info().Str("to", to).Str("subject", subject).Msg("mail (console)")
	return nil
}
