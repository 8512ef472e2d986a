// Package notify delivers one-time codes to candidates.
package notify

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type dialFunc func(network, addr string, cfg *tls.Config) (net.Conn, error)

// SMTPNotifier mails codes through an authenticated SMTP relay.
type SMTPNotifier struct {
	host, port, user, pass, from string
	send                         sendFunc
	dial                         dialFunc
}

// NewSMTPNotifier builds a notifier from the SMTP_* settings. From defaults to the user.
func NewSMTPNotifier(cfg config.Config) *SMTPNotifier {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	port := cfg.SMTPPort
	if port == "" {
		port = "587"
	}
	n := &SMTPNotifier{host: cfg.SMTPHost, port: port, user: cfg.SMTPUser, pass: cfg.SMTPPass, from: from}
	n.send = smtp.SendMail
	n.dial = func(network, addr string, cfg *tls.Config) (net.Conn, error) { return tls.Dial(network, addr, cfg) }
	if port == "465" {
		n.send = n.sendImplicitTLS
	}
	return n
}

// SendOTP mails the code. It gives up early when ctx is already done since
// net/smtp cannot be cancelled mid-dialogue.
func (n *SMTPNotifier) SendOTP(ctx domain.Context, email, interviewID, code string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("op=notify.send_otp: %w", err)
	}
	msg := buildMessage(n.from, email, code, expiresAt)
	addr := net.JoinHostPort(n.host, n.port)
	auth := smtp.PlainAuth("", n.user, n.pass, n.host)
	if err := n.send(addr, auth, n.from, []string{email}, msg); err != nil {
		return fmt.Errorf("op=notify.send_otp: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	slog.InfoContext(ctx, "otp mailed", slog.String("interview_id", interviewID), slog.Time("expires_at", expiresAt))
	return nil
}

// sendImplicitTLS is used on port 465 where STARTTLS is not offered.
func (n *SMTPNotifier) sendImplicitTLS(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := n.dial("tcp", addr, &tls.Config{ServerName: n.host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, n.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() {
		if c.Quit() != nil {
			_ = c.Close()
		}
	}()
	if err := c.Auth(a); err != nil {
		return err
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		return err
	}
	return wc.Close()
}

func buildMessage(from, to, code string, expiresAt time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: \"Interview Verification\" <" + from + ">\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: Your interview verification code\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString("Your verification code is " + code + ".\r\n")
	b.WriteString("It expires at " + expiresAt.UTC().Format(time.RFC1123) + ".\r\n")
	b.WriteString("If you did not request this code you can ignore this email.\r\n")
	return []byte(b.String())
}
