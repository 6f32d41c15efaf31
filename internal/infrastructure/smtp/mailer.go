package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"time"

	"github.com/festhive-otp/internal/config"
	"github.com/festhive-otp/internal/pkg/id"
)

const (
	boundaryPrefix = "otp-"
	defaultTimeout = 10 * time.Second
)

var htmlBody = template.Must(template.New("otp").Parse(
	`<p>Your verification code is: <strong>{{.Code}}</strong></p>` +
		`<p>This code will expire in {{.Minutes}} minutes.</p>` +
		`<p>If you did not request this code you can ignore this email.</p>` +
		`<p>{{.App}}</p>`))

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers verification codes by email.
type Mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	appName  string
	ttl      time.Duration
	timeout  time.Duration
	send     sendFunc
}

func NewMailer(cfg *config.Config) *Mailer {
	m := &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		appName:  cfg.MailAppName,
		ttl:      cfg.OTPTTL,
		timeout:  cfg.SMTPTimeout,
	}
	if m.timeout <= 0 {
		m.timeout = defaultTimeout
	}
	m.send = m.sendMail
	return m
}

// Send mails code to the email address in identity.
func (m *Mailer) Send(ctx context.Context, identity, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := m.buildMessage(identity, code)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := m.send(ctx, addr, auth, m.from, []string{identity}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// sendMail runs one SMTP transaction bounded by ctx and m.timeout.
func (m *Mailer) sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (m *Mailer) subject() string {
	return fmt.Sprintf("Your %s Verification Code", m.appName)
}

func (m *Mailer) minutes() int {
	return int(m.ttl.Round(time.Minute) / time.Minute)
}

func (m *Mailer) buildMessage(to, code string) ([]byte, error) {
	var html bytes.Buffer
	err := htmlBody.Execute(&html, struct {
		Code    string
		Minutes int
		App     string
	}{code, m.minutes(), m.appName})
	if err != nil {
		return nil, fmt.Errorf("render otp mail: %w", err)
	}
	text := fmt.Sprintf("Your verification code is: %s\r\nThis code will expire in %d minutes.\r\n", code, m.minutes())
	boundary := boundaryPrefix + id.New()

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.subject()))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.Write(html.Bytes())
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes(), nil
}
