package smtp

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/festhive-otp/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMailer() *Mailer {
	return NewMailer(&config.Config{
		SMTPHost:    "mail.local",
		SMTPPort:    "2525",
		SMTPFrom:    "noreply@festhive.test",
		MailAppName: "IES FESTHIVE",
		OTPTTL:      10 * time.Minute,
	})
}

func TestBuildMessage(t *testing.T) {
	m := testMailer()
	msg, err := m.buildMessage("student@college.edu", "482913")
	require.NoError(t, err)
	s := string(msg)

	assert.Contains(t, s, "From: noreply@festhive.test\r\n")
	assert.Contains(t, s, "To: student@college.edu\r\n")
	assert.Contains(t, s, "Subject: Your IES FESTHIVE Verification Code\r\n")
	assert.Contains(t, s, "multipart/alternative")
	assert.Contains(t, s, "Your verification code is: 482913")
	assert.Contains(t, s, "<strong>482913</strong>")
	assert.Contains(t, s, "expire in 10 minutes")
	assert.Equal(t, 3, strings.Count(s, "--"+boundaryPrefix))
}

func TestSend_UsesTransport(t *testing.T) {
	m := testMailer()
	var (
		gotAddr string
		gotTo   []string
		gotAuth smtp.Auth
	)
	m.send = func(_ context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotAuth = addr, to, a
		assert.Equal(t, "noreply@festhive.test", from)
		assert.Contains(t, string(msg), "123456")
		return nil
	}

	require.NoError(t, m.Send(context.Background(), "student@college.edu", "123456"))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"student@college.edu"}, gotTo)
	assert.Nil(t, gotAuth)
}

func TestSend_WrapsTransportError(t *testing.T) {
	m := testMailer()
	boom := errors.New("connection refused")
	m.send = func(context.Context, string, smtp.Auth, string, []string, []byte) error { return boom }

	err := m.Send(context.Background(), "student@college.edu", "123456")
	assert.ErrorIs(t, err, boom)
}

func TestSend_CancelledContext(t *testing.T) {
	m := testMailer()
	m.send = func(context.Context, string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("transport must not be called")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, "student@college.edu", "123456"), context.Canceled)
}

// fakeSMTPServer accepts one connection and speaks just enough SMTP for a
// single delivery, returning the DATA payload on the channel.
func fakeSMTPServer(t *testing.T) (addr string, got <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 fake.smtp ready")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			switch cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0]); cmd {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250-fake.smtp")
				_ = tp.PrintfLine("250 8BITMIME")
			case "MAIL", "RCPT":
				_ = tp.PrintfLine("250 ok")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				out <- string(body)
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 unsupported")
			}
		}
	}()
	return ln.Addr().String(), out
}

func mailerFor(t *testing.T, addr string, timeout time.Duration) *Mailer {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	return NewMailer(&config.Config{
		SMTPHost:    host,
		SMTPPort:    port,
		SMTPFrom:    "noreply@festhive.test",
		MailAppName: "IES FESTHIVE",
		OTPTTL:      10 * time.Minute,
		SMTPTimeout: timeout,
	})
}

func TestSendMail_DeliversOverSMTP(t *testing.T) {
	addr, got := fakeSMTPServer(t)
	m := mailerFor(t, addr, 5*time.Second)

	require.NoError(t, m.Send(context.Background(), "student@college.edu", "271828"))
	select {
	case body := <-got:
		assert.Contains(t, body, "Your verification code is: 271828")
	case <-time.After(time.Second):
		t.Fatal("server did not receive DATA")
	}
}

func TestSendMail_HungServerRespectsContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		// Accept and never greet.
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(5 * time.Second)
		}
	}()

	m := mailerFor(t, ln.Addr().String(), time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = m.Send(ctx, "student@college.edu", "271828")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSendMail_HungServerRespectsTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(5 * time.Second)
		}
	}()

	m := mailerFor(t, ln.Addr().String(), 100*time.Millisecond)
	start := time.Now()
	err = m.Send(context.Background(), "student@college.edu", "271828")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
