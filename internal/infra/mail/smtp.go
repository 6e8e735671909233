// Package mail implements mail transports: SMTP for real delivery and a logging
// transport for development.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	dmail "subscription_notifier/internal/domain/mail"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Secure   bool // implicit TLS (465); otherwise STARTTLS when offered
}

// SMTPTransport sends messages through an SMTP relay.
type SMTPTransport struct {
	cfg    Config
	logger *logrus.Entry
	now    func() time.Time
}

func NewSMTPTransport(cfg Config, logger *logrus.Entry) *SMTPTransport {
	return &SMTPTransport{
		cfg:    cfg,
		logger: logger.WithField("component", "smtp"),
		now:    time.Now,
	}
}

// Send delivers msg and returns the Message-ID it was sent with.
func (t *SMTPTransport) Send(ctx context.Context, msg dmail.Message) (string, error) {
	messageID := fmt.Sprintf("<%s@%s>", ulid.Make().String(), t.cfg.Host)
	raw, err := buildMessage(t.fromHeader(), msg, messageID, t.now())
	if err != nil {
		return "", err
	}

	client, err := t.dial(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if t.cfg.Username != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return "", fmt.Errorf("auth failed: %w", err)
		}
	}
	if err := sendData(client, t.cfg.From, msg.To, raw); err != nil {
		return "", err
	}
	if err := client.Quit(); err != nil {
		t.logger.WithError(err).Debug("QUIT failed after successful delivery")
	}
	return messageID, nil
}

func (t *SMTPTransport) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	tlsConfig := &tls.Config{ServerName: t.cfg.Host}

	var (
		conn net.Conn
		err  error
	)
	if t.cfg.Secure {
		dialer := &tls.Dialer{Config: tlsConfig}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s failed: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp client failed: %w", err)
	}
	if !t.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}
	return client, nil
}

func (t *SMTPTransport) fromHeader() string {
	addr := mail.Address{Name: t.cfg.FromName, Address: t.cfg.From}
	return addr.String()
}

func sendData(client *smtp.Client, from, to string, raw []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}

// buildMessage renders a multipart/alternative message with a text and an HTML part.
func buildMessage(from string, msg dmail.Message, messageID string, date time.Time) ([]byte, error) {
	if strings.ContainsAny(msg.To, "\r\n") {
		return nil, fmt.Errorf("invalid recipient %q", msg.To)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=\"utf-8\"", msg.Text},
		{"text/html; charset=\"utf-8\"", msg.HTML},
	} {
		if part.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("create mime part: %w", err)
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("encode mime part: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("encode mime part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", from)
	fmt.Fprintf(&out, "To: %s\r\n", msg.To)
	fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&out, "Date: %s\r\n", date.Format(time.RFC1123Z))
	fmt.Fprintf(&out, "Message-ID: %s\r\n", messageID)
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}
