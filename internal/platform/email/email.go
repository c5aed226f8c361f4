package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"backoffice/internal/domain/reports"
	"backoffice/internal/platform/config"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject string, body []byte, contentType string) error
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, string, string, string, []byte, string) error {
	return nil
}

type smtpMailer struct {
	cfg config.Config
}

func NewMailer(cfg config.Config) Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return noopMailer{}
	}
	return &smtpMailer{cfg: cfg}
}

func (s *smtpMailer) Send(ctx context.Context, from, to, subject string, body []byte, contentType string) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	msg := buildMessage(from, to, subject, body, contentType)

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.SMTPUseTLS {
		tlsConfig := &tls.Config{ServerName: s.cfg.SMTPHost}
		if err := client.StartTLS(tlsConfig); err != nil {
			return err
		}
	}

	if s.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, to, subject string, body []byte, contentType string) []byte {
	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: %s", contentType),
		"",
	}
	return append([]byte(strings.Join(headers, "\r\n")+"\r\n"), body...)
}

// DigestNotifier mails each digest to one address.
type DigestNotifier struct {
	mailer Mailer
	from   string
	to     string
}

// NewDigestNotifier returns nil unless email is enabled and a recipient is set.
func NewDigestNotifier(cfg config.Config) *DigestNotifier {
	if !cfg.EmailEnabled || strings.TrimSpace(cfg.DigestEmailTo) == "" {
		return nil
	}
	return &DigestNotifier{mailer: NewMailer(cfg), from: cfg.EmailFrom, to: cfg.DigestEmailTo}
}

func (n *DigestNotifier) Name() string { return "email" }

func (n *DigestNotifier) Notify(ctx context.Context, digest reports.Digest) error {
	body, contentType, err := digestBody(digest)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, n.from, n.to, digest.Subject, body, contentType)
}

// digestBody renders the digest as multipart/mixed: the HTML text first,
// then each attachment base64-encoded.
func digestBody(digest reports.Digest) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset="UTF-8"`},
	})
	if err != nil {
		return nil, "", err
	}
	html := strings.ReplaceAll(digest.Text, "\n", "<br>\r\n")
	if _, err := text.Write([]byte(html)); err != nil {
		return nil, "", err
	}

	for _, attachment := range digest.Attachments {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {attachment.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf(`attachment; filename="%s"`, attachment.Name)},
		})
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(wrapBase64(attachment.Data)); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "multipart/mixed; boundary=" + mw.Boundary(), nil
}

// wrapBase64 encodes data in 76-column lines.
func wrapBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var out bytes.Buffer
	for len(encoded) > 76 {
		out.WriteString(encoded[:76])
		out.WriteString("\r\n")
		encoded = encoded[76:]
	}
	out.WriteString(encoded)
	return out.Bytes()
}
