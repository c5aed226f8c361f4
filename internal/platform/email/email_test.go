package email

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"backoffice/internal/domain/reports"
	"backoffice/internal/platform/config"
)

type captureMailer struct {
	to          string
	subject     string
	body        []byte
	contentType string
}

func (c *captureMailer) Send(_ context.Context, _, to, subject string, body []byte, contentType string) error {
	c.to, c.subject, c.body, c.contentType = to, subject, body, contentType
	return nil
}

func TestDigestNotifierBuildsMultipart(t *testing.T) {
	mailer := &captureMailer{}
	n := &DigestNotifier{mailer: mailer, from: "noreply@example.com", to: "owner@example.com"}
	digest := reports.Digest{
		Subject:     "Settlement digest 2025-03-01..2025-03-15",
		Text:        "<b>Sales payroll 2025-03</b>\nNet: 10.00",
		Attachments: []reports.Attachment{{Name: "sales-all-2025-03.xlsx", ContentType: "application/octet-stream", Data: []byte("PK\x03\x04")}},
	}
	if err := n.Notify(context.Background(), digest); err != nil {
		t.Fatalf("expected notify to succeed, got %v", err)
	}
	if mailer.to != "owner@example.com" || mailer.subject != digest.Subject {
		t.Fatalf("expected recipient and subject passed through, got %q %q", mailer.to, mailer.subject)
	}

	mediaType, params, err := mime.ParseMediaType(mailer.contentType)
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("expected multipart/mixed, got %q (%v)", mailer.contentType, err)
	}
	reader := multipart.NewReader(bytes.NewReader(mailer.body), params["boundary"])

	first, err := reader.NextPart()
	if err != nil {
		t.Fatalf("expected text part, got %v", err)
	}
	text, _ := io.ReadAll(first)
	if !bytes.Contains(text, []byte("<br>")) {
		t.Fatalf("expected line breaks converted, got %q", text)
	}

	second, err := reader.NextPart()
	if err != nil {
		t.Fatalf("expected attachment part, got %v", err)
	}
	if second.FileName() != "sales-all-2025-03.xlsx" {
		t.Fatalf("expected attachment filename, got %q", second.FileName())
	}
}

func TestNewDigestNotifierDisabled(t *testing.T) {
	if n := NewDigestNotifier(config.Config{EmailEnabled: true}); n != nil {
		t.Fatal("expected nil notifier without recipient")
	}
	if n := NewDigestNotifier(config.Config{DigestEmailTo: "a@b.c"}); n != nil {
		t.Fatal("expected nil notifier when email disabled")
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := buildMessage("a@b.c", "d@e.f", "Hi", []byte("body"), "text/plain")
	if !bytes.HasPrefix(msg, []byte("From: a@b.c\r\nTo: d@e.f\r\nSubject: Hi\r\n")) {
		t.Fatalf("unexpected headers: %q", msg)
	}
	if !bytes.HasSuffix(msg, []byte("\r\n\r\nbody")) {
		t.Fatalf("expected body after blank line, got %q", msg)
	}
}
