// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// buildMessage assembles a multipart/mixed MIME message with a plain
// text body and base64-encoded file attachments. Attachments that no
// longer exist on disk are skipped rather than failing the message.
func (m *Mailer) buildMessage(subject, body string, attachments []string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.Sender)
	fmt.Fprintf(&buf, "To: %s\r\n", m.cfg.Receiver)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", mw.Boundary())
	buf.WriteString("\r\n")

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, fmt.Errorf("creating body part: %w", err)
	}
	if _, err := part.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("writing body: %w", err)
	}

	for _, path := range attachments {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := attach(mw, filepath.Base(path), data); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}
	return buf.Bytes(), nil
}

func attach(mw *multipart.Writer, name string, data []byte) error {
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Type", contentTypeFor(name))
	hdr.Set("Content-Transfer-Encoding", "base64")
	hdr.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return fmt.Errorf("creating attachment part: %w", err)
	}
	enc := base64.NewEncoder(base64.StdEncoding, part)
	if _, err := enc.Write(data); err != nil {
		return fmt.Errorf("encoding attachment %s: %w", name, err)
	}
	return enc.Close()
}

func contentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".pdf":
		return "application/pdf"
	case ".html":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// sendSMTP delivers msg over SMTP with implicit TLS, as used by port
// 465 providers.
func sendSMTP(ctx context.Context, cfg types.EmailConfig, msg []byte) error {
	addr := net.JoinHostPort(cfg.SMTPServer, strconv.Itoa(cfg.SMTPPort))
	dialer := tls.Dialer{Config: &tls.Config{ServerName: cfg.SMTPServer}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.SMTPServer)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake with %s: %w", addr, err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", cfg.Sender, cfg.Password, cfg.SMTPServer)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(cfg.Sender); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(cfg.Receiver); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing message: %w", err)
	}
	return client.Quit()
}
