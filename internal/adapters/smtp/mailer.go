// Package smtp delivers published certificates to their recipients over
// SMTP with STARTTLS.
package smtp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"

	"github.com/ark074/SecureWipe3/internal/core"
	apperrors "github.com/ark074/SecureWipe3/internal/errors"
)

// Config describes the SMTP endpoint and sender identity.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends certificate emails with the artifact attached. Delivery
// failures surface as Delivery errors; they never roll back job state.
type Mailer struct {
	cfg    Config
	logger *slog.Logger
	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer validates the configuration and constructs a Mailer.
func NewMailer(cfg Config, logger *slog.Logger) (*Mailer, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("smtp host, username, and password are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if logger != nil {
		logger = logger.With("component", "smtp_mailer")
	}
	return &Mailer{cfg: cfg, logger: logger, send: smtp.SendMail}, nil
}

var _ core.Deliverer = (*Mailer)(nil)

// Deliver sends the certificate email. The artifact at d.ArtifactRef is
// attached base64-encoded.
func (m *Mailer) Deliver(ctx context.Context, d core.Delivery) error {
	if strings.TrimSpace(d.To) == "" {
		return apperrors.ValidationField("to", "delivery target is required")
	}

	msg, err := m.buildMessage(d)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	// smtp.SendMail negotiates STARTTLS when the server offers it.
	if err := m.send(addr, auth, m.cfg.From, []string{d.To}, msg); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDelivery, "send certificate email")
	}

	if m.logger != nil {
		m.logger.InfoContext(ctx, "certificate delivered", "to", d.To, "artifact", d.ArtifactRef)
	}
	return nil
}

const attachmentLineLen = 76

func (m *Mailer) buildMessage(d core.Delivery) ([]byte, error) {
	const boundary = "securewipe-cert-boundary"

	var buf bytes.Buffer
	writeHeader := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	writeHeader("From", m.cfg.From)
	writeHeader("To", d.To)
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", d.Subject))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `multipart/mixed; boundary="`+boundary+`"`)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(d.Body)
	buf.WriteString("\r\n")

	if d.ArtifactRef != "" {
		data, err := os.ReadFile(d.ArtifactRef)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDelivery, "read certificate artifact")
		}

		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", filepath.Base(d.ArtifactRef))

		encoded := base64.StdEncoding.EncodeToString(data)
		for len(encoded) > 0 {
			n := min(attachmentLineLen, len(encoded))
			buf.WriteString(encoded[:n])
			buf.WriteString("\r\n")
			encoded = encoded[n:]
		}
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), nil
}
