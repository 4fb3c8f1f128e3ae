package alert

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/riskcam/internal/config"
	"github.com/ayusman/riskcam/internal/logger"
	"github.com/ayusman/riskcam/internal/render"
)

const (
	mailDialTimeout = 10 * time.Second
	// mailTimeout bounds one whole SMTP exchange, greeting to QUIT.
	mailTimeout = 30 * time.Second
)

// Mailer e-mails an alert with the offending frame attached.
type Mailer struct {
	cfg       config.SMTPConfig
	threshold float64
	timeout   time.Duration
}

// NewMailer returns nil when cfg is missing a required field.
func NewMailer(cfg config.SMTPConfig, threshold float64) *Mailer {
	if !cfg.Enabled() {
		return nil
	}
	if threshold <= 0 {
		threshold = render.DefaultHighThreshold
	}
	return &Mailer{cfg: cfg, threshold: threshold, timeout: mailTimeout}
}

// Exceeds reports whether an alert is worth a mail.
func (m *Mailer) Exceeds(score float64, indicators []string) bool {
	return score >= m.threshold || len(indicators) > 0
}

// Notify implements render.Notifier. Failures are logged.
func (m *Mailer) Notify(a render.Alert) {
	if !m.Exceeds(a.Score, a.Indicators) {
		return
	}
	if err := m.Send(a); err != nil {
		logger.Warn("Mail", "failed to send email: %v", err)
		return
	}
	logger.Info("Mail", "alert sent to %s", m.cfg.To)
}

// Send delivers the alert mail.
func (m *Mailer) Send(a render.Alert) error {
	msg, err := m.Message(a)
	if err != nil {
		return err
	}

	host := m.cfg.Host
	addr := net.JoinHostPort(host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: mailDialTimeout}

	var conn net.Conn
	if m.cfg.UseSSL {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: host})
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Now().Add(m.timeout)); err != nil {
		conn.Close()
		return fmt.Errorf("set deadline: %w", err)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if !m.cfg.UseSSL && m.cfg.UseTLS != nil && *m.cfg.UseTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(m.cfg.Sender()); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range recipients(m.cfg.To) {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return c.Quit()
}

// Subject returns the configured subject or the default for source.
func (m *Mailer) Subject(source string) string {
	if m.cfg.Subject != "" {
		return m.cfg.Subject
	}
	return fmt.Sprintf("Suicide risk detected (%s)", source)
}

// Body is the plain-text part of the alert mail.
func Body(a render.Alert) string {
	lines := []string{
		"A new suicide-risk event was detected.",
		"Source: " + a.Source,
		fmt.Sprintf("Score: %.3f", a.Score),
	}
	if len(a.Indicators) > 0 {
		lines = append(lines, "Indicators: "+strings.Join(a.Indicators, ", "))
	}
	if a.Timestamp != "" {
		lines = append(lines, "Timestamp: "+a.Timestamp)
	}
	return strings.Join(lines, "\n")
}

// Message builds the full MIME message.
func (m *Mailer) Message(a render.Alert) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "To: %s\r\n", m.cfg.To)
	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.Sender())
	fmt.Fprintf(&buf, "Subject: %s\r\n", m.Subject(a.Source))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(strings.ReplaceAll(Body(a), "\n", "\r\n") + "\r\n")); err != nil {
		return nil, err
	}

	if a.Frame != nil && len(a.Frame.Data) > 0 {
		img, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"image/jpeg"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {`attachment; filename="frame.jpg"`},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(img, a.Frame.Data); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBase64Lines writes data as base64 wrapped at 76 columns.
func writeBase64Lines(w io.Writer, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := w.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := w.Write([]byte(enc + "\r\n"))
	return err
}

func recipients(to string) []string {
	var out []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
