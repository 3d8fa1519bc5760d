package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Mailer sends the notification over plain SMTP, optionally bundling
// report archives as attachments.
type Mailer struct {
	logger *zap.Logger
	addr   string
	from   string
	to     []string
}

func NewMailer(logger *zap.Logger, host string, port int, from string, to []string) *Mailer {
	return &Mailer{
		logger: logger.Named("mail"),
		addr:   fmt.Sprintf("%s:%d", host, port),
		from:   from,
		to:     to,
	}
}

func (m *Mailer) Send(ctx context.Context, message Message) error {
	body, err := m.buildMail(message)
	if err != nil {
		return err
	}
	m.logger.Info("Sending mail", zap.Strings("to", m.to), zap.String("subject", message.Subject()))
	return errors.Wrap(smtp.SendMail(m.addr, nil, m.from, m.to, body), "Failed to send mail")
}

func (m *Mailer) buildMail(message Message) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	fmt.Fprintf(buf, "From: %s\r\n", m.from)
	fmt.Fprintf(buf, "To: %s\r\n", strings.Join(m.to, ", "))
	fmt.Fprintf(buf, "Subject: %s\r\n", message.Subject())
	fmt.Fprintf(buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())

	html, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to build mail body")
	}
	fmt.Fprintf(html, "<h3>%s</h3>", message.Subject())
	fmt.Fprintf(html, "<p>Job: %s<br>Run: %s<br>Outcome: %s<br>Duration: %s</p>",
		message.JobName, message.RunID, message.Outcome, message.HumanDuration())
	if message.Detail != "" {
		fmt.Fprintf(html, "<pre>%s</pre>", message.Detail)
	}
	if message.LogsURL != "" {
		fmt.Fprintf(html, `<p><a href="%s">Logs</a></p>`, message.LogsURL)
	}

	for _, path := range message.Attachments {
		if err := attach(writer, path); err != nil {
			m.logger.Warn("Skipping attachment", zap.Error(err), zap.String("path", path))
		}
	}

	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "Failed to finish mail body")
	}
	return buf.Bytes(), nil
}

func attach(writer *multipart.Writer, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to read attachment %s", path)
	}

	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"application/octet-stream"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(path))},
	})
	if err != nil {
		return err
	}

	encoder := base64.NewEncoder(base64.StdEncoding, part)
	if _, err = encoder.Write(content); err != nil {
		return err
	}
	return encoder.Close()
}
