package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/Anvoria/identra/internal/config"
)

// Sender delivers magic-link codes out-of-band.
type Sender interface {
	SendMagicLink(to, code, verifyURL string) error
}

// New returns an SMTP-backed sender, or a no-op sender when mail is disabled.
func New(cfg config.MailConfig, appName string) Sender {
	if !cfg.Enable {
		return &noopSender{}
	}
	return &smtpSender{cfg: cfg, appName: appName}
}

type smtpSender struct {
	cfg     config.MailConfig
	appName string
}

const magicLinkTpl = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#333">Sign in to {{.AppName}}</h2>
  <p>Use the button below to sign in. The link is valid for 5 minutes and works once.</p>
  <p style="margin-top:24px">
    <a href="{{.VerifyURL}}" style="background:#4f46e5;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">Sign in</a>
  </p>
  <p style="color:#666;font-size:13px">Or enter this code: <strong>{{.Code}}</strong></p>
  <p style="color:#999;font-size:12px">If you did not request this email, you can safely ignore it.</p>
</div>
</body>
</html>`

type magicLinkData struct {
	AppName   string
	Code      string
	VerifyURL string
}

func (s *smtpSender) SendMagicLink(to, code, verifyURL string) error {
	html, err := renderTemplate(magicLinkTpl, magicLinkData{
		AppName:   s.appName,
		Code:      code,
		VerifyURL: verifyURL,
	})
	if err != nil {
		return err
	}

	return s.send([]string{to}, fmt.Sprintf("[%s] Your sign-in link", s.appName), html)
}

// send delivers a single HTML message via net/smtp.
func (s *smtpSender) send(to []string, subject, html string) error {
	host := s.cfg.Host
	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	var body bytes.Buffer
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", from))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	body.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	body.WriteString("\r\n")
	body.WriteString(html)

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, host)
	return smtp.SendMail(addr, auth, from, to, body.Bytes())
}

func renderTemplate(tpl string, data any) (string, error) {
	t, err := template.New("").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// noopSender is used in development when mail delivery is disabled.
type noopSender struct{}

func (n *noopSender) SendMagicLink(to, code, verifyURL string) error {
	slog.Debug("Mail disabled, magic link not delivered", "to", to, "code", code)
	return nil
}
