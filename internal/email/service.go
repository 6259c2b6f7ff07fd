// Package email sends approval and publication notices via SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"doccontrol/api/internal/logger"
)

// ErrNotConfigured is returned when no SMTP server is set. Callers treat it
// as a skipped notification.
var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
	log    *logger.Logger
}

func NewService(config Config, log *logger.Logger) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
		log:    log.With("component", "email"),
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message with a plain-text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		s.log.Info("smtp not configured, skipping email", "to", strings.Join(to, ","), "subject", subject)
		return ErrNotConfigured
	}
	if len(to) == 0 {
		return nil
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-doccontrol"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	if err := s.send(s.server, s.auth, s.config.From, to, msg.Bytes()); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// ApprovalRequest asks one approver to act on a chain.
type ApprovalRequest struct {
	To            string
	ApproverName  string
	DocumentCode  string
	DocumentTitle string
	VersionNumber int
	ChainType     string
	Deadline      string
}

func (s *Service) SendApprovalRequest(req ApprovalRequest) error {
	subject := fmt.Sprintf("Aprovação pendente: %s", req.DocumentCode)
	html, err := renderTemplate(approvalRequestTemplate, req)
	if err != nil {
		return fmt.Errorf("render approval template: %w", err)
	}
	text := fmt.Sprintf("%s, o documento %s (%s) versão %d aguarda sua aprovação.",
		req.ApproverName, req.DocumentCode, req.DocumentTitle, req.VersionNumber)
	return s.SendHTMLEmail([]string{req.To}, subject, text, html)
}

// PublicationNotice tells a distribution recipient a new revision is in force.
type PublicationNotice struct {
	To            string
	RecipientName string
	DocumentCode  string
	DocumentTitle string
	VersionNumber int
	EffectiveDate string
}

func (s *Service) SendPublicationNotice(notice PublicationNotice) error {
	subject := fmt.Sprintf("Documento publicado: %s", notice.DocumentCode)
	html, err := renderTemplate(publicationNoticeTemplate, notice)
	if err != nil {
		return fmt.Errorf("render publication template: %w", err)
	}
	text := fmt.Sprintf("%s, o documento %s (%s) foi publicado com vigência em %s.",
		notice.RecipientName, notice.DocumentCode, notice.DocumentTitle, notice.EffectiveDate)
	return s.SendHTMLEmail([]string{notice.To}, subject, text, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const approvalRequestTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Aprovação pendente {{.DocumentCode}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header"><h1>Controle de Documentos</h1></div>
    <p>Olá, {{.ApproverName}}.</p>
    <p>O documento <strong>{{.DocumentCode}}</strong> ({{.DocumentTitle}}), versão {{.VersionNumber}}, aguarda sua ação na cadeia {{.ChainType}}.</p>
    {{if .Deadline}}<p>Prazo: {{.Deadline}}</p>{{end}}
    <div class="footer"><p>Mensagem automática, não responda.</p></div>
</body>
</html>`

const publicationNoticeTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Documento publicado {{.DocumentCode}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header"><h1>Controle de Documentos</h1></div>
    <p>Olá, {{.RecipientName}}.</p>
    <p>A versão {{.VersionNumber}} do documento <strong>{{.DocumentCode}}</strong> ({{.DocumentTitle}}) foi publicada e entra em vigor em {{.EffectiveDate}}.</p>
    <p>Confirme a leitura no sistema de controle de documentos.</p>
    <div class="footer"><p>Mensagem automática, não responda.</p></div>
</body>
</html>`
