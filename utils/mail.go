package utils

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"sync"
)

const (
	TemplateVerifyEmail   = "verify_email.html"
	TemplateResetPassword = "reset_password.html"
	TemplateOrderPlaced   = "order_placed.html"
	TemplateOrderStatus   = "order_status.html"
	TemplatePayment       = "payment_status.html"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	templatesOnce sync.Once
	templates     *template.Template
	templatesErr  error
)

type EmailItem struct {
	Title     string
	Quantity  int
	LineTotal string
}

type EmailData struct {
	Name        string
	Message     string
	ActionURL   string
	ActionText  string
	LogoURL     string
	OrderNumber string
	Status      string
	Total       string
	Items       []EmailItem
}

// Mailer hands a rendered message to an outbound transport.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

type SMTPMailer struct {
	From     string
	Password string
	Host     string
	Addr     string
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	if m.Addr == "" {
		return fmt.Errorf("smtp address is not configured")
	}
	message := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n%s",
		m.From,
		to,
		subject,
		htmlBody,
	)

	auth := smtp.PlainAuth("", m.From, m.Password, m.Host)
	if err := smtp.SendMail(m.Addr, auth, m.From, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func loadTemplates() (*template.Template, error) {
	templatesOnce.Do(func() {
		templates, templatesErr = template.ParseFS(templateFS, "templates/*.html")
	})
	return templates, templatesErr
}

func RenderEmail(name string, data EmailData) (string, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return "", fmt.Errorf("template parse error: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return body.String(), nil
}
