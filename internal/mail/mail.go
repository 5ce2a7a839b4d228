// Package mail renders named plain-text templates and sends them over SMTP.
package mail

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"

	"github.com/pkg/errors"
)

type Sender interface {
	Send(to, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type SMTPSender struct{ cfg SMTPConfig }

func NewSMTPSender(cfg SMTPConfig) *SMTPSender { return &SMTPSender{cfg: cfg} }

func (s *SMTPSender) Send(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	msg := []byte(fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n\r\n%s", to, s.cfg.From, subject, body))
	err := smtp.SendMail(s.cfg.Host+":"+s.cfg.Port, auth, s.cfg.From, []string{to}, msg)
	return errors.Wrap(err, "smtp send")
}

const DefaultTemplate = "default"

var templates = map[string]string{
	DefaultTemplate: `Hello{{if .userName}} {{.userName}}{{end}},

{{.message}}

— HR Platform`,
	"attendance_reminder": `Hello{{if .userName}} {{.userName}}{{end}},

You have not recorded attendance for today ({{.date}}). Please check in or
contact HR if you are on approved leave.

— HR Platform`,
	"payroll_processed": `Hello{{if .userName}} {{.userName}}{{end}},

Payroll period "{{.periodName}}" has finished processing.
Employees processed: {{.processedCount}}.

— HR Platform`,
	"import_completed": `Hello{{if .userName}} {{.userName}}{{end}},

Your employee import has completed.
Processed: {{.totalProcessed}}, successful: {{.successful}}, failed: {{.failed}}.

— HR Platform`,
	"report_ready": `Hello{{if .userName}} {{.userName}}{{end}},

Your {{.reportType}} report is ready: {{.url}}

— HR Platform`,
	"backup_completed": `Hello{{if .userName}} {{.userName}}{{end}},

Backup completed: {{.path}} ({{.sizeBytes}} bytes).

— HR Platform`,
}

// Render renders the named template with the data bag. Unknown names fall
// back to the default template rather than erroring.
func Render(name string, data map[string]any) (string, error) {
	src, ok := templates[name]
	if !ok {
		src = templates[DefaultTemplate]
	}
	t, err := template.New(name).Option("missingkey=zero").Parse(src)
	if err != nil {
		return "", errors.Wrapf(err, "parse template %s", name)
	}
	if data == nil {
		data = map[string]any{}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render template %s", name)
	}
	return buf.String(), nil
}
