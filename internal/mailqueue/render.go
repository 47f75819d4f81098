package mailqueue

import (
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

type mailTemplate struct {
	subject string
	file    string
	data    func() any
}

var templates = map[string]mailTemplate{
	domain.MailVerifyEmail: {
		subject: "Job Board - Verify your email",
		file:    "verify_email.html",
		data:    func() any { return &domain.VerifyEmailMailData{} },
	},
	domain.MailResetPassword: {
		subject: "Job Board - Reset your password",
		file:    "reset_password.html",
		data:    func() any { return &domain.ResetPasswordMailData{} },
	},
	domain.MailEmployerApproved: {
		subject: "Job Board - Your employer account is approved",
		file:    "employer_approved.html",
		data:    func() any { return &domain.EmployerApprovedMailData{} },
	},
}

// Mail is a decoded queue message ready to be rendered.
type Mail struct {
	To       string
	Subject  string
	Template *template.Template
	Data     any
}

// Decode parses a queue message body and loads the HTML template for its
// type from templateDir.
func Decode(body []byte, templateDir string) (*Mail, error) {
	var raw struct {
		Type string          `json:"type"`
		To   string          `json:"to"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("邮件信息反序列化失败: %w", err)
	}
	if raw.To == "" {
		return nil, fmt.Errorf("邮件缺少收件人")
	}

	def, ok := templates[raw.Type]
	if !ok {
		return nil, fmt.Errorf("不支持的邮件类型 %q", raw.Type)
	}

	data := def.data()
	if len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			return nil, fmt.Errorf("邮件数据反序列化失败: %w", err)
		}
	}

	tmpl, err := template.ParseFiles(filepath.Join(templateDir, def.file))
	if err != nil {
		return nil, fmt.Errorf("无法解析邮件模板: %w", err)
	}

	return &Mail{To: raw.To, Subject: def.subject, Template: tmpl, Data: data}, nil
}
