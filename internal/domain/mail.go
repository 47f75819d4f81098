package domain

const (
	MailVerifyEmail      = "verify_email"
	MailResetPassword    = "reset_password"
	MailEmployerApproved = "employer_approved"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type VerifyEmailMailData struct {
	Username   string `json:"username"`
	Link       string `json:"link"`
	Expiration int    `json:"expiration"` // hours
}

type ResetPasswordMailData struct {
	Username   string `json:"username"`
	Link       string `json:"link"`
	Expiration int    `json:"expiration"` // minutes
}

type EmployerApprovedMailData struct {
	Username    string `json:"username"`
	CompanyName string `json:"companyName"`
	LoginLink   string `json:"loginLink"`
}
