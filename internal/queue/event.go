// Package queue defines the mail events exchanged over the message
// broker and the background consumer that delivers them.
package queue

// Mail event kinds.
const (
	KindForgotPassword = "forgot_password"
	KindChangeEmail    = "change_email"
)

// MailEvent is published whenever a flow needs to send mail. It carries
// everything the consumer needs to compose and deliver the message
// without querying the primary database.
type MailEvent struct {
	Kind          string `json:"kind"`
	To            string `json:"to"`
	FirstName     string `json:"first_name"`
	Code          string `json:"code,omitempty"`         // forgot_password: the 6-digit reset code
	ChangeToken   string `json:"change_token,omitempty"` // change_email: the signed verification token
	ExpiryMinutes int    `json:"expiry_minutes,omitempty"`
	CompanyName   string `json:"company_name"`
}
