package service

import "context"

// Mailer is the outbound mail collaborator. Delivery is fire-and-forget
// from this subsystem's perspective: services log failures and carry on,
// they never retry. The in-tree implementation publishes events to a
// durable queue; a background consumer performs the SMTP send.
type Mailer interface {
	// SendForgotPasswordEmail delivers the 6-digit reset code.
	SendForgotPasswordEmail(ctx context.Context, email, firstName, code, companyName string) error
	// SendChangeEmailMail delivers the email-change verification token to
	// the new address.
	SendChangeEmailMail(ctx context.Context, newEmail, firstName, changeToken string, expiryMinutes int, companyName string) error
}
