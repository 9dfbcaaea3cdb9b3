// Package mailer performs the actual SMTP delivery of the subsystem's
// outbound mail. Services never call it directly; they publish events to
// the mail queue and the background consumer hands them here.
package mailer

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// Mailer represents an email sender.
type Mailer struct {
	config *mailerConfig
	dialer *gomail.Dialer
	logger *zerolog.Logger
}

// NewMailer creates a Mailer from SMTP_* environment variables.
func NewMailer(logger *zerolog.Logger) *Mailer {
	cfg := newMailerConfig(logger)

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate mailer configuration")
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	return &Mailer{config: cfg, dialer: dialer, logger: logger}
}

// SendForgotPasswordEmail delivers the 6-digit password reset code.
func (m *Mailer) SendForgotPasswordEmail(to, firstName, code, companyName string) error {
	htmlBody := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>We received a request to reset the password for your account.</p>
		<p>Your verification code is:</p>
		<p style="font-size:24px;letter-spacing:4px;"><b>%s</b></p>
		<p>The code expires in a few minutes. If you did not request a reset,
		you can safely ignore this email.</p>
		<p>Thank you,</p>
		<p>%s Team</p>
	`, firstName, code, companyName)

	return m.sendHTML([]string{to}, "Password Reset Code", htmlBody)
}

// SendChangeEmailMail delivers the email-change verification token to
// the new address.
func (m *Mailer) SendChangeEmailMail(newEmail, firstName, changeToken string, expiryMinutes int, companyName string) error {
	htmlBody := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>We received a request to move your account to this email address.</p>
		<p>If you made this request, confirm it with the token below:</p>
		<p><code>%s</code></p>
		<p>This token expires in %d minutes.</p>
		<p>If you did not request this change, you can safely ignore this email.</p>
		<p>Thank you,</p>
		<p>%s Team</p>
	`, firstName, changeToken, expiryMinutes, companyName)

	return m.sendHTML([]string{newEmail}, "Confirm Your New Email Address", htmlBody)
}

func (m *Mailer) sendHTML(to []string, subject, htmlBody string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Error().Err(err).Strs("to", to).Str("subject", subject).Msg("smtp send failed")
		return err
	}
	return nil
}

// mailerConfig holds SMTP configuration for sending emails.
type mailerConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

func newMailerConfig(logger *zerolog.Logger) *mailerConfig {
	cfg, err := env.ParseAs[mailerConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}
	return &cfg
}

func (c *mailerConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing SMTP_HOST environment variable")
	}
	if c.Port == 0 {
		return fmt.Errorf("missing SMTP_PORT environment variable")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP_FROM environment variable")
	}
	return nil
}
