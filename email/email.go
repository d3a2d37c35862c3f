// Package email delivers the study's transactional mail: a renderer for
// the login-link message plus SMTP, Azure Communication Services, and mock
// senders selected by configuration.
package email

import (
	"github.com/goliatone/go-errors"

	study "github.com/goliatone/go-study"
)

// Sender types accepted in the email configuration.
const (
	TypeMock  = "mock"
	TypeSMTP  = "smtp"
	TypeAzure = "azure"
)

// New builds the configured sender. An empty type falls back to the mock
// sender so development setups work without mail credentials.
func New(cfg study.EmailConfig, logger study.Logger) (study.Mailer, error) {
	switch cfg.Type {
	case TypeMock, "":
		return NewMock(logger), nil
	case TypeSMTP:
		return NewSMTP(cfg), nil
	case TypeAzure:
		return NewAzure(cfg)
	default:
		return nil, errors.New("unknown email sender type: "+cfg.Type, errors.CategoryValidation)
	}
}
