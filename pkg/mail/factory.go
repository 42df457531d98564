package mail

import (
	"fmt"

	"github.com/payvide/payworker/pkg/config"
)

// NewMailer creates a Mailer based on the configuration
func NewMailer(cfg config.MailConfig) (Mailer, error) {
	switch cfg.Mailer {
	case "smtp":
		return NewSMTPMailer(cfg), nil
	case "log":
		return NewLogMailer(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported mailer: %s", cfg.Mailer)
	}
}
