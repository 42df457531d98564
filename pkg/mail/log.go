package mail

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/payvide/payworker/pkg/config"
)

// LogMailer implements Mailer by logging messages. It is the default
// for local development and tests.
type LogMailer struct {
	cfg config.MailConfig
}

// NewLogMailer creates a new LogMailer
func NewLogMailer(cfg config.MailConfig) *LogMailer {
	return &LogMailer{cfg: cfg}
}

// Send logs the message instead of delivering it.
func (m *LogMailer) Send(ctx context.Context, msg *Message) error {
	applyDefaultFrom(msg, m.cfg)

	logger := log.Ctx(ctx).With().
		Str("mailer", "log").
		Str("from", msg.From).
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Logger()

	logger.Info().Msg("sending email")
	logger.Debug().Msgf("body:\n%s", msg.Body)
	return nil
}

func applyDefaultFrom(msg *Message, cfg config.MailConfig) {
	if msg.From != "" || cfg.FromAddress == "" {
		return
	}
	msg.From = cfg.FromAddress
	if cfg.FromName != "" {
		msg.From = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)
	}
}
