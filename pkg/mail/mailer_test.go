package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/payvide/payworker/pkg/config"
)

func TestFactory(t *testing.T) {
	tests := []struct {
		name      string
		config    config.MailConfig
		wantType  interface{}
		expectErr bool
	}{
		{name: "smtp", config: config.MailConfig{Mailer: "smtp"}, wantType: &SMTPMailer{}},
		{name: "log", config: config.MailConfig{Mailer: "log"}, wantType: &LogMailer{}},
		{name: "invalid", config: config.MailConfig{Mailer: "pigeon"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewMailer(tt.config)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.IsType(t, tt.wantType, got)
		})
	}
}

func TestLogMailerAppliesDefaultFrom(t *testing.T) {
	m := NewLogMailer(config.MailConfig{FromAddress: "billing@example.com", FromName: "Billing"})

	msg := &Message{To: []string{"customer@example.com"}, Subject: "Receipt"}
	assert.NoError(t, m.Send(context.Background(), msg))
	assert.Equal(t, "Billing <billing@example.com>", msg.From)
}

func TestBuildEmailBody(t *testing.T) {
	msg := &Message{
		From:    "billing@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Payment receipt\r\nBcc: sneaky@example.com",
		Body:    "Thank you for your payment.",
	}

	body := buildEmailBody(msg)

	assert.Contains(t, body, "To: a@example.com, b@example.com")
	assert.Contains(t, body, "Subject: Payment receiptBcc: sneaky@example.com")
	assert.True(t, strings.HasSuffix(body, "Thank you for your payment."))
	assert.Contains(t, body, "Content-Type: text/plain; charset=UTF-8")
}

func TestAllRecipients(t *testing.T) {
	msg := &Message{
		To:  []string{"a@example.com"},
		Cc:  []string{"b@example.com"},
		Bcc: []string{"c@example.com"},
	}
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, allRecipients(msg))
}
