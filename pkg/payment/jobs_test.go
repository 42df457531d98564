package payment

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payvide/payworker/pkg/config"
	"github.com/payvide/payworker/pkg/errs"
	"github.com/payvide/payworker/pkg/gateway"
	"github.com/payvide/payworker/pkg/mail"
	"github.com/payvide/payworker/pkg/queue"
)

type recordingMailer struct {
	mu       sync.Mutex
	messages []*mail.Message
}

func (r *recordingMailer) Send(ctx context.Context, msg *mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func newTestHandlers(t *testing.T) (*Handlers, *Service, *gateway.Adapter) {
	t.Helper()
	svc, _, _ := newTestService(t)
	adapter := gateway.NewAdapter(config.GatewayConfig{
		PayURL:     "https://gateway.example.com/pay",
		Secret:     "gw-secret",
		MerchantID: "merch-42",
	})
	return NewHandlers(svc, adapter, &recordingMailer{}), svc, adapter
}

func jobWithPayload(operation string, payload map[string]any) *queue.Job {
	return &queue.Job{Envelope: &queue.Envelope{Operation: operation, Payload: payload}}
}

func TestHandleCreate(t *testing.T) {
	h, svc, _ := newTestHandlers(t)

	job := jobWithPayload(OpCreate, map[string]any{
		"orderId":       "ord-j1",
		"amount":        "25.50",
		"currency":      "EUR",
		"customerEmail": "lee@example.com",
	})
	require.NoError(t, h.HandleCreate(context.Background(), job))

	view, err := svc.GetPayment(context.Background(), "ord-j1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, view.Status)
	assert.Equal(t, "lee@example.com", view.CustomerEmailPlain)
}

func TestHandleCreate_BadAmount(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	job := jobWithPayload(OpCreate, map[string]any{"orderId": "ord-j2", "amount": "not-money"})
	err := h.HandleCreate(context.Background(), job)
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestHandleProcessCallback_EncryptedMode(t *testing.T) {
	h, svc, adapter := newTestHandlers(t)
	createPending(t, svc, "ord-j3")

	params := url.Values{}
	params.Set("merchant_id", "merch-42")
	params.Set("order_id", "ord-j3")
	params.Set("status", "completed")
	params.Set("amount", "149.99")
	params.Set("currency", "USD")
	params.Set("transaction_id", "txn-j3")

	sealed, err := adapter.Seal(params)
	require.NoError(t, err)

	job := jobWithPayload(OpProcessCallback, map[string]any{"data": sealed})
	require.NoError(t, h.HandleProcessCallback(context.Background(), job))

	view, err := svc.GetPayment(context.Background(), "ord-j3")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, view.Status)
	assert.Equal(t, "txn-j3", view.TransactionID)
}

func TestHandleProcessCallback_TamperedPayloadIsTerminal(t *testing.T) {
	h, svc, _ := newTestHandlers(t)
	createPending(t, svc, "ord-j4")

	job := jobWithPayload(OpProcessCallback, map[string]any{
		"data": "bm90LXJlYWwtY2lwaGVydGV4dC1hdC1hbGwtanVzdC1ieXRlcw",
	})
	err := h.HandleProcessCallback(context.Background(), job)
	require.Error(t, err)
	assert.False(t, errs.Retryable(err), "a forged callback must never be retried")

	view, err := svc.GetPayment(context.Background(), "ord-j4")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, view.Status)
}

func TestHandleSendReceipt(t *testing.T) {
	svc, _, _ := newTestService(t)
	mailer := &recordingMailer{}
	h := NewHandlers(svc, nil, mailer)

	createPending(t, svc, "ord-j5")
	require.NoError(t, svc.ProcessCallback(context.Background(), &gateway.Callback{OrderID: "ord-j5", Status: "completed"}))

	job := jobWithPayload(OpSendReceipt, map[string]any{"orderId": "ord-j5"})
	require.NoError(t, h.HandleSendReceipt(context.Background(), job))

	require.Len(t, mailer.messages, 1)
	msg := mailer.messages[0]
	assert.Equal(t, []string{"jordan@example.com"}, msg.To)
	assert.Equal(t, "Payment receipt", msg.Subject)
	assert.Contains(t, msg.Body, "ord-j5")
	assert.Contains(t, msg.Body, "149.99")
}

func TestHandleTimeoutSweepAndArchive(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandlers(svc, nil, &recordingMailer{})

	require.NoError(t, h.HandleTimeoutSweep(context.Background(), jobWithPayload(OpTimeoutSweep, nil)))
	require.NoError(t, h.HandleArchive(context.Background(), jobWithPayload(OpArchive, nil)))
}
