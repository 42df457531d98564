package payment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/payvide/payworker/pkg/crypto"
	"github.com/payvide/payworker/pkg/errs"
	"github.com/payvide/payworker/pkg/gateway"
	"github.com/payvide/payworker/pkg/mail"
	"github.com/payvide/payworker/pkg/queue"
)

// Queue operation tags owned by this package.
const (
	OpCreate           = "payment:create"
	OpProcessCallback  = "payment:process-callback"
	OpUpdateStatus     = "payment:update-status"
	OpRefund           = "payment:refund"
	OpTimeoutSweep     = "payment:timeout-sweep"
	OpArchive          = "payment:archive"
	OpSendReceipt      = "payment:send-receipt"
	OpSendRefundNotice = "payment:send-refund-notice"
)

// Handlers binds the payment service to queue operations. The callback
// handler carries the gateway adapter so signature verification happens
// in the worker, after the HTTP layer has already acknowledged receipt.
type Handlers struct {
	svc     *Service
	adapter *gateway.Adapter
	mailer  mail.Mailer
}

// NewHandlers creates the handler set.
func NewHandlers(svc *Service, adapter *gateway.Adapter, mailer mail.Mailer) *Handlers {
	return &Handlers{svc: svc, adapter: adapter, mailer: mailer}
}

// Register wires every payment operation into the queue registry.
func (h *Handlers) Register() {
	queue.Register(OpCreate, h.HandleCreate)
	queue.Register(OpProcessCallback, h.HandleProcessCallback)
	queue.Register(OpUpdateStatus, h.HandleUpdateStatus)
	queue.Register(OpRefund, h.HandleRefund)
	queue.Register(OpTimeoutSweep, h.HandleTimeoutSweep)
	queue.Register(OpArchive, h.HandleArchive)
	queue.Register(OpSendReceipt, h.HandleSendReceipt)
	queue.Register(OpSendRefundNotice, h.HandleSendRefundNotice)
}

func (h *Handlers) HandleCreate(ctx context.Context, job *queue.Job) error {
	env := job.Envelope
	amount, err := parseAmount(env.String("amount"))
	if err != nil {
		return err
	}

	_, _, err = h.svc.CreatePayment(ctx, CreateInput{
		OrderID:       env.String("orderId"),
		Amount:        amount,
		Currency:      env.String("currency"),
		PaymentMethod: env.String("paymentMethod"),
		CustomerEmail: env.String("customerEmail"),
		CustomerName:  env.String("customerName"),
		CustomerPhone: env.String("customerPhone"),
		ProductInfo:   env.String("productInfo"),
	})
	return err
}

// HandleProcessCallback verifies the raw gateway fields and feeds the
// normalized result into the state machine. The envelope carries the
// fields exactly as received so the cryptographic check runs here.
func (h *Handlers) HandleProcessCallback(ctx context.Context, job *queue.Job) error {
	fields := make(map[string]string, len(job.Envelope.Payload))
	for k, v := range job.Envelope.Payload {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}

	cb, err := h.adapter.VerifyCallback(fields)
	if err != nil {
		return err
	}
	return h.svc.ProcessCallback(ctx, cb)
}

func (h *Handlers) HandleUpdateStatus(ctx context.Context, job *queue.Job) error {
	env := job.Envelope
	return h.svc.UpdateStatus(ctx, env.String("orderId"), Status(env.String("status")), env.String("notes"))
}

func (h *Handlers) HandleRefund(ctx context.Context, job *queue.Job) error {
	env := job.Envelope
	amount, err := parseAmount(env.String("amount"))
	if err != nil {
		return err
	}
	_, err = h.svc.RefundPayment(ctx, env.String("orderId"), amount, env.String("reason"), env.String("processedBy"))
	return err
}

func (h *Handlers) HandleTimeoutSweep(ctx context.Context, job *queue.Job) error {
	swept, err := h.svc.TimeoutSweep(ctx)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int("swept", swept).Msg("timeout sweep finished")
	return nil
}

func (h *Handlers) HandleArchive(ctx context.Context, job *queue.Job) error {
	archived, deleted, err := h.svc.Cleanup(ctx)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int64("archived", archived).Int64("deleted", deleted).Msg("archive finished")
	return nil
}

func (h *Handlers) HandleSendReceipt(ctx context.Context, job *queue.Job) error {
	return h.notify(ctx, job.Envelope.String("orderId"), "Payment receipt",
		"Your payment of %s %s for order %s was completed.")
}

func (h *Handlers) HandleSendRefundNotice(ctx context.Context, job *queue.Job) error {
	return h.notify(ctx, job.Envelope.String("orderId"), "Refund processed",
		"Your payment of %s %s for order %s was refunded.")
}

func (h *Handlers) notify(ctx context.Context, orderID, subject, bodyFormat string) error {
	view, err := h.svc.GetPayment(ctx, orderID)
	if err != nil {
		return err
	}
	if view.CustomerEmailPlain == "" || view.CustomerEmailPlain == crypto.Placeholder {
		zerolog.Ctx(ctx).Warn().Str("order_id", orderID).Msg("no usable customer email, skipping notification")
		return nil
	}

	return h.mailer.Send(ctx, &mail.Message{
		To:      []string{view.CustomerEmailPlain},
		Subject: subject,
		Body:    fmt.Sprintf(bodyFormat, view.Amount, view.Currency, view.OrderID),
	})
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, &errs.ValidationError{Field: "amount", Msg: "is required"}
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &errs.ValidationError{Field: "amount", Msg: "is not a valid decimal"}
	}
	return amount, nil
}
