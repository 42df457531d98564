package gateway

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/payvide/payworker/pkg/config"
	"github.com/payvide/payworker/pkg/errs"
)

// Request carries the parameters of an outbound payment redirect.
type Request struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReturnURL   string
	CallbackURL string
}

// Callback is the normalized field map extracted from a verified
// gateway notification, consumed by the payment state machine.
type Callback struct {
	OrderID       string
	Status        string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
	TransactionID string
}

// Adapter builds signed outbound payment requests and validates
// inbound gateway callbacks (signed or authenticated-encrypted).
type Adapter struct {
	payURL     string
	secret     string
	merchantID string
	gcmKey     [32]byte
}

// NewAdapter builds an Adapter from config. The AES-GCM key for
// encrypted-mode callbacks is derived from the shared secret.
func NewAdapter(cfg config.GatewayConfig) *Adapter {
	return &Adapter{
		payURL:     cfg.PayURL,
		secret:     cfg.Secret,
		merchantID: cfg.MerchantID,
		gcmKey:     sha256.Sum256([]byte(cfg.Secret)),
	}
}

// BuildPaymentURL canonicalizes the request into a query string,
// base64url-encodes it, and signs the encoded blob. The result is
// payUrl?data=<blob>&sign=<hex>.
func (a *Adapter) BuildPaymentURL(req Request) (string, error) {
	if req.OrderID == "" {
		return "", &errs.ValidationError{Field: "orderId", Msg: "required"}
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return "", &errs.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	if req.Currency == "" {
		return "", &errs.ValidationError{Field: "currency", Msg: "required"}
	}

	params := url.Values{}
	params.Set("merchant_id", a.merchantID)
	params.Set("order_id", req.OrderID)
	params.Set("amount", req.Amount.String())
	params.Set("currency", req.Currency)
	if req.Description != "" {
		params.Set("description", req.Description)
	}
	if req.ReturnURL != "" {
		params.Set("return_url", req.ReturnURL)
	}
	if req.CallbackURL != "" {
		params.Set("callback_url", req.CallbackURL)
	}

	// url.Values.Encode sorts keys, which is the canonical form the
	// gateway recomputes on its side.
	data := base64.RawURLEncoding.EncodeToString([]byte(params.Encode()))
	return a.payURL + "?data=" + data + "&sign=" + a.sign(data), nil
}

// VerifyCallback validates an inbound gateway notification. The mode is
// auto-detected: a sign field means signature mode, its absence means
// the data blob is authenticated-encrypted. After validation the
// decoded merchant id must match configuration.
func (a *Adapter) VerifyCallback(fields map[string]string) (*Callback, error) {
	data, ok := fields["data"]
	if !ok || data == "" {
		return nil, &errs.ValidationError{Field: "data", Msg: "missing callback payload"}
	}

	var raw string
	if sig, ok := fields["sign"]; ok && sig != "" {
		expected := a.sign(data)
		if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
			return nil, &errs.SignatureError{Msg: "callback signature mismatch"}
		}
		decoded, err := base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return nil, &errs.ValidationError{Field: "data", Msg: "bad payload encoding"}
		}
		raw = string(decoded)
	} else {
		plain, err := a.open(data)
		if err != nil {
			return nil, err
		}
		raw = plain
	}

	vals, err := url.ParseQuery(raw)
	if err != nil {
		return nil, &errs.ValidationError{Field: "data", Msg: "payload is not a query string"}
	}

	if vals.Get("merchant_id") != a.merchantID {
		return nil, &errs.SignatureError{Msg: "merchant id mismatch"}
	}

	amount, err := decimal.NewFromString(vals.Get("amount"))
	if err != nil {
		return nil, &errs.ValidationError{Field: "amount", Msg: "not a decimal"}
	}
	orderID := vals.Get("order_id")
	if orderID == "" {
		return nil, &errs.ValidationError{Field: "order_id", Msg: "required"}
	}

	return &Callback{
		OrderID:       orderID,
		Status:        vals.Get("status"),
		Amount:        amount,
		Currency:      vals.Get("currency"),
		PaymentMethod: vals.Get("payment_method"),
		TransactionID: vals.Get("transaction_id"),
	}, nil
}

// Seal produces an encrypted-mode payload (nonce || ciphertext || tag,
// base64url). The gateway sends these; we keep the encoder for the
// sandbox simulator and tests.
func (a *Adapter) Seal(params url.Values) (string, error) {
	block, err := aes.NewCipher(a.gcmKey[:])
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(params.Encode()), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (a *Adapter) open(data string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return "", &errs.DecryptionError{Msg: "bad payload encoding", Err: err}
	}

	block, err := aes.NewCipher(a.gcmKey[:])
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", &errs.DecryptionError{Msg: "payload too short"}
	}

	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return "", &errs.DecryptionError{Msg: "authentication tag check failed", Err: err}
	}
	return string(plain), nil
}

func (a *Adapter) sign(data string) string {
	sum := sha256.Sum256([]byte(data + a.secret))
	return hex.EncodeToString(sum[:])
}
