package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payvide/payworker/pkg/config"
	"github.com/payvide/payworker/pkg/errs"
)

// Payload is the signed summary a browser redirect carries to an
// outcome page. It is never persisted; the signature plus expiry make
// it verifiable without a round trip to the transaction store.
type Payload struct {
	OrderID       string          `json:"orderId"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	IssuedAt      int64           `json:"issuedAt"`
	ExpiresAt     int64           `json:"expiresAt"`
}

// Service issues and verifies HMAC-signed, time-boxed redirect tokens.
type Service struct {
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

// NewService builds a token service from config. TTL defaults to 30
// minutes when unset.
func NewService(cfg config.TokenConfig) *Service {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Service{
		secret:     []byte(cfg.Secret),
		defaultTTL: ttl,
		now:        time.Now,
	}
}

// Create serializes the payload, stamps issue and expiry times, and
// returns "base64(payload).hex(hmac)".
func (s *Service) Create(p Payload) (string, error) {
	now := s.now()
	p.IssuedAt = now.Unix()
	p.ExpiresAt = now.Add(s.defaultTTL).Unix()
	return s.sign(p)
}

// CreateWithTTL is Create with an explicit lifetime.
func (s *Service) CreateWithTTL(p Payload, ttl time.Duration) (string, error) {
	now := s.now()
	p.IssuedAt = now.Unix()
	p.ExpiresAt = now.Add(ttl).Unix()
	return s.sign(p)
}

func (s *Service) sign(p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + s.signature(encoded), nil
}

// Verify recomputes the HMAC over the payload segment and checks the
// expiry window. Any tampering or lateness is a SignatureError or
// ValidationError respectively.
func (s *Service) Verify(tok string) (*Payload, error) {
	encoded, sig, ok := strings.Cut(tok, ".")
	if !ok || encoded == "" || sig == "" {
		return nil, &errs.ValidationError{Field: "token", Msg: "malformed token"}
	}

	if !hmac.Equal([]byte(sig), []byte(s.signature(encoded))) {
		return nil, &errs.SignatureError{Msg: "token signature mismatch"}
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &errs.ValidationError{Field: "token", Msg: "bad payload encoding"}
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &errs.ValidationError{Field: "token", Msg: "bad payload JSON"}
	}

	if s.now().Unix() > p.ExpiresAt {
		return nil, &errs.ValidationError{Field: "token", Msg: "token expired"}
	}

	return &p, nil
}

func (s *Service) signature(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
