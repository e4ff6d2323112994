package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"garage-api/internal/core"
)

const defaultBaseURL = "https://api.paystack.co"

// Paystack implements core.PaymentGateway against the Paystack REST API.
// Amounts cross the wire in minor units (pesewas for GHS); this adapter owns
// the conversion in both directions so callers only ever see major units.
type Paystack struct {
	baseURL   string
	secretKey string
	client    *http.Client
	log       zerolog.Logger
}

func NewPaystack(secretKey string) *Paystack {
	return &Paystack{
		baseURL:   defaultBaseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log.With().Str("component", "paystack").Logger(),
	}
}

// minor units per major unit (pesewas per cedi)
var minorUnitFactor = decimal.NewFromInt(100)

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitFactor).Round(0).IntPart()
}

func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(minorUnitFactor)
}

// NormalizePhone converts a Ghanaian phone number to E.164 (+233...). Numbers
// already carrying a country code pass through unchanged.
func NormalizePhone(phone string) string {
	p := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, phone)
	if strings.HasPrefix(p, "+") {
		return p
	}
	if strings.HasPrefix(p, "0") {
		return "+233" + p[1:]
	}
	if strings.HasPrefix(p, "233") {
		return "+" + p
	}
	return "+233" + p
}

type initializeRequest struct {
	Amount    int64                `json:"amount"`
	Email     string               `json:"email"`
	Currency  string               `json:"currency"`
	Reference string               `json:"reference"`
	Metadata  core.PaymentMetadata `json:"metadata"`
}

type chargeRequest struct {
	Amount      int64                `json:"amount"`
	Email       string               `json:"email"`
	Currency    string               `json:"currency"`
	Reference   string               `json:"reference"`
	Metadata    core.PaymentMetadata `json:"metadata"`
	MobileMoney struct {
		Phone    string `json:"phone"`
		Provider string `json:"provider"`
	} `json:"mobile_money"`
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type chargeData struct {
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	DisplayText string `json:"display_text"`
}

type verifyData struct {
	Status    string               `json:"status"`
	Reference string               `json:"reference"`
	Amount    int64                `json:"amount"`
	Currency  string               `json:"currency"`
	Channel   string               `json:"channel"`
	PaidAt    *time.Time           `json:"paid_at"`
	Metadata  core.PaymentMetadata `json:"metadata"`
}

func (p *Paystack) Initialize(ctx context.Context, in core.InitializePaymentInput) (*core.PaymentSession, error) {
	req := initializeRequest{
		Amount:    toMinorUnits(in.Amount),
		Email:     in.Email,
		Currency:  "GHS",
		Reference: in.Reference,
		Metadata:  in.Metadata,
	}

	var data initializeData
	if err := p.post(ctx, "/transaction/initialize", req, &data); err != nil {
		return nil, err
	}

	return &core.PaymentSession{
		Reference:        data.Reference,
		Amount:           in.Amount,
		Currency:         "GHS",
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		CreatedAt:        time.Now(),
	}, nil
}

func (p *Paystack) ChargeMobileMoney(ctx context.Context, in core.MobileMoneyChargeInput) (*core.PaymentSession, error) {
	req := chargeRequest{
		Amount:    toMinorUnits(in.Amount),
		Email:     paymentEmail(in.Metadata),
		Currency:  "GHS",
		Reference: in.Reference,
		Metadata:  in.Metadata,
	}
	req.MobileMoney.Phone = NormalizePhone(in.Phone)
	req.MobileMoney.Provider = strings.ToLower(in.Provider)

	var data chargeData
	if err := p.post(ctx, "/charge", req, &data); err != nil {
		return nil, err
	}

	return &core.PaymentSession{
		Reference:   data.Reference,
		Amount:      in.Amount,
		Currency:    "GHS",
		DisplayText: data.DisplayText,
		CreatedAt:   time.Now(),
	}, nil
}

// paymentEmail synthesizes the email Paystack requires on charges when the
// customer has none on file.
func paymentEmail(meta core.PaymentMetadata) string {
	if meta.Phone != "" {
		digits := strings.TrimPrefix(NormalizePhone(meta.Phone), "+")
		return digits + "@customer.invalid"
	}
	return fmt.Sprintf("customer%d@customer.invalid", meta.CustomerID)
}

func (p *Paystack) Verify(ctx context.Context, reference string) (*core.PaymentVerification, error) {
	var data verifyData
	if err := p.get(ctx, "/transaction/verify/"+reference, &data); err != nil {
		return nil, err
	}

	v := &core.PaymentVerification{
		Status:    data.Status,
		Reference: data.Reference,
		Amount:    fromMinorUnits(data.Amount),
		Currency:  data.Currency,
		Channel:   data.Channel,
		Metadata:  data.Metadata,
	}
	if data.PaidAt != nil {
		v.PaidAt = *data.PaidAt
	}
	return v, nil
}

// VerifyWebhookSignature checks Paystack's x-paystack-signature header: an
// HMAC-SHA512 of the raw body keyed with the secret key.
func (p *Paystack) VerifyWebhookSignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (p *Paystack) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode paystack request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build paystack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

func (p *Paystack) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build paystack request: %w", err)
	}
	return p.do(req, out)
}

func (p *Paystack) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return core.Upstreamf(err, "paystack request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return core.Upstreamf(err, "failed to read paystack response")
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return core.Upstreamf(err, "failed to decode paystack response (HTTP %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 || !env.Status {
		p.log.Warn().Int("status", resp.StatusCode).Str("message", env.Message).
			Str("path", req.URL.Path).Msg("paystack call rejected")
		return core.Upstreamf(nil, "paystack: %s", env.Message)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return core.Upstreamf(err, "failed to decode paystack payload")
		}
	}
	return nil
}
