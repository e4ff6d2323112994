package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"garage-api/internal/core"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0244123456":    "+233244123456",
		"0244 123 456":  "+233244123456",
		"024-412-3456":  "+233244123456",
		"233244123456":  "+233244123456",
		"+233244123456": "+233244123456",
		"244123456":     "+233244123456",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMinorUnitConversion(t *testing.T) {
	if got := toMinorUnits(decimal.RequireFromString("760.50")); got != 76050 {
		t.Errorf("toMinorUnits(760.50) = %d, want 76050", got)
	}
	if got := toMinorUnits(decimal.RequireFromString("0.01")); got != 1 {
		t.Errorf("toMinorUnits(0.01) = %d, want 1", got)
	}
	if got := fromMinorUnits(76050); !got.Equal(decimal.RequireFromString("760.50")) {
		t.Errorf("fromMinorUnits(76050) = %s, want 760.50", got)
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	p := NewPaystack("sk_test_secret")
	body := []byte(`{"event":"charge.success","data":{"reference":"PAY_X_1_AAAAAA"}}`)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(body)
	good := hex.EncodeToString(mac.Sum(nil))

	if !p.VerifyWebhookSignature(body, good) {
		t.Error("valid signature rejected")
	}
	if p.VerifyWebhookSignature(body, good[:len(good)-2]+"ff") {
		t.Error("tampered signature accepted")
	}
	if p.VerifyWebhookSignature([]byte("other body"), good) {
		t.Error("signature accepted for different body")
	}
}

func TestChargeMobileMoney(t *testing.T) {
	var captured struct {
		Amount      int64  `json:"amount"`
		Currency    string `json:"currency"`
		Reference   string `json:"reference"`
		MobileMoney struct {
			Phone    string `json:"phone"`
			Provider string `json:"provider"`
		} `json:"mobile_money"`
		Metadata core.PaymentMetadata `json:"metadata"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/charge" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatal(err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"reference":    captured.Reference,
				"status":       "pay_offline",
				"display_text": "Please check your phone",
			},
		})
	}))
	defer srv.Close()

	p := NewPaystack("sk_test_secret")
	p.baseURL = srv.URL

	session, err := p.ChargeMobileMoney(context.Background(), core.MobileMoneyChargeInput{
		Amount:    decimal.RequireFromString("150.00"),
		Phone:     "0244123456",
		Provider:  "MTN",
		Reference: "MM_INV-0001_1_ABCDEF",
		Metadata:  core.PaymentMetadata{InvoiceID: 7, CustomerID: 3, Phone: "0244123456"},
	})
	if err != nil {
		t.Fatalf("ChargeMobileMoney failed: %v", err)
	}

	if captured.Amount != 15000 {
		t.Errorf("amount must be sent in pesewas, got %d", captured.Amount)
	}
	if captured.MobileMoney.Phone != "+233244123456" {
		t.Errorf("phone not normalized: %s", captured.MobileMoney.Phone)
	}
	if captured.MobileMoney.Provider != "mtn" {
		t.Errorf("provider not lowercased: %s", captured.MobileMoney.Provider)
	}
	if captured.Metadata.InvoiceID != 7 {
		t.Errorf("metadata invoice id lost: %d", captured.Metadata.InvoiceID)
	}
	if session.DisplayText != "Please check your phone" {
		t.Errorf("display text not surfaced: %q", session.DisplayText)
	}
	if !session.Amount.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("session amount must stay in major units, got %s", session.Amount)
	}
}

func TestVerifyMapsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/PAY_X_1_AAAAAA" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"status":    "success",
				"reference": "PAY_X_1_AAAAAA",
				"amount":    76050,
				"currency":  "GHS",
				"channel":   "mobile_money",
				"metadata":  map[string]any{"invoiceId": "42", "customerId": "3"},
			},
		})
	}))
	defer srv.Close()

	p := NewPaystack("sk_test_secret")
	p.baseURL = srv.URL

	v, err := p.Verify(context.Background(), "PAY_X_1_AAAAAA")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !v.Succeeded() {
		t.Error("expected success")
	}
	if !v.Amount.Equal(decimal.RequireFromString("760.50")) {
		t.Errorf("amount not converted to major units: %s", v.Amount)
	}
	if v.Metadata.InvoiceID != 42 {
		t.Errorf("string-encoded invoice id not decoded: %d", v.Metadata.InvoiceID)
	}
}

func TestAPIErrorBecomesUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "Invalid key",
		})
	}))
	defer srv.Close()

	p := NewPaystack("sk_bad")
	p.baseURL = srv.URL

	_, err := p.Verify(context.Background(), "REF")
	if core.KindOf(err) != core.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
