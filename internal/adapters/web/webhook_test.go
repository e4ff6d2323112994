package web_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	webAdapter "garage-api/internal/adapters/web"
	"garage-api/internal/app"
	"garage-api/internal/core"
	"garage-api/internal/payment"
)

// stubService implements only the methods these tests touch; anything else
// panics, which would fail the test loudly.
type stubService struct {
	app.ApplicationService
	verified []string
	deleted  []int
}

func (s *stubService) DeleteInvoice(ctx context.Context, invoiceID int) error {
	s.deleted = append(s.deleted, invoiceID)
	return nil
}

func (s *stubService) VerifyPayment(ctx context.Context, reference string) (*app.VerifyPaymentResult, error) {
	s.verified = append(s.verified, reference)
	return &app.VerifyPaymentResult{
		Paid:         true,
		Invoice:      &core.Invoice{ID: 1, Status: core.InvoicePaid},
		Verification: &core.PaymentVerification{Status: "success", Reference: reference},
	}, nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackWebhook(t *testing.T) {
	svc := &stubService{}
	gateway := payment.NewPaystack("sk_test_secret")
	handler := webAdapter.NewHandler(svc, gateway, "", "jwt-secret")

	body := `{"event":"charge.success","data":{"reference":"MM_INV-0001_1_ABCDEF"}}`

	t.Run("valid signature triggers verification", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/paystack", strings.NewReader(body))
		req.Header.Set("x-paystack-signature", sign("sk_test_secret", []byte(body)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(svc.verified) != 1 || svc.verified[0] != "MM_INV-0001_1_ABCDEF" {
			t.Fatalf("expected one verification call, got %v", svc.verified)
		}
	})

	t.Run("bad signature is rejected before any processing", func(t *testing.T) {
		svc.verified = nil
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/paystack", strings.NewReader(body))
		req.Header.Set("x-paystack-signature", sign("wrong-secret", []byte(body)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if len(svc.verified) != 0 {
			t.Fatal("verification must not run for unsigned deliveries")
		}
	})

	t.Run("other events are acknowledged without verification", func(t *testing.T) {
		svc.verified = nil
		other := `{"event":"transfer.success","data":{"reference":"TRF_1"}}`
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/paystack", strings.NewReader(other))
		req.Header.Set("x-paystack-signature", sign("sk_test_secret", []byte(other)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(svc.verified) != 0 {
			t.Fatal("non-charge events must not trigger verification")
		}
	})
}

func authCookie(t *testing.T, secret, role string) *http.Cookie {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  1,
		"username": "boss",
		"role":     role,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return &http.Cookie{Name: "auth_token", Value: signed}
}

func TestDeleteInvoiceRespondsWithEnvelope(t *testing.T) {
	svc := &stubService{}
	handler := webAdapter.NewHandler(svc, payment.NewPaystack("sk"), "", "jwt-secret")

	req := httptest.NewRequest(http.MethodDelete, "/api/invoices/42", nil)
	req.AddCookie(authCookie(t, "jwt-secret", "ADMIN"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Deleted bool `json:"deleted"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || !resp.Data.Deleted {
		t.Fatalf("expected success envelope with deleted=true, got %s", rec.Body.String())
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != 42 {
		t.Fatalf("expected delete call for invoice 42, got %v", svc.deleted)
	}
}

func TestDeleteInvoiceRequiresAdmin(t *testing.T) {
	svc := &stubService{}
	handler := webAdapter.NewHandler(svc, payment.NewPaystack("sk"), "", "jwt-secret")

	req := httptest.NewRequest(http.MethodDelete, "/api/invoices/42", nil)
	req.AddCookie(authCookie(t, "jwt-secret", "STAFF"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
	if len(svc.deleted) != 0 {
		t.Fatal("delete must not run for non-admin users")
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	handler := webAdapter.NewHandler(&stubService{}, payment.NewPaystack("sk"), "", "jwt-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth cookie, got %d", rec.Code)
	}
}
