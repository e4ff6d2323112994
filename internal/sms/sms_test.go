package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"garage-api/internal/core"
)

func TestFormatPhone(t *testing.T) {
	cases := map[string]string{
		"0244123456":      "+233244123456",
		"024 412 3456":    "+233244123456",
		"(024) 412-3456":  "+233244123456",
		"233244123456":    "+233244123456",
		"+233 24 412 345": "+23324412345",
	}
	for in, want := range cases {
		if got := FormatPhone(in); got != want {
			t.Errorf("FormatPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderMessage(t *testing.T) {
	data := core.NotificationData{
		CustomerName:  "Kwame",
		InvoiceNumber: "INV-0042",
		JobNumber:     "JOB-0007",
		Vehicle:       "Toyota Corolla",
		Amount:        decimal.RequireFromString("760.5"),
		DueDate:       "2026-09-15",
		PaymentLink:   "http://localhost:8080/pay/42",
	}

	reminder, err := RenderMessage(core.NotifyPaymentReminder, data)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Kwame", "INV-0042", "GHS 760.50", "2026-09-15", "http://localhost:8080/pay/42"} {
		if !strings.Contains(reminder, want) {
			t.Errorf("reminder missing %q:\n%s", want, reminder)
		}
	}

	completed, err := RenderMessage(core.NotifyPaymentCompleted, data)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"GHS 760.50", "Toyota Corolla", "JOB-0007", "INV-0042"} {
		if !strings.Contains(completed, want) {
			t.Errorf("completion message missing %q:\n%s", want, completed)
		}
	}

	started, err := RenderMessage(core.NotifyJobStarted, data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(started, "JOB-0007") || !strings.Contains(started, "Toyota Corolla") {
		t.Errorf("job-started message incomplete:\n%s", started)
	}

	if _, err := RenderMessage(core.NotificationKind("BOGUS"), data); err == nil {
		t.Error("unknown kind must error")
	}
}

func TestNotifySendsForm(t *testing.T) {
	var to, from, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Accounts/AC123/Messages.json") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, _ := r.BasicAuth()
		if user != "AC123" || pass != "token" {
			t.Errorf("unexpected basic auth %s:%s", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		to, from, body = r.PostForm.Get("To"), r.PostForm.Get("From"), r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	n := NewNotifier("AC123", "token", "+15550001111")
	n.baseURL = srv.URL

	err := n.Notify(context.Background(), "0244123456", core.NotifyPaymentReminder, core.NotificationData{
		CustomerName:  "Ama",
		InvoiceNumber: "INV-0001",
		Amount:        decimal.RequireFromString("100"),
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if to != "+233244123456" {
		t.Errorf("destination not normalized: %s", to)
	}
	if from != "+15550001111" {
		t.Errorf("unexpected sender: %s", from)
	}
	if !strings.Contains(body, "INV-0001") {
		t.Errorf("body missing invoice number: %s", body)
	}
}

func TestNotifyUnconfiguredIsNoop(t *testing.T) {
	n := NewNotifier("", "", "")
	err := n.Notify(context.Background(), "0244123456", core.NotifyPaymentReminder, core.NotificationData{
		CustomerName:  "Ama",
		InvoiceNumber: "INV-0001",
		Amount:        decimal.RequireFromString("100"),
	})
	if err != nil {
		t.Fatalf("unconfigured notifier must not error: %v", err)
	}
}
