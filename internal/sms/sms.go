// Package sms sends customer notifications through the Twilio messaging API.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"garage-api/internal/core"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// Notifier implements core.Notifier over Twilio's Messages endpoint. When the
// credentials are missing it degrades to a no-op that logs each skipped send,
// so a dev environment works without an SMS account.
type Notifier struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
	log        zerolog.Logger
}

func NewNotifier(accountSID, authToken, from string) *Notifier {
	n := &Notifier{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioBaseURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		log:        log.With().Str("component", "sms").Logger(),
	}
	if !n.configured() {
		n.log.Warn().Msg("sms notifier not configured, messages will be dropped")
	}
	return n
}

func (n *Notifier) configured() bool {
	return n.accountSID != "" && n.authToken != "" && n.from != ""
}

func (n *Notifier) Notify(ctx context.Context, phone string, kind core.NotificationKind, data core.NotificationData) error {
	body, err := RenderMessage(kind, data)
	if err != nil {
		return err
	}
	if !n.configured() {
		n.log.Info().Str("kind", string(kind)).Str("phone", phone).Msg("sms skipped (not configured)")
		return nil
	}
	return n.send(ctx, FormatPhone(phone), body)
}

func (n *Notifier) send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", n.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", n.baseURL, n.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.SetBasicAuth(n.accountSID, n.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return core.Upstreamf(err, "sms request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var twilioErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &twilioErr)
		return core.Upstreamf(nil, "sms provider rejected message (HTTP %d): %s", resp.StatusCode, twilioErr.Message)
	}

	n.log.Debug().Str("to", to).Msg("sms sent")
	return nil
}

// FormatPhone converts a local Ghanaian number to E.164.
func FormatPhone(phone string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	switch {
	case strings.HasPrefix(cleaned, "0"):
		return "+233" + cleaned[1:]
	case strings.HasPrefix(cleaned, "233"):
		return "+" + cleaned
	default:
		return "+233" + cleaned
	}
}

// RenderMessage builds the customer-facing text for a notification kind.
func RenderMessage(kind core.NotificationKind, d core.NotificationData) (string, error) {
	switch kind {
	case core.NotifyJobStarted:
		msg := fmt.Sprintf("Hi %s!\n\nWork on your %s has started (Job #%s).",
			d.CustomerName, d.Vehicle, d.JobNumber)
		if d.MechanicName != "" {
			msg += " Mechanic: " + d.MechanicName
		}
		msg += "\n\nWe'll update you on progress.\n\n- Biskaken Auto Services"
		return msg, nil

	case core.NotifyPaymentReminder:
		msg := fmt.Sprintf("Hi %s!\n\nReminder: Invoice %s for GHS %s is pending payment.",
			d.CustomerName, d.InvoiceNumber, d.Amount.StringFixed(2))
		if d.DueDate != "" {
			msg += " Due: " + d.DueDate
		}
		if d.PaymentLink != "" {
			msg += "\n\nPay online: " + d.PaymentLink
		}
		msg += "\n\nThank you!\n- Biskaken Auto Services"
		return msg, nil

	case core.NotifyPaymentCompleted:
		return fmt.Sprintf(
			"Hi %s!\n\nPayment of GHS %s received for your %s (Job #%s). Invoice %s is now settled.\n\nThank you for choosing Biskaken Auto Services!",
			d.CustomerName, d.Amount.StringFixed(2), d.Vehicle, d.JobNumber, d.InvoiceNumber), nil

	default:
		return "", fmt.Errorf("unknown notification kind %q", kind)
	}
}
