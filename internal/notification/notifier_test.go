package notification

import (
	"context"
	"strings"
	"testing"

	"valora_backend/internal/events"
	"valora_backend/platform/logger"
)

type smtpConfig struct{ enabled bool }

func (c smtpConfig) GetSMTPHost() string         { return "smtp.example.test" }
func (c smtpConfig) GetSMTPPort() int            { return 587 }
func (c smtpConfig) GetSMTPUser() string         { return "mailer" }
func (c smtpConfig) GetSMTPPassword() string     { return "secret" }
func (c smtpConfig) GetEmailFromAddress() string { return "alerts@example.test" }
func (c smtpConfig) GetNotifyAddress() string    { return "buyer@example.test" }
func (c smtpConfig) IsEmailEnabled() bool        { return c.enabled }

func priceChange(oldPrice, newPrice float64) events.ListingPriceChanged {
	return events.ListingPriceChanged{
		BaseEvent:  events.NewBaseEvent(),
		ExternalID: 43210123,
		Address:    "Damrak 1",
		City:       "Amsterdam",
		OldPrice:   oldPrice,
		NewPrice:   newPrice,
	}
}

func TestHandlePriceChanged_SendsOnDrop(t *testing.T) {
	n := NewNotifier(smtpConfig{enabled: true}, logger.New("test"))

	var gotSubject, gotBody string
	n.send = func(_ context.Context, subject, body string) error {
		gotSubject, gotBody = subject, body
		return nil
	}

	if err := n.HandlePriceChanged(context.Background(), priceChange(500000, 475000)); err != nil {
		t.Fatalf("HandlePriceChanged: %v", err)
	}
	if gotSubject != "Prijsverlaging: Damrak 1, Amsterdam" {
		t.Fatalf("subject = %q", gotSubject)
	}
	for _, want := range []string{"€ 500.000", "€ 475.000", "5.0%", "funda.nl/detail/43210123"} {
		if !strings.Contains(gotBody, want) {
			t.Fatalf("body missing %q:\n%s", want, gotBody)
		}
	}
}

func TestHandlePriceChanged_IgnoresIncrease(t *testing.T) {
	n := NewNotifier(smtpConfig{enabled: true}, logger.New("test"))

	sent := 0
	n.send = func(context.Context, string, string) error { sent++; return nil }

	if err := n.HandlePriceChanged(context.Background(), priceChange(500000, 510000)); err != nil {
		t.Fatalf("HandlePriceChanged: %v", err)
	}
	if sent != 0 {
		t.Fatalf("sent %d emails on a price increase, want 0", sent)
	}
}

func TestHandlePriceChanged_DisabledIsNoOp(t *testing.T) {
	n := NewNotifier(smtpConfig{enabled: false}, logger.New("test"))

	sent := 0
	n.send = func(context.Context, string, string) error { sent++; return nil }

	if err := n.HandlePriceChanged(context.Background(), priceChange(500000, 400000)); err != nil {
		t.Fatalf("HandlePriceChanged: %v", err)
	}
	if sent != 0 {
		t.Fatalf("sent %d emails while disabled, want 0", sent)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{475000, "475.000"},
		{1250000, "1.250.000"},
		{999, "999"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := formatPrice(tt.in); got != tt.want {
			t.Fatalf("formatPrice(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
