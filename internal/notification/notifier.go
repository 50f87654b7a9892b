// Package notification sends price-drop alert emails for tracked
// listings.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"valora_backend/internal/events"
	"valora_backend/platform/config"
	"valora_backend/platform/logger"
)

const fromName = "Valora"

var priceDropTemplate = template.Must(template.New("price_drop").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #1f2933;">
  <h2>Prijsverlaging: {{.Address}}, {{.City}}</h2>
  <p>De vraagprijs is verlaagd van <s>€ {{.OldPrice}}</s> naar <strong>€ {{.NewPrice}}</strong> ({{.DropPercent}}%).</p>
  <p><a href="{{.DetailURL}}">Bekijk de woning</a></p>
</body>
</html>`))

type priceDropData struct {
	Address     string
	City        string
	OldPrice    string
	NewPrice    string
	DropPercent string
	DetailURL   string
}

// Notifier emails the configured recipient when a listing price drops.
// With SMTP unconfigured every call is a silent no-op.
type Notifier struct {
	cfg config.NotificationConfig
	log *logger.Logger

	// send is swapped in tests.
	send func(ctx context.Context, subject, htmlBody string) error
}

// NewNotifier creates a price-drop notifier.
func NewNotifier(cfg config.NotificationConfig, log *logger.Logger) *Notifier {
	n := &Notifier{cfg: cfg, log: log.WithSource("notification")}
	n.send = n.sendSMTP
	if !cfg.IsEmailEnabled() || cfg.GetNotifyAddress() == "" {
		log.Info("price-drop notifications disabled, SMTP not configured")
	}
	return n
}

// Enabled reports whether notifications will actually be delivered.
func (n *Notifier) Enabled() bool {
	return n.cfg.IsEmailEnabled() && n.cfg.GetNotifyAddress() != ""
}

// Subscribe attaches the notifier to the event bus.
func (n *Notifier) Subscribe(bus events.Bus) {
	if !n.Enabled() {
		return
	}
	bus.Subscribe(events.ListingPriceChanged{}.EventName(), events.HandlerFunc(n.HandlePriceChanged))
}

// HandlePriceChanged emails an alert for price drops; increases are
// ignored.
func (n *Notifier) HandlePriceChanged(ctx context.Context, event events.Event) error {
	changed, ok := event.(events.ListingPriceChanged)
	if !ok {
		return nil
	}
	if !n.Enabled() || changed.NewPrice >= changed.OldPrice {
		return nil
	}

	body, err := renderPriceDrop(changed)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Prijsverlaging: %s, %s", changed.Address, changed.City)

	if err := n.send(ctx, subject, body); err != nil {
		return fmt.Errorf("send price-drop alert for listing %d: %w", changed.ExternalID, err)
	}
	n.log.Info("price-drop alert sent",
		"external_id", changed.ExternalID,
		"old_price", changed.OldPrice,
		"new_price", changed.NewPrice)
	return nil
}

func renderPriceDrop(changed events.ListingPriceChanged) (string, error) {
	dropPercent := 0.0
	if changed.OldPrice > 0 {
		dropPercent = (changed.OldPrice - changed.NewPrice) / changed.OldPrice * 100
	}

	var buf bytes.Buffer
	err := priceDropTemplate.Execute(&buf, priceDropData{
		Address:     changed.Address,
		City:        changed.City,
		OldPrice:    formatPrice(changed.OldPrice),
		NewPrice:    formatPrice(changed.NewPrice),
		DropPercent: fmt.Sprintf("%.1f", dropPercent),
		DetailURL:   fmt.Sprintf("https://www.funda.nl/detail/%d/", changed.ExternalID),
	})
	if err != nil {
		return "", fmt.Errorf("render price-drop email: %w", err)
	}
	return buf.String(), nil
}

// formatPrice renders a price in the Dutch convention with dot
// thousands separators.
func formatPrice(price float64) string {
	whole := int64(price)
	plain := fmt.Sprintf("%d", whole)

	var buf bytes.Buffer
	for i, digit := range plain {
		if i > 0 && (len(plain)-i)%3 == 0 {
			buf.WriteByte('.')
		}
		buf.WriteRune(digit)
	}
	return buf.String()
}

func (n *Notifier) sendSMTP(ctx context.Context, subject, htmlBody string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(fromName, n.cfg.GetEmailFromAddress()); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(n.cfg.GetNotifyAddress()); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	client, err := gomail.NewClient(n.cfg.GetSMTPHost(),
		gomail.WithPort(n.cfg.GetSMTPPort()),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(n.cfg.GetSMTPUser()),
		gomail.WithPassword(n.cfg.GetSMTPPassword()),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
