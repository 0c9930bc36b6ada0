package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/bookshelf/internal/domain/order"
)

// DefaultEndpoint is the EmailJS REST send endpoint.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// EmailJSConfig holds EmailJS account settings.
type EmailJSConfig struct {
	Endpoint          string
	ServiceID         string
	OrderTemplateID   string
	ContactTemplateID string
	PublicKey         string
	PrivateKey        string
	Timeout           time.Duration
	// Recipient is the display name used in templates.
	Recipient string
}

// Enabled reports whether enough settings are present to send order mail.
func (c EmailJSConfig) Enabled() bool {
	return c.ServiceID != "" && c.OrderTemplateID != "" && c.PublicKey != ""
}

var _ Notifier = (*EmailJS)(nil)

// EmailJS sends template emails through the EmailJS REST API.
type EmailJS struct {
	cfg    EmailJSConfig
	client *http.Client
}

// NewEmailJS returns an EmailJS client whose transport is traced and
// metered with the given providers.
func NewEmailJS(cfg EmailJSConfig, tp trace.TracerProvider, mp metric.MeterProvider) *EmailJS {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Recipient == "" {
		cfg.Recipient = "Admin"
	}
	return &EmailJS{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tp),
				otelhttp.WithMeterProvider(mp),
			),
		},
	}
}

type param struct {
	key, value string
}

// OrderPlaced emails the store owner a summary of o.
func (c *EmailJS) OrderPlaced(ctx context.Context, o *order.Order, items []order.Item) error {
	return c.send(ctx, c.cfg.OrderTemplateID, []param{
		{"to_name", c.cfg.Recipient},
		{"from_name", o.CustomerName},
		{"customer_name", o.CustomerName},
		{"customer_phone", o.CustomerPhone},
		{"customer_email", orDefault(o.CustomerEmail, "Not provided")},
		{"customer_address", o.Address},
		{"order_id", o.ID},
		{"order_items", itemLines(items)},
		{"total_amount", "₹" + o.TotalAmount.StringFixed(0)},
		{"order_count", fmt.Sprint(len(items))},
		{"message", "New order received from " + o.CustomerName},
		{"reply_to", orDefault(o.CustomerEmail, "noreply@example.com")},
	})
}

// ContactMessage forwards a contact form submission. Without a contact
// template the order template is used.
func (c *EmailJS) ContactMessage(ctx context.Context, m Contact) error {
	tmpl := c.cfg.ContactTemplateID
	if tmpl == "" {
		tmpl = c.cfg.OrderTemplateID
	}
	return c.send(ctx, tmpl, []param{
		{"to_name", c.cfg.Recipient},
		{"from_name", m.Name},
		{"customer_name", m.Name},
		{"customer_phone", orDefault(m.Phone, "Not provided")},
		{"customer_email", orDefault(m.Email, "Not provided")},
		{"message", m.Message},
		{"reply_to", orDefault(m.Email, "noreply@example.com")},
	})
}

func (c *EmailJS) send(ctx context.Context, templateID string, params []param) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("service_id")
	e.Str(c.cfg.ServiceID)
	e.FieldStart("template_id")
	e.Str(templateID)
	e.FieldStart("user_id")
	e.Str(c.cfg.PublicKey)
	if c.cfg.PrivateKey != "" {
		e.FieldStart("accessToken")
		e.Str(c.cfg.PrivateKey)
	}
	e.FieldStart("template_params")
	e.ObjStart()
	for _, p := range params {
		e.FieldStart(p.key)
		e.Str(p.value)
	}
	e.ObjEnd()
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send email")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("emailjs: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
