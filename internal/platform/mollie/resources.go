package mollie

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// Amount is Mollie's money representation: an ISO 4217 currency and a
// decimal string with exactly two fraction digits.
type Amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

func NewAmount(currency string, value decimal.Decimal) Amount {
	return Amount{Currency: currency, Value: FormatValue(value)}
}

// FormatValue renders v the way Mollie expects, e.g. 12.5 as "12.50".
func FormatValue(v decimal.Decimal) string {
	return v.StringFixed(2)
}

// IsZero reports whether the amount is absent, unparsable or zero.
func (a *Amount) IsZero() bool {
	if a == nil || a.Value == "" {
		return true
	}
	d, err := decimal.NewFromString(a.Value)
	return err != nil || d.IsZero()
}

type Link struct {
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

type Links struct {
	Self      *Link `json:"self,omitempty"`
	Checkout  *Link `json:"checkout,omitempty"`
	Dashboard *Link `json:"dashboard,omitempty"`
}

func href(l *Link) string {
	if l == nil {
		return ""
	}
	return l.Href
}

type PaymentStatus string

const (
	PaymentStatusOpen       PaymentStatus = "open"
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCanceled   PaymentStatus = "canceled"
	PaymentStatusExpired    PaymentStatus = "expired"
)

type SequenceType string

const (
	SequenceTypeOneOff    SequenceType = "oneoff"
	SequenceTypeFirst     SequenceType = "first"
	SequenceTypeRecurring SequenceType = "recurring"
)

type Payment struct {
	Resource       string           `json:"resource,omitempty"`
	ID             string           `json:"id"`
	Mode           string           `json:"mode,omitempty"`
	Status         PaymentStatus    `json:"status"`
	Description    string           `json:"description"`
	Amount         Amount           `json:"amount"`
	AmountRefunded *Amount          `json:"amountRefunded,omitempty"`
	CustomerID     string           `json:"customerId,omitempty"`
	MandateID      string           `json:"mandateId,omitempty"`
	SubscriptionID string           `json:"subscriptionId,omitempty"`
	SequenceType   SequenceType     `json:"sequenceType,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	Links          Links            `json:"_links"`
	Embedded       *PaymentEmbedded `json:"_embedded,omitempty"`
}

type PaymentEmbedded struct {
	Refunds []Refund `json:"refunds,omitempty"`
}

func (p *Payment) CheckoutURL() string  { return href(p.Links.Checkout) }
func (p *Payment) DashboardURL() string { return href(p.Links.Dashboard) }

// HasRefunds reports whether Mollie shows any refunded amount on the payment.
func (p *Payment) HasRefunds() bool {
	return !p.AmountRefunded.IsZero()
}

func (p *Payment) Refunds() []Refund {
	if p.Embedded == nil {
		return nil
	}
	return p.Embedded.Refunds
}

// LatestRefund returns the last embedded refund, or nil.
func (p *Payment) LatestRefund() *Refund {
	refunds := p.Refunds()
	if len(refunds) == 0 {
		return nil
	}
	return &refunds[len(refunds)-1]
}

type CreatePaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Description  string            `json:"description"`
	RedirectURL  string            `json:"redirectUrl"`
	WebhookURL   string            `json:"webhookUrl,omitempty"`
	Locale       string            `json:"locale,omitempty"`
	CustomerID   string            `json:"customerId,omitempty"`
	SequenceType SequenceType      `json:"sequenceType,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type Refund struct {
	ID          string `json:"id"`
	PaymentID   string `json:"paymentId,omitempty"`
	Status      string `json:"status,omitempty"`
	Amount      Amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

type CreateRefundRequest struct {
	Amount      Amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

type Customer struct {
	ID     string `json:"id"`
	Mode   string `json:"mode,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Locale string `json:"locale,omitempty"`
}

type CreateCustomerRequest struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Locale string `json:"locale,omitempty"`
}

type Subscription struct {
	ID          string            `json:"id"`
	CustomerID  string            `json:"customerId,omitempty"`
	Status      string            `json:"status,omitempty"`
	Amount      Amount            `json:"amount"`
	Times       int               `json:"times,omitempty"`
	Interval    string            `json:"interval"`
	Description string            `json:"description"`
	MandateID   string            `json:"mandateId,omitempty"`
	WebhookURL  string            `json:"webhookUrl,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CreateSubscriptionRequest omits Times for open-ended subscriptions.
// IdempotencyKey is sent as a header so Mollie answers a repeated create
// with the subscription it already made.
type CreateSubscriptionRequest struct {
	IdempotencyKey string `json:"-"`

	Amount      Amount            `json:"amount"`
	Times       int               `json:"times,omitempty"`
	Interval    string            `json:"interval"`
	Description string            `json:"description"`
	MandateID   string            `json:"mandateId,omitempty"`
	WebhookURL  string            `json:"webhookUrl,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (c *Client) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*Payment, error) {
	var out Payment
	if err := c.Post(ctx, "payments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPayment fetches a payment, optionally with its refunds embedded.
func (c *Client) GetPayment(ctx context.Context, id string, embedRefunds bool) (*Payment, error) {
	path := "payments/" + url.PathEscape(id)
	if embedRefunds {
		path += "?embed=refunds"
	}
	var out Payment
	if err := c.Get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRefund(ctx context.Context, paymentID string, req *CreateRefundRequest) (*Refund, error) {
	var out Refund
	if err := c.Post(ctx, fmt.Sprintf("payments/%s/refunds", url.PathEscape(paymentID)), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var out Customer
	if err := c.Get(ctx, "customers/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*Customer, error) {
	var out Customer
	if err := c.Post(ctx, "customers", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSubscription(ctx context.Context, customerID string, req *CreateSubscriptionRequest) (*Subscription, error) {
	var out Subscription
	path := fmt.Sprintf("customers/%s/subscriptions", url.PathEscape(customerID))
	if err := c.send(ctx, http.MethodPost, path, req, &out, req.IdempotencyKey); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelSubscription(ctx context.Context, customerID, subscriptionID string) (*Subscription, error) {
	var out Subscription
	path := fmt.Sprintf("customers/%s/subscriptions/%s", url.PathEscape(customerID), url.PathEscape(subscriptionID))
	if err := c.Delete(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
