package payment

import "github.com/fatflowers/mollie-gateway/internal/platform/mollie"

// Response is a read-only view over a payment returned by Mollie.
type Response struct {
	payment *mollie.Payment
}

func NewResponse(p *mollie.Payment) *Response {
	if p == nil {
		p = &mollie.Payment{}
	}
	return &Response{payment: p}
}

func (r *Response) GatewayTransactionID() string  { return r.payment.ID }
func (r *Response) GatewayTransactionURL() string { return r.payment.DashboardURL() }
func (r *Response) Redirect() string              { return r.payment.CheckoutURL() }

// Mollie always sends the donor to its hosted checkout.
func (r *Response) RequiresRedirect() bool { return true }
func (r *Response) RequiresAction() bool   { return false }

func (r *Response) PaymentFailed() bool {
	return r.payment.Status == mollie.PaymentStatusFailed
}

func (r *Response) PaymentCompleted() bool {
	return r.payment.Status == mollie.PaymentStatusPaid
}

func (r *Response) PaymentCancelled() bool {
	return r.payment.Status == mollie.PaymentStatusCanceled || r.payment.Status == mollie.PaymentStatusExpired
}
