package payment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/logctx"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

var ErrNotPrepared = errors.New("payment request was not prepared")

// CustomerStore caches the Mollie customer id of a donor per mode.
type CustomerStore interface {
	GetCustomerID(ctx context.Context, donorID, gateway string, testMode bool) (string, error)
	SetCustomerID(ctx context.Context, donorID, gateway string, testMode bool, customerID string) error
}

// Request builds and sends the create-payment call for one donation.
type Request struct {
	client    *mollie.Client
	customers CustomerStore
	data      *DonationData
	log       *zap.SugaredLogger

	body    *mollie.CreatePaymentRequest
	payment *mollie.Payment
	notice  string
}

func NewRequest(client *mollie.Client, customers CustomerStore, data *DonationData, log *zap.SugaredLogger) *Request {
	return &Request{client: client, customers: customers, data: data, log: log}
}

// Prepare resolves the donor's customer and builds the request body.
func (r *Request) Prepare(ctx context.Context) error {
	customerID, err := r.customerID(ctx)
	if err != nil {
		r.notice = fmt.Sprintf("Payment request failed with error: %s.", mollie.ErrorDetail(err))
		return err
	}

	sequence := mollie.SequenceTypeOneOff
	if r.data.RecurringDonationID != "" {
		sequence = mollie.SequenceTypeFirst
	}
	metadata := map[string]string{"donation_id": r.data.DonationID}
	if r.data.DonationKey != "" {
		metadata["donation_key"] = r.data.DonationKey
	}

	r.body = &mollie.CreatePaymentRequest{
		Amount:       mollie.NewAmount(r.data.Currency, r.data.Amount),
		Description:  r.data.PaymentDescription(),
		RedirectURL:  r.data.ReturnURL,
		WebhookURL:   r.data.WebhookURL,
		Locale:       r.data.Locale,
		CustomerID:   customerID,
		SequenceType: sequence,
		Metadata:     metadata,
	}
	return nil
}

// Body returns the prepared body, nil before Prepare.
func (r *Request) Body() *mollie.CreatePaymentRequest { return r.body }

// Execute posts the prepared payment. On failure Notice holds the text for the donor.
func (r *Request) Execute(ctx context.Context) error {
	if r.body == nil {
		return ErrNotPrepared
	}
	p, err := r.client.CreatePayment(ctx, r.body)
	if err != nil {
		r.notice = fmt.Sprintf("Payment request failed with error: %s.", mollie.ErrorDetail(err))
		return fmt.Errorf("create payment for donation %s: %w", r.data.DonationID, err)
	}
	r.payment = p
	return nil
}

func (r *Request) Notice() string { return r.notice }

// Response wraps the created payment; call it after a successful Execute.
func (r *Request) Response() *Response { return NewResponse(r.payment) }

// customerID reuses the cached customer when Mollie still knows it and
// creates a new one otherwise.
func (r *Request) customerID(ctx context.Context) (string, error) {
	lg := logctx.FromCtx(ctx, r.log)
	if r.data.DonorID != "" {
		cached, err := r.customers.GetCustomerID(ctx, r.data.DonorID, types.GatewayMollie, r.data.TestMode)
		if err != nil {
			lg.Warnw("customer cache lookup failed", "donor_id", r.data.DonorID, "err", err)
		}
		if cached != "" {
			c, err := r.client.GetCustomer(ctx, cached)
			if err == nil {
				return c.ID, nil
			}
			lg.Infow("cached mollie customer is gone, creating a new one", "customer_id", cached, "err", err)
		}
	}

	c, err := r.client.CreateCustomer(ctx, &mollie.CreateCustomerRequest{
		Name:   r.data.FullName,
		Email:  r.data.Email,
		Locale: r.data.Locale,
	})
	if err != nil {
		return "", fmt.Errorf("create mollie customer: %w", err)
	}
	if r.data.DonorID != "" {
		if err := r.customers.SetCustomerID(ctx, r.data.DonorID, types.GatewayMollie, r.data.TestMode, c.ID); err != nil {
			lg.Warnw("failed to cache mollie customer", "donor_id", r.data.DonorID, "customer_id", c.ID, "err", err)
		}
	}
	return c.ID, nil
}
