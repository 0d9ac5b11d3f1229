package mollie

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const apiHost = "https://api.mollie.com"

func TestClient_WithoutKeyFailsWithoutNetwork(t *testing.T) {
	defer gock.Off()

	c := NewClient(Options{})
	require.False(t, c.HasAPIKey())
	require.False(t, c.HasValidAPIKey())

	_, err := c.GetPayment(context.Background(), "tr_1", true)
	require.ErrorIs(t, err, ErrNoAPIKey)
	require.Nil(t, c.LastResponse())
	require.False(t, gock.HasUnmatchedRequest())
}

func TestClient_FirstUnauthorizedResponseInvalidatesKey(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Get("/v2/payments/tr_1").
		Reply(http.StatusUnauthorized).
		JSON(map[string]any{"status": 401, "title": "Unauthorized Request", "detail": "Missing authentication"})

	c := NewClient(Options{APIKey: "live_bad"})
	require.True(t, c.HasValidAPIKey())

	_, err := c.GetPayment(context.Background(), "tr_1", false)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Missing authentication", ErrorDetail(err))
	require.False(t, c.HasValidAPIKey())
	require.True(t, gock.IsDone())

	// no further mocks: a network call here would fail with a gock error instead
	_, err = c.GetPayment(context.Background(), "tr_1", false)
	require.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestClient_FirstSuccessfulResponseKeepsKeyValidAfterLaterFailures(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).Get("/v2/customers/cst_1").Reply(200).JSON(map[string]any{"id": "cst_1"})
	gock.New(apiHost).Get("/v2/customers/cst_2").Reply(401).JSON(map[string]any{"detail": "nope"})

	c := NewClient(Options{APIKey: "test_abc", TestMode: true})
	_, err := c.GetCustomer(context.Background(), "cst_1")
	require.NoError(t, err)

	_, err = c.GetCustomer(context.Background(), "cst_2")
	require.Error(t, err)
	require.True(t, c.HasValidAPIKey())
	require.Equal(t, 401, c.LastResponse().StatusCode)
}

func TestClient_CreatePaymentSendsAuthenticatedJSON(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Post("/v2/payments").
		MatchHeader("Authorization", "^Bearer test_abc$").
		MatchHeader("User-Agent", "^mollie-gateway/1.0$").
		JSON(map[string]any{
			"amount":       map[string]any{"currency": "EUR", "value": "12.50"},
			"description":  "Jane Doe - Save the whales",
			"redirectUrl":  "https://example.org/donation-receipt/42",
			"webhookUrl":   "https://example.org/api/v2/payment/webhook/mollie",
			"sequenceType": "oneoff",
			"metadata":     map[string]any{"donation_id": "42"},
		}).
		Reply(201).
		JSON(map[string]any{
			"resource": "payment",
			"id":       "tr_WDqYK6vllg",
			"status":   "open",
			"_links": map[string]any{
				"checkout":  map[string]any{"href": "https://www.mollie.com/checkout/tr_WDqYK6vllg"},
				"dashboard": map[string]any{"href": "https://www.mollie.com/dashboard/payments/tr_WDqYK6vllg"},
			},
		})

	var observed []int
	c := NewClient(Options{
		APIKey:    "test_abc",
		UserAgent: "mollie-gateway/1.0",
		Observer:  func(method string, code int, _ time.Duration) { observed = append(observed, code) },
	})
	p, err := c.CreatePayment(context.Background(), &CreatePaymentRequest{
		Amount:       NewAmount("EUR", decimal.RequireFromString("12.5")),
		Description:  "Jane Doe - Save the whales",
		RedirectURL:  "https://example.org/donation-receipt/42",
		WebhookURL:   "https://example.org/api/v2/payment/webhook/mollie",
		SequenceType: SequenceTypeOneOff,
		Metadata:     map[string]string{"donation_id": "42"},
	})
	require.NoError(t, err)
	require.Equal(t, "tr_WDqYK6vllg", p.ID)
	require.Equal(t, "https://www.mollie.com/checkout/tr_WDqYK6vllg", p.CheckoutURL())
	require.Equal(t, "https://www.mollie.com/dashboard/payments/tr_WDqYK6vllg", p.DashboardURL())
	require.Equal(t, []int{201}, observed)
	require.True(t, gock.IsDone())
}

func TestClient_NonSuccessStatusIsAnError(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Post("/v2/payments/tr_1/refunds").
		Reply(422).
		JSON(map[string]any{"status": 422, "title": "Unprocessable Entity", "detail": "The amount is higher than the amount remaining"})

	c := NewClient(Options{APIKey: "live_abc"})
	_, err := c.CreateRefund(context.Background(), "tr_1", &CreateRefundRequest{Amount: Amount{Currency: "EUR", Value: "99.00"}})
	require.Error(t, err)
	require.Equal(t, "The amount is higher than the amount remaining", ErrorDetail(err))
	require.True(t, c.HasValidAPIKey())
}

func TestClient_TransportErrorIsRecorded(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Get("/v2/payments/tr_1").
		ReplyError(errors.New("connection reset"))

	c := NewClient(Options{APIKey: "live_abc"})
	_, err := c.GetPayment(context.Background(), "tr_1", false)
	require.Error(t, err)
	require.NotNil(t, c.LastResponse().Err)
	require.Equal(t, 0, c.LastResponse().StatusCode)
	// a transport failure says nothing about the key
	require.True(t, c.HasValidAPIKey())
}

func TestClient_GetPaymentEmbedsRefunds(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Get("/v2/payments/tr_1").
		MatchParam("embed", "refunds").
		Reply(200).
		JSON(map[string]any{
			"id":             "tr_1",
			"status":         "paid",
			"amountRefunded": map[string]any{"currency": "EUR", "value": "5.00"},
			"_embedded": map[string]any{"refunds": []map[string]any{
				{"id": "re_1", "amount": map[string]any{"currency": "EUR", "value": "2.00"}, "description": "first"},
				{"id": "re_2", "amount": map[string]any{"currency": "EUR", "value": "3.00"}, "description": "second"},
			}},
		})

	c := NewClient(Options{APIKey: "live_abc"})
	p, err := c.GetPayment(context.Background(), "tr_1", true)
	require.NoError(t, err)
	require.True(t, p.HasRefunds())
	require.Len(t, p.Refunds(), 2)
	require.Equal(t, "re_2", p.LatestRefund().ID)
	require.True(t, gock.IsDone())
}

func TestFactory_SelectsKeyPerMode(t *testing.T) {
	f := NewFactory(FactoryOptions{LiveAPIKey: "live_abc"})
	require.True(t, f.Client(false).HasAPIKey())
	require.False(t, f.Client(true).HasAPIKey())
	require.True(t, f.Client(true).TestMode())
	require.Same(t, f.Client(false), f.Client(false))
	require.NotSame(t, f.New(false), f.Client(false))
}

func TestClient_SendsJSONContentTypeWithoutBody(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Delete("/v2/customers/cst_1/subscriptions/sub_1").
		MatchHeader("Authorization", "^Bearer live_abc$").
		MatchHeader("Content-Type", "^application/json$").
		Reply(200).
		JSON(map[string]any{"id": "sub_1", "status": "canceled"})

	c := NewClient(Options{APIKey: "live_abc"})
	sub, err := c.CancelSubscription(context.Background(), "cst_1", "sub_1")
	require.NoError(t, err)
	require.Equal(t, "canceled", sub.Status)
	require.True(t, gock.IsDone())
}

func TestClient_CreateSubscriptionSendsIdempotencyKey(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Post("/v2/customers/cst_1/subscriptions").
		MatchHeader("Idempotency-Key", "^subscription-7-tr_1$").
		JSON(map[string]any{
			"amount":      map[string]any{"currency": "EUR", "value": "10.00"},
			"interval":    "1 months",
			"description": "Monthly",
		}).
		Reply(201).
		JSON(map[string]any{"id": "sub_1"})

	c := NewClient(Options{APIKey: "live_abc"})
	sub, err := c.CreateSubscription(context.Background(), "cst_1", &CreateSubscriptionRequest{
		IdempotencyKey: "subscription-7-tr_1",
		Amount:         Amount{Currency: "EUR", Value: "10.00"},
		Interval:       "1 months",
		Description:    "Monthly",
	})
	require.NoError(t, err)
	require.Equal(t, "sub_1", sub.ID)
	require.True(t, gock.IsDone())
}

func TestClient_CustomEndpoint(t *testing.T) {
	defer gock.Off()
	gock.New("https://mollie.internal").
		Get("^/v2/payments/tr_1$").
		Reply(200).
		JSON(map[string]any{"id": "tr_1", "status": "open"})

	c := NewClient(Options{APIKey: "live_abc", Endpoint: "https://mollie.internal/v2/"})
	p, err := c.GetPayment(context.Background(), "tr_1", false)
	require.NoError(t, err)
	require.Equal(t, PaymentStatusOpen, p.Status)
	require.True(t, gock.IsDone())
}
