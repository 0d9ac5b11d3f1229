package types

// WebhookEventType classifies what a webhook delivery means for the donation.
type WebhookEventType string

const (
	WebhookEventPending          WebhookEventType = "pending"
	WebhookEventCompletedPayment WebhookEventType = "completed_payment"
	WebhookEventFailedPayment    WebhookEventType = "failed_payment"
	WebhookEventCancellation     WebhookEventType = "cancellation"
	WebhookEventRefund           WebhookEventType = "refund"
	WebhookEventFirstPayment     WebhookEventType = "first_payment"
)

type WebhookEventSubject string

const (
	WebhookSubjectDonation     WebhookEventSubject = "donation"
	WebhookSubjectSubscription WebhookEventSubject = "subscription"
)
