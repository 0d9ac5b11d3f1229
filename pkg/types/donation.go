package types

// GatewayMollie is the gateway identifier stored on donations paid through Mollie.
const GatewayMollie = "mollie"

type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"
	DonationStatusCompleted DonationStatus = "completed"
	DonationStatusFailed    DonationStatus = "failed"
	DonationStatusCancelled DonationStatus = "cancelled"
	DonationStatusRefunded  DonationStatus = "refunded"
)

type RecurringDonationStatus string

const (
	RecurringDonationStatusPending   RecurringDonationStatus = "pending"
	RecurringDonationStatusActive    RecurringDonationStatus = "active"
	RecurringDonationStatusCancelled RecurringDonationStatus = "cancelled"
)

// DonationPeriod is the billing period of a recurring donation.
type DonationPeriod string

const (
	DonationPeriodDay        DonationPeriod = "day"
	DonationPeriodWeek       DonationPeriod = "week"
	DonationPeriodMonth      DonationPeriod = "month"
	DonationPeriodQuarter    DonationPeriod = "quarter"
	DonationPeriodSemiannual DonationPeriod = "semiannual"
	DonationPeriodYear       DonationPeriod = "year"
)
