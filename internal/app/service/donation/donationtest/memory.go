// Package donationtest provides an in-memory donation.Repository for tests.
package donationtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation"
	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

type customerKey struct {
	donorID  string
	gateway  string
	testMode bool
}

type Store struct {
	mu         sync.Mutex
	donations  map[string]*models.Donation
	recurring  map[string]*models.RecurringDonation
	customers  map[customerKey]string
	logs       map[string][]string
	refundLogs map[string]*models.RefundLog

	// FailUpdates makes every write return this error.
	FailUpdates error
	// FailNextRenewal is returned once by RenewRecurringDonation.
	FailNextRenewal error
	// CustomerWrites counts SetCustomerID calls.
	CustomerWrites int
}

var _ donation.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		donations:  map[string]*models.Donation{},
		recurring:  map[string]*models.RecurringDonation{},
		customers:  map[customerKey]string{},
		logs:       map[string][]string{},
		refundLogs: map[string]*models.RefundLog{},
	}
}

func (s *Store) PutDonation(d *models.Donation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.donations[d.ID] = &cp
}

func (s *Store) PutRecurringDonation(rd *models.RecurringDonation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rd
	s.recurring[rd.ID] = &cp
}

func (s *Store) PutCustomer(donorID, gateway string, testMode bool, customerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customerKey{donorID, gateway, testMode}] = customerID
}

// Logs returns the messages recorded for a donation, oldest first.
func (s *Store) Logs(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logs[id]...)
}

func (s *Store) RefundLog(id string) *models.RefundLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refundLogs[id]
}

func (s *Store) Donation(id string) *models.Donation {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return nil
	}
	cp := *d
	return &cp
}

func (s *Store) Recurring(id string) *models.RecurringDonation {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd, ok := s.recurring[id]
	if !ok {
		return nil
	}
	cp := *rd
	return &cp
}

func (s *Store) GetDonation(_ context.Context, id string) (*models.Donation, error) {
	if d := s.Donation(id); d != nil {
		return d, nil
	}
	return nil, fmt.Errorf("get donation %s: %w", id, donation.ErrNotFound)
}

func (s *Store) GetDonationByTransactionID(_ context.Context, transactionID string) (*models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.donations {
		if transactionID != "" && d.GatewayTransactionID == transactionID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, donation.ErrNotFound
}

func (s *Store) withDonation(id string, fn func(d *models.Donation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdates != nil {
		return s.FailUpdates
	}
	d, ok := s.donations[id]
	if !ok {
		return donation.ErrNotFound
	}
	fn(d)
	return nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, status types.DonationStatus) error {
	return s.withDonation(id, func(d *models.Donation) { d.Status = status })
}

func (s *Store) SetGatewayTransaction(_ context.Context, id, transactionID, transactionURL string) error {
	return s.withDonation(id, func(d *models.Donation) {
		if transactionID != "" {
			d.GatewayTransactionID = transactionID
		}
		if transactionURL != "" {
			d.GatewayTransactionURL = transactionURL
		}
	})
}

func (s *Store) AddLogs(_ context.Context, id string, messages ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdates != nil {
		return s.FailUpdates
	}
	for _, m := range messages {
		if m != "" {
			s.logs[id] = append(s.logs[id], m)
		}
	}
	return nil
}

func (s *Store) ListLogs(_ context.Context, id string) ([]*models.DonationLog, error) {
	var out []*models.DonationLog
	for _, m := range s.Logs(id) {
		out = append(out, &models.DonationLog{DonationID: id, Message: m})
	}
	return out, nil
}

func (s *Store) SaveRefundLog(_ context.Context, id string, refundLog *models.RefundLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdates != nil {
		return s.FailUpdates
	}
	s.refundLogs[id] = refundLog
	return nil
}

func (s *Store) ClaimRefund(_ context.Context, id string) (bool, error) {
	claimed := false
	err := s.withDonation(id, func(d *models.Donation) {
		if !d.Refunded {
			d.Refunded = true
			claimed = true
		}
	})
	return claimed, err
}

func (s *Store) ReleaseRefund(_ context.Context, id string) error {
	return s.withDonation(id, func(d *models.Donation) { d.Refunded = false })
}

func (s *Store) GetRecurringDonation(_ context.Context, id string) (*models.RecurringDonation, error) {
	if rd := s.Recurring(id); rd != nil {
		return rd, nil
	}
	return nil, fmt.Errorf("get recurring donation %s: %w", id, donation.ErrNotFound)
}

func (s *Store) withRecurring(id string, fn func(rd *models.RecurringDonation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdates != nil {
		return s.FailUpdates
	}
	rd, ok := s.recurring[id]
	if !ok {
		return donation.ErrNotFound
	}
	fn(rd)
	return nil
}

func (s *Store) RenewRecurringDonation(_ context.Context, id string) error {
	s.mu.Lock()
	failNext := s.FailNextRenewal
	s.FailNextRenewal = nil
	s.mu.Unlock()
	if failNext != nil {
		return failNext
	}
	return s.withRecurring(id, func(rd *models.RecurringDonation) {
		rd.Status = types.RecurringDonationStatusActive
		rd.RenewalCount++
	})
}

func (s *Store) SetGatewaySubscription(_ context.Context, id, customerID, subscriptionID string) error {
	return s.withRecurring(id, func(rd *models.RecurringDonation) {
		rd.GatewayCustomerID = customerID
		rd.GatewaySubscriptionID = subscriptionID
	})
}

func (s *Store) ClaimSubscriptionCancellation(_ context.Context, id string) (bool, error) {
	claimed := false
	err := s.withRecurring(id, func(rd *models.RecurringDonation) {
		if rd.Status != types.RecurringDonationStatusCancelled {
			rd.Status = types.RecurringDonationStatusCancelled
			claimed = true
		}
	})
	return claimed, err
}

func (s *Store) ReleaseSubscriptionCancellation(_ context.Context, id string, previous types.RecurringDonationStatus) error {
	return s.withRecurring(id, func(rd *models.RecurringDonation) { rd.Status = previous })
}

func (s *Store) GetCustomerID(_ context.Context, donorID, gateway string, testMode bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers[customerKey{donorID, gateway, testMode}], nil
}

func (s *Store) SetCustomerID(_ context.Context, donorID, gateway string, testMode bool, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdates != nil {
		return s.FailUpdates
	}
	s.CustomerWrites++
	s.customers[customerKey{donorID, gateway, testMode}] = customerID
	return nil
}
