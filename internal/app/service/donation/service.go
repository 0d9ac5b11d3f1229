package donation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

var ErrNotFound = errors.New("donation: record not found")

// Repository is the donation state the gateway reads and writes.
type Repository interface {
	GetDonation(ctx context.Context, id string) (*models.Donation, error)
	GetDonationByTransactionID(ctx context.Context, transactionID string) (*models.Donation, error)
	UpdateStatus(ctx context.Context, id string, status types.DonationStatus) error
	SetGatewayTransaction(ctx context.Context, id, transactionID, transactionURL string) error
	AddLogs(ctx context.Context, id string, messages ...string) error
	ListLogs(ctx context.Context, id string) ([]*models.DonationLog, error)
	SaveRefundLog(ctx context.Context, id string, refundLog *models.RefundLog) error
	// ClaimRefund sets the refunded flag and reports whether this call flipped it.
	ClaimRefund(ctx context.Context, id string) (bool, error)
	ReleaseRefund(ctx context.Context, id string) error

	GetRecurringDonation(ctx context.Context, id string) (*models.RecurringDonation, error)
	RenewRecurringDonation(ctx context.Context, id string) error
	// SetGatewaySubscription records the remote subscription and the customer that owns it.
	SetGatewaySubscription(ctx context.Context, id, customerID, subscriptionID string) error
	// ClaimSubscriptionCancellation moves the plan to cancelled and reports whether this call did it.
	ClaimSubscriptionCancellation(ctx context.Context, id string) (bool, error)
	ReleaseSubscriptionCancellation(ctx context.Context, id string, previous types.RecurringDonationStatus) error

	GetCustomerID(ctx context.Context, donorID, gateway string, testMode bool) (string, error)
	SetCustomerID(ctx context.Context, donorID, gateway string, testMode bool, customerID string) error
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) GetDonation(ctx context.Context, id string) (*models.Donation, error) {
	var d models.Donation
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, fmt.Errorf("get donation %s: %w", id, notFound(err))
	}
	return &d, nil
}

func (s *Service) GetDonationByTransactionID(ctx context.Context, transactionID string) (*models.Donation, error) {
	if transactionID == "" {
		return nil, ErrNotFound
	}
	var d models.Donation
	if err := s.db.WithContext(ctx).
		Where("gateway_transaction_id = ?", transactionID).
		Order("created_at ASC").
		First(&d).Error; err != nil {
		return nil, fmt.Errorf("get donation by transaction %s: %w", transactionID, notFound(err))
	}
	return &d, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status types.DonationStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Donation{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("update donation %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update donation %s status: %w", id, ErrNotFound)
	}
	return nil
}

// SetGatewayTransaction stores the gateway reference; empty values leave the column untouched.
func (s *Service) SetGatewayTransaction(ctx context.Context, id, transactionID, transactionURL string) error {
	updates := map[string]any{}
	if transactionID != "" {
		updates["gateway_transaction_id"] = transactionID
	}
	if transactionURL != "" {
		updates["gateway_transaction_url"] = transactionURL
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Donation{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("set gateway transaction on %s: %w", id, err)
	}
	return nil
}

func (s *Service) AddLogs(ctx context.Context, id string, messages ...string) error {
	rows := make([]*models.DonationLog, 0, len(messages))
	for _, m := range messages {
		if m == "" {
			continue
		}
		rows = append(rows, &models.DonationLog{DonationID: id, Message: m})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("add logs to donation %s: %w", id, err)
	}
	return nil
}

func (s *Service) ListLogs(ctx context.Context, id string) ([]*models.DonationLog, error) {
	var rows []*models.DonationLog
	if err := s.db.WithContext(ctx).Where("donation_id = ?", id).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list logs of donation %s: %w", id, err)
	}
	return rows, nil
}

func (s *Service) SaveRefundLog(ctx context.Context, id string, refundLog *models.RefundLog) error {
	err := s.db.WithContext(ctx).Model(&models.Donation{}).
		Where("id = ?", id).
		Update("refund_log", datatypes.NewJSONType(refundLog)).Error
	if err != nil {
		return fmt.Errorf("save refund log of %s: %w", id, err)
	}
	return nil
}

func (s *Service) ClaimRefund(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Donation{}).
		Where("id = ? AND refunded = ?", id, false).
		Update("refunded", true)
	if res.Error != nil {
		return false, fmt.Errorf("claim refund of %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Service) ReleaseRefund(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Model(&models.Donation{}).Where("id = ?", id).Update("refunded", false).Error; err != nil {
		return fmt.Errorf("release refund of %s: %w", id, err)
	}
	return nil
}

func (s *Service) GetRecurringDonation(ctx context.Context, id string) (*models.RecurringDonation, error) {
	var rd models.RecurringDonation
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rd).Error; err != nil {
		return nil, fmt.Errorf("get recurring donation %s: %w", id, notFound(err))
	}
	return &rd, nil
}

// RenewRecurringDonation activates the plan and counts one more charged period.
func (s *Service) RenewRecurringDonation(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.RecurringDonation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          types.RecurringDonationStatusActive,
			"renewal_count":   gorm.Expr("renewal_count + 1"),
			"last_renewed_at": s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("renew recurring donation %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("renew recurring donation %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Service) SetGatewaySubscription(ctx context.Context, id, customerID, subscriptionID string) error {
	if err := s.db.WithContext(ctx).Model(&models.RecurringDonation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"gateway_customer_id":     customerID,
			"gateway_subscription_id": subscriptionID,
		}).Error; err != nil {
		return fmt.Errorf("set subscription id on %s: %w", id, err)
	}
	return nil
}

func (s *Service) ClaimSubscriptionCancellation(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.RecurringDonation{}).
		Where("id = ? AND status <> ?", id, types.RecurringDonationStatusCancelled).
		Updates(map[string]any{
			"status":       types.RecurringDonationStatusCancelled,
			"cancelled_at": s.now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim cancellation of %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Service) ReleaseSubscriptionCancellation(ctx context.Context, id string, previous types.RecurringDonationStatus) error {
	if err := s.db.WithContext(ctx).Model(&models.RecurringDonation{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": previous, "cancelled_at": nil}).Error; err != nil {
		return fmt.Errorf("release cancellation of %s: %w", id, err)
	}
	return nil
}

// GetCustomerID returns "" without error when the donor has no customer yet.
func (s *Service) GetCustomerID(ctx context.Context, donorID, gateway string, testMode bool) (string, error) {
	var c models.GatewayCustomer
	err := s.db.WithContext(ctx).
		Where("donor_id = ? AND gateway = ? AND test_mode = ?", donorID, gateway, testMode).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get customer of donor %s: %w", donorID, err)
	}
	return c.CustomerID, nil
}

func (s *Service) SetCustomerID(ctx context.Context, donorID, gateway string, testMode bool, customerID string) error {
	row := &models.GatewayCustomer{DonorID: donorID, Gateway: gateway, TestMode: testMode, CustomerID: customerID}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "donor_id"}, {Name: "gateway"}, {Name: "test_mode"}},
		DoUpdates: clause.AssignmentColumns([]string{"customer_id", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("set customer of donor %s: %w", donorID, err)
	}
	return nil
}
