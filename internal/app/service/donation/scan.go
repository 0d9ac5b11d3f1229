package donation

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

// ScanFields are the donation columns admin filters and sorting may use.
var ScanFields = []string{
	"id", "donor_id", "email", "campaign_id", "amount", "currency", "gateway",
	"test_mode", "status", "gateway_transaction_id", "recurring_donation_id",
	"refunded", "created_at", "updated_at",
}

type ScanDonationsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanDonationsResponse struct {
	Items []*models.Donation `json:"items"`
	Total int64              `json:"total"`
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

func (r *ScanDonationsRequest) validate() error {
	for _, f := range r.Filters {
		if f == nil {
			return fmt.Errorf("nil filter")
		}
		if err := f.Validate(ScanFields); err != nil {
			return err
		}
	}
	if r.SortBy != "" {
		if err := (&types.CommonFilter{Field: r.SortBy}).Validate(ScanFields); err != nil {
			return fmt.Errorf("sort: %w", err)
		}
	}
	return nil
}

// ScanDonations implements paginated admin listing with filters.
func (s *Service) ScanDonations(ctx context.Context, req *ScanDonationsRequest) (*ScanDonationsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Size <= 0 || req.Size > 200 {
		req.Size = 20
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Donation{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}
	tx = tx.Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count donations: %w", err)
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	var rows []*models.Donation
	q := tx.Limit(req.Size).Offset(req.From).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	return &ScanDonationsResponse{Items: rows, Total: total}, nil
}
