package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("report request not found")

	// ErrStaleStatus is returned when the stored status changed since the
	// request was loaded.
	ErrStaleStatus = errors.New("report request status changed concurrently")
)

// Store persists report requests. *Repository is the gorm implementation.
type Store interface {
	FirstOrCreate(ctx context.Context, req *ReportRequest) error
	Get(ctx context.Context, id uint) (*ReportRequest, error)
	UpdateStatus(ctx context.Context, req *ReportRequest, to Status, changes map[string]interface{}) error
	Eligible(ctx context.Context, policy Policy, now time.Time, limit int) ([]ReportRequest, error)
	MarkDispatched(ctx context.Context, req *ReportRequest, now time.Time, ceiling int) error
}

type Repository struct {
	conn database.Handle
}

func NewRepository(conn database.Handle) *Repository {
	return &Repository{conn: conn}
}

func (r *Repository) AutoMigrate() error {
	return r.conn.DB().AutoMigrate(&ReportRequest{})
}

// FirstOrCreate inserts req unless a row with the same identity exists, then
// loads the stored row into req.
func (r *Repository) FirstOrCreate(ctx context.Context, req *ReportRequest) error {
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	err := r.conn.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "company_id"}, {Name: "report_id"}, {Name: "report_type"},
			{Name: "start_date"}, {Name: "end_date"},
		},
		DoNothing: true,
	}).Create(req).Error
	if err != nil {
		return fmt.Errorf("persisting report request: %w", err)
	}

	return r.conn.DB().WithContext(ctx).
		Where("company_id = ? AND report_id = ? AND report_type = ? AND start_date = ? AND end_date = ?",
			req.CompanyID, req.ReportID, req.ReportType, req.StartDate, req.EndDate).
		First(req).Error
}

func (r *Repository) Get(ctx context.Context, id uint) (*ReportRequest, error) {
	var req ReportRequest
	result := r.conn.DB().WithContext(ctx).First(&req, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &req, nil
}

// UpdateStatus validates and applies a transition. The update only matches
// while the stored status still equals req.Status.
func (r *Repository) UpdateStatus(ctx context.Context, req *ReportRequest, to Status, changes map[string]interface{}) error {
	if err := ValidateTransition(req.Status, to); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range changes {
		updates[k] = v
	}

	result := r.conn.DB().WithContext(ctx).Model(&ReportRequest{}).
		Where("id = ? AND status = ?", req.ID, req.Status).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: request %d", ErrStaleStatus, req.ID)
	}
	req.Status = to
	return nil
}

func (r *Repository) Eligible(ctx context.Context, policy Policy, now time.Time, limit int) ([]ReportRequest, error) {
	var out []ReportRequest
	query := r.conn.DB().WithContext(ctx).
		Where("status IN ?", []Status{StatusPending, StatusProcessing, StatusFailed}).
		Where("attempts < ?", policy.Ceiling).
		Where("last_attempt_at IS NULL OR last_attempt_at < ?", now.Add(-policy.Cooldown)).
		Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("selecting eligible report requests: %w", err)
	}
	return out, nil
}

// MarkDispatched counts a dispatch or a self-scheduled poll. Reaching the ceiling fails the request so
// it is not selected again.
func (r *Repository) MarkDispatched(ctx context.Context, req *ReportRequest, now time.Time, ceiling int) error {
	result := r.conn.DB().WithContext(ctx).Model(&ReportRequest{}).
		Where("id = ?", req.ID).
		Updates(map[string]interface{}{
			"attempts":        gorm.Expr("attempts + 1"),
			"last_attempt_at": now,
			"status":          gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE status END", ceiling, StatusFailed),
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	req.Attempts++
	req.LastAttemptAt = &now
	if req.Attempts >= ceiling {
		req.Status = StatusFailed
	}
	return nil
}
