package adsapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/database"
	"gorm.io/gorm"
)

// Profile holds the per-company credentials for the ads platform.
type Profile struct {
	ID           uint      `gorm:"primaryKey;column:id"`
	CompanyID    uint      `gorm:"column:company_id;uniqueIndex;not null"`
	ProfileID    string    `gorm:"column:profile_id;size:64;not null"`
	Region       string    `gorm:"column:region;size:8"`
	RefreshToken string    `gorm:"column:refresh_token;type:text"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (Profile) TableName() string {
	return "ads_profiles"
}

type ProfileStore interface {
	ProfileFor(ctx context.Context, companyID uint) (Profile, error)
}

type ProfileRepository struct {
	conn database.Handle
}

func NewProfileRepository(conn database.Handle) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

func (r *ProfileRepository) AutoMigrate() error {
	return r.conn.DB().AutoMigrate(&Profile{})
}

func (r *ProfileRepository) ProfileFor(ctx context.Context, companyID uint) (Profile, error) {
	var p Profile
	result := r.conn.DB().WithContext(ctx).Where("company_id = ?", companyID).First(&p)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return Profile{}, fmt.Errorf("%w: company %d", ErrProfileNotFound, companyID)
	}
	return p, result.Error
}
