package entity

import "time"

// The catalog tables below are maintained by the campaign sync and are only
// read during entity resolution.

type Campaign struct {
	ID         uint      `gorm:"primaryKey;column:id"`
	CompanyID  uint      `gorm:"column:company_id;index;not null"`
	ExternalID string    `gorm:"column:external_id;index;size:64"`
	Name       string    `gorm:"column:name"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

type AdGroup struct {
	ID         uint      `gorm:"primaryKey;column:id"`
	CampaignID uint      `gorm:"column:campaign_id;index;not null"`
	ExternalID string    `gorm:"column:external_id;index;size:64"`
	Name       string    `gorm:"column:name"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (AdGroup) TableName() string {
	return "ad_groups"
}

type Keyword struct {
	ID         uint      `gorm:"primaryKey;column:id"`
	AdGroupID  uint      `gorm:"column:ad_group_id;index;not null"`
	ExternalID string    `gorm:"column:external_id;index;size:64"`
	Text       string    `gorm:"column:text"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (Keyword) TableName() string {
	return "keywords"
}

type ProductAd struct {
	ID         uint      `gorm:"primaryKey;column:id"`
	AdGroupID  uint      `gorm:"column:ad_group_id;index;not null"`
	ExternalID string    `gorm:"column:external_id;index;size:64"`
	SKU        string    `gorm:"column:sku"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (ProductAd) TableName() string {
	return "product_ads"
}

type Target struct {
	ID         uint      `gorm:"primaryKey;column:id"`
	AdGroupID  uint      `gorm:"column:ad_group_id;index;not null"`
	ExternalID string    `gorm:"column:external_id;index;size:64"`
	Expression string    `gorm:"column:expression"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (Target) TableName() string {
	return "targets"
}

// Models lists the catalog tables for migrations in tests and tooling.
func Models() []interface{} {
	return []interface{}{&Campaign{}, &AdGroup{}, &Keyword{}, &ProductAd{}, &Target{}}
}
