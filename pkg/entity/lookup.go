package entity

import (
	"context"
	"fmt"

	"github.com/adpulse-ai/platform/pkg/common/database"
)

type Kind string

const (
	KindCampaign  Kind = "campaign"
	KindAdGroup   Kind = "ad_group"
	KindKeyword   Kind = "keyword"
	KindProductAd Kind = "product_ad"
	KindTarget    Kind = "target"
)

// Lookup finds local catalog ids. Implementations return found=false when no
// row or more than one row matches.
type Lookup interface {
	FindByExternalID(ctx context.Context, kind Kind, companyID uint, externalID string) (uint, bool, error)
	FindByName(ctx context.Context, kind Kind, companyID uint, name string) (uint, bool, error)
}

type table struct {
	name       string
	nameColumn string
	// depth is the number of joins needed to reach campaigns.company_id.
	depth int
}

var tables = map[Kind]table{
	KindCampaign:  {name: "campaigns", nameColumn: "name", depth: 0},
	KindAdGroup:   {name: "ad_groups", nameColumn: "name", depth: 1},
	KindKeyword:   {name: "keywords", nameColumn: "text", depth: 2},
	KindProductAd: {name: "product_ads", nameColumn: "sku", depth: 2},
	KindTarget:    {name: "targets", nameColumn: "expression", depth: 2},
}

type GormLookup struct {
	conn database.Handle
}

func NewGormLookup(conn database.Handle) *GormLookup {
	return &GormLookup{conn: conn}
}

func (l *GormLookup) AutoMigrate() error {
	return l.conn.DB().AutoMigrate(Models()...)
}

func (l *GormLookup) FindByExternalID(ctx context.Context, kind Kind, companyID uint, externalID string) (uint, bool, error) {
	t, ok := tables[kind]
	if !ok {
		return 0, false, fmt.Errorf("unknown entity kind %q", kind)
	}
	return l.findUnique(ctx, t, companyID, t.name+".external_id = ?", externalID)
}

func (l *GormLookup) FindByName(ctx context.Context, kind Kind, companyID uint, name string) (uint, bool, error) {
	t, ok := tables[kind]
	if !ok {
		return 0, false, fmt.Errorf("unknown entity kind %q", kind)
	}
	return l.findUnique(ctx, t, companyID, t.name+"."+t.nameColumn+" = ?", name)
}

func (l *GormLookup) findUnique(ctx context.Context, t table, companyID uint, cond string, arg string) (uint, bool, error) {
	query := l.conn.DB().WithContext(ctx).Table(t.name)
	switch t.depth {
	case 1:
		query = query.Joins("JOIN campaigns ON campaigns.id = " + t.name + ".campaign_id")
	case 2:
		query = query.
			Joins("JOIN ad_groups ON ad_groups.id = " + t.name + ".ad_group_id").
			Joins("JOIN campaigns ON campaigns.id = ad_groups.campaign_id")
	}

	var ids []uint
	err := query.
		Where("campaigns.company_id = ?", companyID).
		Where(cond, arg).
		Limit(2).
		Pluck(t.name+".id", &ids).Error
	if err != nil {
		return 0, false, fmt.Errorf("looking up %s: %w", t.name, err)
	}
	if len(ids) != 1 {
		return 0, false, nil
	}
	return ids[0], true, nil
}
