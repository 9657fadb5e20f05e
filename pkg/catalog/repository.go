package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/adpulse-ai/platform/pkg/common/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrAdTypeNotFound = errors.New("ad type not found")

type Repository struct {
	conn database.Handle
}

func NewRepository(conn database.Handle) *Repository {
	return &Repository{conn: conn}
}

func (r *Repository) AutoMigrate() error {
	return r.conn.DB().AutoMigrate(&AdType{}, &MetricName{})
}

func (r *Repository) AdTypeByCode(ctx context.Context, code string) (AdType, error) {
	var adType AdType
	result := r.conn.DB().WithContext(ctx).Where("code = ?", code).First(&adType)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return AdType{}, fmt.Errorf("%w: %s", ErrAdTypeNotFound, code)
	}
	return adType, result.Error
}

// MetricsFor returns the common definitions of adTypeID merged with those
// scoped to entityType. Scoped definitions win on a name clash.
func (r *Repository) MetricsFor(ctx context.Context, adTypeID uint, entityType string) (Catalog, error) {
	var rows []MetricName
	err := r.conn.DB().WithContext(ctx).
		Where("ad_type_id = ? AND (entity_type IS NULL OR entity_type = ?)", adTypeID, entityType).
		Find(&rows).Error
	if err != nil {
		return Catalog{}, fmt.Errorf("loading metric catalog: %w", err)
	}
	return buildCatalog(rows), nil
}

func buildCatalog(rows []MetricName) Catalog {
	defs := make(map[string]Definition, len(rows))
	for _, row := range rows {
		def := Definition{ID: row.ID, Name: row.Name, ValueType: row.ValueType}
		if row.EntityType != nil {
			def.EntityType = *row.EntityType
		}
		if existing, ok := defs[row.Name]; ok && existing.EntityType != "" && def.EntityType == "" {
			continue
		}
		defs[row.Name] = def
	}
	return NewCatalog(defs)
}

// Seed inserts the ad types and metric definitions of s that are not present
// yet. Existing rows are left untouched.
func (r *Repository) Seed(ctx context.Context, s Seed) (int, error) {
	created := 0
	err := r.conn.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, at := range s.AdTypes {
			adType := AdType{Code: at.Code, Name: at.Name}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&adType).Error; err != nil {
				return fmt.Errorf("seeding ad type %s: %w", at.Code, err)
			}
			if err := tx.Where("code = ?", at.Code).First(&adType).Error; err != nil {
				return fmt.Errorf("reloading ad type %s: %w", at.Code, err)
			}

			for _, m := range at.Metrics {
				query := tx.Model(&MetricName{}).Where("name = ? AND ad_type_id = ?", m.Name, adType.ID)
				if m.EntityType == "" {
					query = query.Where("entity_type IS NULL")
				} else {
					query = query.Where("entity_type = ?", m.EntityType)
				}
				var count int64
				if err := query.Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					continue
				}

				row := MetricName{Name: m.Name, AdTypeID: adType.ID, ValueType: m.ValueType}
				if m.EntityType != "" {
					entityType := m.EntityType
					row.EntityType = &entityType
				}
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("seeding metric %s: %w", m.Name, err)
				}
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
