package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultChunkSize = 500

// Conn hands out a health-checked handle. *database.Conn implements it.
type Conn interface {
	Ready(ctx context.Context) (*gorm.DB, error)
}

type GormStore struct {
	conn  Conn
	chunk int
}

func NewGormStore(conn Conn, chunk int) *GormStore {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return &GormStore{conn: conn, chunk: chunk}
}

func (s *GormStore) AutoMigrate(ctx context.Context) error {
	db, err := s.conn.Ready(ctx)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).AutoMigrate(Models()...)
}

type slotKey struct {
	statisticID  uint
	metricNameID uint
}

// Flush writes a batch in one transaction: statistics, then metric slots, then
// values. Ids are resolved by re-selecting on the natural keys after each upsert.
func (s *GormStore) Flush(ctx context.Context, batch *Batch) error {
	stats, entries := batch.Dedupe()
	if len(stats) == 0 {
		return nil
	}

	db, err := s.conn.Ready(ctx)
	if err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		statIDs, err := s.upsertStatistics(tx, stats)
		if err != nil {
			return err
		}

		slots := make([]MetricRecord, 0, len(entries))
		seenSlot := make(map[slotKey]struct{}, len(entries))
		for _, e := range entries {
			statID, ok := statIDs[e.Key]
			if !ok {
				logger.Log.WithFields(logrus.Fields{
					"company_id":  e.Key.CompanyID,
					"entity_type": e.Key.EntityType,
					"entity_id":   e.Key.EntityID,
					"metric":      e.Definition.Name,
				}).Error("statistic missing after upsert; dropping metric entry")
				continue
			}
			k := slotKey{statisticID: statID, metricNameID: e.Definition.ID}
			if _, dup := seenSlot[k]; dup {
				continue
			}
			seenSlot[k] = struct{}{}
			slots = append(slots, MetricRecord{StatisticID: statID, MetricNameID: e.Definition.ID})
		}

		slotIDs, err := s.upsertSlots(tx, slots)
		if err != nil {
			return err
		}

		decimals, strs := s.partitionValues(entries, statIDs, slotIDs)
		if len(decimals) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "metric_record_id"}, {Name: "value"}},
				DoNothing: true,
			}).CreateInBatches(&decimals, s.chunk).Error
			if err != nil {
				return fmt.Errorf("upserting decimal values: %w", err)
			}
		}
		if len(strs) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "metric_record_id"}, {Name: "value"}},
				DoNothing: true,
			}).CreateInBatches(&strs, s.chunk).Error
			if err != nil {
				return fmt.Errorf("upserting string values: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) upsertStatistics(tx *gorm.DB, stats []Statistic) (map[Key]uint, error) {
	now := time.Now().UTC()
	for i := range stats {
		stats[i].ID = 0
		stats[i].CreatedAt = now
		stats[i].UpdatedAt = now
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "company_id"}, {Name: "entity_type"}, {Name: "entity_id"},
			{Name: "start_date"}, {Name: "end_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"report_id", "ad_type_id", "updated_at"}),
	}).CreateInBatches(&stats, s.chunk).Error
	if err != nil {
		return nil, fmt.Errorf("upserting statistics: %w", err)
	}

	ids := make(map[Key]uint, len(stats))
	for start := 0; start < len(stats); start += s.chunk {
		end := min(start+s.chunk, len(stats))
		tuples := make([][]interface{}, 0, end-start)
		for _, st := range stats[start:end] {
			tuples = append(tuples, []interface{}{st.CompanyID, st.EntityType, st.EntityID, st.StartDate, st.EndDate})
		}

		var found []Statistic
		err := tx.Where("(company_id, entity_type, entity_id, start_date, end_date) IN ?", tuples).Find(&found).Error
		if err != nil {
			return nil, fmt.Errorf("resolving statistic ids: %w", err)
		}
		for _, st := range found {
			ids[st.Key()] = st.ID
		}
	}
	return ids, nil
}

func (s *GormStore) upsertSlots(tx *gorm.DB, slots []MetricRecord) (map[slotKey]uint, error) {
	ids := make(map[slotKey]uint, len(slots))
	if len(slots) == 0 {
		return ids, nil
	}

	now := time.Now().UTC()
	for i := range slots {
		slots[i].CreatedAt = now
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "statistic_id"}, {Name: "metric_name_id"}},
		DoNothing: true,
	}).CreateInBatches(&slots, s.chunk).Error
	if err != nil {
		return nil, fmt.Errorf("upserting metric records: %w", err)
	}

	for start := 0; start < len(slots); start += s.chunk {
		end := min(start+s.chunk, len(slots))
		tuples := make([][]interface{}, 0, end-start)
		for _, slot := range slots[start:end] {
			tuples = append(tuples, []interface{}{slot.StatisticID, slot.MetricNameID})
		}

		var found []MetricRecord
		if err := tx.Where("(statistic_id, metric_name_id) IN ?", tuples).Find(&found).Error; err != nil {
			return nil, fmt.Errorf("resolving metric record ids: %w", err)
		}
		for _, rec := range found {
			ids[slotKey{statisticID: rec.StatisticID, metricNameID: rec.MetricNameID}] = rec.ID
		}
	}
	return ids, nil
}

// partitionValues applies the skip policy and splits entries by storage tier.
func (s *GormStore) partitionValues(entries []Entry, statIDs map[Key]uint, slotIDs map[slotKey]uint) ([]MetricValueDecimal, []MetricValueString) {
	now := time.Now().UTC()
	var decimals []MetricValueDecimal
	var strs []MetricValueString

	for _, e := range entries {
		slotID, ok := slotIDs[slotKey{statisticID: statIDs[e.Key], metricNameID: e.Definition.ID}]
		if !ok {
			continue
		}

		if e.Definition.ValueType.Numeric() {
			value, keep, err := encodeNumeric(e.Definition.ValueType, e.Value)
			if err != nil {
				logger.Log.WithError(err).WithField("metric", e.Definition.Name).Warn("skipping unparseable metric value")
				continue
			}
			if keep {
				decimals = append(decimals, MetricValueDecimal{MetricRecordID: slotID, Value: value, CreatedAt: now})
			}
			continue
		}

		if value, keep := encodeString(e.Value); keep {
			strs = append(strs, MetricValueString{MetricRecordID: slotID, Value: value, CreatedAt: now})
		}
	}
	return decimals, strs
}
