package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/adpulse-ai/platform/pkg/catalog"
	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/adpulse-ai/platform/pkg/observability/metrics"
	"github.com/sirupsen/logrus"
)

const DefaultBatchSize = 20

type EntityResolver interface {
	Resolve(ctx context.Context, reportType models.ReportType, row models.Row, companyID uint) (uint, bool, error)
}

type CatalogSource interface {
	AdTypeByCode(ctx context.Context, code string) (catalog.AdType, error)
	MetricsFor(ctx context.Context, adTypeID uint, entityType string) (catalog.Catalog, error)
}

// Store writes one buffered batch in a single transaction.
type Store interface {
	Flush(ctx context.Context, batch *Batch) error
}

type Invalidator interface {
	Invalidate(ctx context.Context, companyID uint, reportType models.ReportType) error
}

type IngestResult struct {
	ReportType models.ReportType `json:"report_type"`
	Rows       int               `json:"rows"`
	Skipped    int               `json:"skipped"`
	Buffered   int               `json:"buffered"`
	Flushes    int               `json:"flushes"`
}

type Normalizer struct {
	resolver    EntityResolver
	catalogs    CatalogSource
	store       Store
	invalidator Invalidator
	batchSize   int
}

func NewNormalizer(resolver EntityResolver, catalogs CatalogSource, store Store, invalidator Invalidator, batchSize int) *Normalizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Normalizer{
		resolver:    resolver,
		catalogs:    catalogs,
		store:       store,
		invalidator: invalidator,
		batchSize:   batchSize,
	}
}

// Ingest normalizes the rows of one completed report into statistics and
// metric values. Each flush is its own transaction; a failing flush leaves
// earlier flushes committed and aborts the call.
func (n *Normalizer) Ingest(ctx context.Context, companyID uint, reportID string, meta models.ReportMetadata, rows []models.Row) (IngestResult, error) {
	reportType, err := models.ReportTypeFromPlatform(meta.ReportTypeID)
	if err != nil {
		return IngestResult{}, err
	}
	result := IngestResult{ReportType: reportType}

	log := logger.Log.WithFields(logrus.Fields{
		"company_id":  companyID,
		"report_id":   reportID,
		"report_type": reportType,
	})

	adType, err := n.catalogs.AdTypeByCode(ctx, meta.AdProduct)
	if err != nil {
		return result, fmt.Errorf("loading ad type: %w", err)
	}
	cat, err := n.catalogs.MetricsFor(ctx, adType.ID, string(reportType))
	if err != nil {
		return result, err
	}
	if cat.Empty() {
		log.WithField("ad_type", adType.Code).Warn("metric catalog empty; skipping ingestion")
		return result, nil
	}

	reportPeriod, err := models.NewDateRange(meta.StartDate, meta.EndDate)
	if err != nil {
		return result, fmt.Errorf("invalid report period: %w", err)
	}

	batch := NewBatch(n.batchSize)
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Rows++

		entityID, found, err := n.resolver.Resolve(ctx, reportType, row, companyID)
		if err != nil {
			return result, fmt.Errorf("resolving row %d: %w", i, err)
		}
		if !found {
			result.Skipped++
			log.WithField("row", i).Warn("entity not resolved; skipping row")
			continue
		}

		period, err := rowPeriod(row, reportPeriod)
		if err != nil {
			result.Skipped++
			log.WithError(err).WithField("row", i).Warn("invalid row date; skipping row")
			continue
		}

		stat := Statistic{
			CompanyID:  companyID,
			EntityType: string(reportType),
			EntityID:   entityID,
			StartDate:  period.Start,
			EndDate:    period.End,
			AdTypeID:   adType.ID,
			ReportID:   reportID,
		}
		batch.Add(stat, rowEntries(row, cat))
		result.Buffered++

		if batch.Len() >= n.batchSize {
			if err := n.flush(ctx, batch, &result); err != nil {
				return result, err
			}
		}
	}

	if batch.Len() > 0 {
		if err := n.flush(ctx, batch, &result); err != nil {
			return result, err
		}
	}

	metrics.ObserveIngest(result.Buffered, result.Skipped, result.Flushes)

	if n.invalidator != nil {
		if err := n.invalidator.Invalidate(ctx, companyID, reportType); err != nil {
			log.WithError(err).Error("failed to invalidate statistics cache")
		}
	}

	log.WithFields(logrus.Fields{
		"rows":    result.Rows,
		"skipped": result.Skipped,
		"flushes": result.Flushes,
	}).Info("report ingested")

	return result, nil
}

func (n *Normalizer) flush(ctx context.Context, batch *Batch, result *IngestResult) error {
	started := time.Now()
	if err := n.store.Flush(ctx, batch); err != nil {
		return fmt.Errorf("flushing batch %d: %w", result.Flushes+1, err)
	}
	result.Flushes++
	logger.Log.WithFields(logrus.Fields{
		"rows":     batch.Len(),
		"duration": time.Since(started).String(),
	}).Debug("batch flushed")
	batch.Reset()
	return nil
}
