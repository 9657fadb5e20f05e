package cache

import (
	"context"
	"fmt"

	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const scanCount = 500

// StatsPattern matches every cached aggregate of a company and report type.
func StatsPattern(companyID uint, reportType models.ReportType) string {
	return fmt.Sprintf("stats:%d:%s:*", companyID, reportType)
}

// VersionKey is bumped on every invalidation so readers holding an older
// version can tell their copy is stale.
func VersionKey(companyID uint, reportType models.ReportType) string {
	return fmt.Sprintf("stats:%d:%s:version", companyID, reportType)
}

type RedisInvalidator struct {
	client redis.Cmdable
}

func NewRedisInvalidator(client redis.Cmdable) *RedisInvalidator {
	return &RedisInvalidator{client: client}
}

func (i *RedisInvalidator) Invalidate(ctx context.Context, companyID uint, reportType models.ReportType) error {
	if i.client == nil {
		return nil
	}

	versionKey := VersionKey(companyID, reportType)
	removed := 0
	var cursor uint64
	for {
		keys, next, err := i.client.Scan(ctx, cursor, StatsPattern(companyID, reportType), scanCount).Result()
		if err != nil {
			return fmt.Errorf("scanning cache keys: %w", err)
		}

		stale := keys[:0]
		for _, key := range keys {
			if key != versionKey {
				stale = append(stale, key)
			}
		}
		if len(stale) > 0 {
			if err := i.client.Unlink(ctx, stale...).Err(); err != nil {
				return fmt.Errorf("unlinking cache keys: %w", err)
			}
			removed += len(stale)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	version, err := i.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return fmt.Errorf("bumping cache version: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"company_id":  companyID,
		"report_type": reportType,
		"removed":     removed,
		"version":     version,
	}).Debug("statistics cache invalidated")
	return nil
}
