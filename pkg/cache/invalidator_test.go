package cache

import (
	"context"
	"testing"

	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "stats:42:keyword:*", StatsPattern(42, models.ReportTypeKeyword))
	assert.Equal(t, "stats:42:keyword:version", VersionKey(42, models.ReportTypeKeyword))
}

func TestInvalidateWithoutClient(t *testing.T) {
	inv := NewRedisInvalidator(nil)
	assert.NoError(t, inv.Invalidate(context.Background(), 1, models.ReportTypeCampaign))
}
