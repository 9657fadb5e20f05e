package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/adpulse-ai/platform/pkg/common/database"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntity struct {
	id         uint
	companyID  uint
	kind       Kind
	externalID string
	name       string
}

type fakeLookup struct {
	entities []fakeEntity
	err      error
}

func (f *fakeLookup) find(kind Kind, companyID uint, match func(fakeEntity) bool) (uint, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	var hits []uint
	for _, e := range f.entities {
		if e.kind == kind && e.companyID == companyID && match(e) {
			hits = append(hits, e.id)
		}
	}
	if len(hits) != 1 {
		return 0, false, nil
	}
	return hits[0], true, nil
}

func (f *fakeLookup) FindByExternalID(_ context.Context, kind Kind, companyID uint, externalID string) (uint, bool, error) {
	return f.find(kind, companyID, func(e fakeEntity) bool { return e.externalID == externalID })
}

func (f *fakeLookup) FindByName(_ context.Context, kind Kind, companyID uint, name string) (uint, bool, error) {
	return f.find(kind, companyID, func(e fakeEntity) bool { return e.name == name })
}

func newFakeResolver() *Resolver {
	return NewResolver(&fakeLookup{entities: []fakeEntity{
		{id: 11, companyID: 1, kind: KindCampaign, externalID: "C1", name: "Brand - Exact"},
		{id: 12, companyID: 2, kind: KindCampaign, externalID: "C1", name: "Brand - Exact"},
		{id: 21, companyID: 1, kind: KindKeyword, externalID: "K1", name: "running shoes"},
		{id: 31, companyID: 1, kind: KindAdGroup, externalID: "G1", name: "Shoes"},
		{id: 32, companyID: 1, kind: KindAdGroup, externalID: "G2", name: "Dup"},
		{id: 33, companyID: 1, kind: KindAdGroup, externalID: "G3", name: "Dup"},
	}})
}

func TestResolveNameFallbackMatchesExternalID(t *testing.T) {
	r := newFakeResolver()
	ctx := context.Background()

	byID, ok, err := r.Resolve(ctx, models.ReportTypeCampaign, models.Row{"campaignId": "C1"}, 1)
	require.NoError(t, err)
	require.True(t, ok)

	byName, ok, err := r.Resolve(ctx, models.ReportTypeCampaign, models.Row{"campaignName": "Brand - Exact"}, 1)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, byID, byName)
	assert.Equal(t, uint(11), byID)
}

func TestResolveScopesByCompany(t *testing.T) {
	r := newFakeResolver()

	id, ok, err := r.Resolve(context.Background(), models.ReportTypeCampaign, models.Row{"campaignId": "C1"}, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint(12), id)
}

func TestResolveBudgetUsesCampaignIdentity(t *testing.T) {
	r := newFakeResolver()

	id, ok, err := r.Resolve(context.Background(), models.ReportTypeBudget, models.Row{"campaignId": float64(0), "campaignName": "Brand - Exact"}, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint(11), id)
}

func TestResolveSearchTermUsesKeywordText(t *testing.T) {
	r := newFakeResolver()

	id, ok, err := r.Resolve(context.Background(), models.ReportTypeSearchTerm, models.Row{"keywordText": "running shoes"}, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint(21), id)
}

func TestResolveUnknownAndAmbiguousRows(t *testing.T) {
	r := newFakeResolver()
	ctx := context.Background()

	_, ok, err := r.Resolve(ctx, models.ReportTypeCampaign, models.Row{"campaignId": "missing"}, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.Resolve(ctx, models.ReportTypePurchasedProduct, models.Row{"adGroupName": "Dup"}, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.Resolve(ctx, models.ReportTypeKeyword, models.Row{}, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolvePropagatesLookupErrors(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewResolver(&fakeLookup{err: boom})

	_, _, err := r.Resolve(context.Background(), models.ReportTypeCampaign, models.Row{"campaignId": "C1"}, 1)
	assert.ErrorIs(t, err, boom)

	_, _, err = r.Resolve(context.Background(), models.ReportType("display"), models.Row{}, 1)
	assert.ErrorIs(t, err, models.ErrUnknownReportType)
}

func TestGormLookup(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := database.SetupTestDatabase(ctx, t, Models()...)
	db := testDB.Conn.DB()

	campaign := Campaign{CompanyID: 7, ExternalID: "C1", Name: "Brand"}
	require.NoError(t, db.Create(&campaign).Error)
	other := Campaign{CompanyID: 8, ExternalID: "C9", Name: "Brand"}
	require.NoError(t, db.Create(&other).Error)
	group := AdGroup{CampaignID: campaign.ID, ExternalID: "G1", Name: "Shoes"}
	require.NoError(t, db.Create(&group).Error)
	keyword := Keyword{AdGroupID: group.ID, ExternalID: "K1", Text: "running shoes"}
	require.NoError(t, db.Create(&keyword).Error)

	r := NewResolver(NewGormLookup(testDB.Conn))

	byID, ok, err := r.Resolve(ctx, models.ReportTypeCampaign, models.Row{"campaignId": "C1"}, 7)
	require.NoError(t, err)
	require.True(t, ok)
	byName, ok, err := r.Resolve(ctx, models.ReportTypeCampaign, models.Row{"campaignName": "Brand"}, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, campaign.ID, byID)
	assert.Equal(t, byID, byName)

	groupID, ok, err := r.Resolve(ctx, models.ReportTypePurchasedProduct, models.Row{"adGroupName": "Shoes"}, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, group.ID, groupID)

	_, ok, err = r.Resolve(ctx, models.ReportTypePurchasedProduct, models.Row{"adGroupName": "Shoes"}, 8)
	require.NoError(t, err)
	assert.False(t, ok)

	keywordID, ok, err := r.Resolve(ctx, models.ReportTypeKeyword, models.Row{"keywordId": float64(0), "keyword": "running shoes"}, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, keyword.ID, keywordID)
}
