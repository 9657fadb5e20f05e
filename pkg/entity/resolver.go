package entity

import (
	"context"
	"fmt"

	"github.com/adpulse-ai/platform/pkg/common/models"
)

type strategy struct {
	kind       Kind
	idFields   []string
	nameFields []string
}

// strategies is keyed by report type. Budget rows describe campaigns.
var strategies = map[models.ReportType]strategy{
	models.ReportTypeCampaign:         {kind: KindCampaign, idFields: []string{"campaignId"}, nameFields: []string{"campaignName"}},
	models.ReportTypeBudget:           {kind: KindCampaign, idFields: []string{"campaignId"}, nameFields: []string{"campaignName"}},
	models.ReportTypeKeyword:          {kind: KindKeyword, idFields: []string{"keywordId"}, nameFields: []string{"keyword", "keywordText"}},
	models.ReportTypeSearchTerm:       {kind: KindKeyword, idFields: []string{"keywordId"}, nameFields: []string{"keyword", "keywordText"}},
	models.ReportTypeProductAd:        {kind: KindProductAd, idFields: []string{"adId"}, nameFields: []string{"advertisedSku"}},
	models.ReportTypeProductTargeting: {kind: KindTarget, idFields: []string{"targetId"}, nameFields: []string{"targeting"}},
	models.ReportTypePurchasedProduct: {kind: KindAdGroup, idFields: []string{"adGroupId"}, nameFields: []string{"adGroupName"}},
}

type Resolver struct {
	lookup Lookup
}

func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve maps a report row to a local entity id. The external id embedded in
// the row is tried first; the name lookup is used when the id is absent or
// unknown locally. found is false for unresolvable or ambiguous rows.
func (r *Resolver) Resolve(ctx context.Context, reportType models.ReportType, row models.Row, companyID uint) (uint, bool, error) {
	s, ok := strategies[reportType]
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", models.ErrUnknownReportType, reportType)
	}

	if externalID := row.First(s.idFields...); externalID != "" {
		id, found, err := r.lookup.FindByExternalID(ctx, s.kind, companyID, externalID)
		if err != nil || found {
			return id, found, err
		}
	}

	if name := row.First(s.nameFields...); name != "" {
		return r.lookup.FindByName(ctx, s.kind, companyID, name)
	}
	return 0, false, nil
}
