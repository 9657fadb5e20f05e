package adsapi

import (
	"fmt"

	"github.com/adpulse-ai/platform/pkg/common/models"
)

const AdProductSponsoredProducts = "SPONSORED_PRODUCTS"

type RemoteStatus string

const (
	RemotePending    RemoteStatus = "PENDING"
	RemoteProcessing RemoteStatus = "PROCESSING"
	RemoteCompleted  RemoteStatus = "COMPLETED"
	RemoteFailed     RemoteStatus = "FAILED"
)

type reportConfig struct {
	groupBy []string
	columns []string
}

var baseColumns = []string{"impressions", "clicks", "cost", "sales", "purchases", "unitsSold", "date"}

var reportConfigs = map[models.ReportType]reportConfig{
	models.ReportTypeCampaign: {
		groupBy: []string{"campaign"},
		columns: []string{"campaignId", "campaignName", "campaignStatus", "campaignBudgetAmount"},
	},
	models.ReportTypeBudget: {
		groupBy: []string{"campaign"},
		columns: []string{"campaignId", "campaignName", "campaignBudgetAmount"},
	},
	models.ReportTypeKeyword: {
		groupBy: []string{"targeting"},
		columns: []string{"keywordId", "keyword", "keywordBid", "matchType"},
	},
	models.ReportTypeSearchTerm: {
		groupBy: []string{"searchTerm"},
		columns: []string{"keywordId", "keyword", "searchTerm", "matchType"},
	},
	models.ReportTypeProductAd: {
		groupBy: []string{"advertiser"},
		columns: []string{"adId", "advertisedSku", "advertisedAsin"},
	},
	models.ReportTypeProductTargeting: {
		groupBy: []string{"targeting"},
		columns: []string{"targetId", "targeting"},
	},
	models.ReportTypePurchasedProduct: {
		groupBy: []string{"asin"},
		columns: []string{"adGroupId", "adGroupName", "purchasedAsin"},
	},
}

type createReportRequest struct {
	Name          string              `json:"name"`
	StartDate     string              `json:"startDate"`
	EndDate       string              `json:"endDate"`
	Configuration reportConfiguration `json:"configuration"`
}

type reportConfiguration struct {
	AdProduct    string   `json:"adProduct"`
	GroupBy      []string `json:"groupBy"`
	Columns      []string `json:"columns"`
	ReportTypeID string   `json:"reportTypeId"`
	TimeUnit     string   `json:"timeUnit"`
	Format       string   `json:"format"`
}

type reportResponse struct {
	ReportID      string              `json:"reportId"`
	Status        RemoteStatus        `json:"status"`
	StartDate     string              `json:"startDate"`
	EndDate       string              `json:"endDate"`
	URL           string              `json:"url"`
	FailureReason string              `json:"failureReason"`
	Configuration reportConfiguration `json:"configuration"`
}

func buildCreateRequest(period models.DateRange, reportType models.ReportType) (createReportRequest, error) {
	cfg, ok := reportConfigs[reportType]
	if !ok {
		return createReportRequest{}, fmt.Errorf("%w: %s", models.ErrUnknownReportType, reportType)
	}
	platformID, err := reportType.PlatformID()
	if err != nil {
		return createReportRequest{}, err
	}

	start := period.Start.Format(models.DateLayout)
	end := period.End.Format(models.DateLayout)
	columns := append(append([]string{}, baseColumns...), cfg.columns...)

	return createReportRequest{
		Name:      fmt.Sprintf("%s %s..%s", reportType, start, end),
		StartDate: start,
		EndDate:   end,
		Configuration: reportConfiguration{
			AdProduct:    AdProductSponsoredProducts,
			GroupBy:      cfg.groupBy,
			Columns:      columns,
			ReportTypeID: platformID,
			TimeUnit:     "DAILY",
			Format:       "GZIP_JSON",
		},
	}, nil
}

// Report is the remote state of a report. Rows are only set once it completed.
type Report struct {
	ReportID      string
	Status        RemoteStatus
	FailureReason string
	Metadata      models.ReportMetadata
	Rows          []models.Row
}
