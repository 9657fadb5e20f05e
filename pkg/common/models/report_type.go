package models

import (
	"errors"
	"fmt"
)

// ReportType is the internal report kind. It doubles as the entity type of
// the statistics a report produces.
type ReportType string

const (
	ReportTypeCampaign         ReportType = "campaign"
	ReportTypeKeyword          ReportType = "keyword"
	ReportTypeProductAd        ReportType = "product-ad"
	ReportTypeSearchTerm       ReportType = "search-term"
	ReportTypeProductTargeting ReportType = "product-targeting"
	ReportTypeBudget           ReportType = "budget"
	ReportTypePurchasedProduct ReportType = "purchased-product"
)

var ErrUnknownReportType = errors.New("unknown report type")

// AllReportTypes lists every report type in generation order.
var AllReportTypes = []ReportType{
	ReportTypeCampaign,
	ReportTypeKeyword,
	ReportTypeProductAd,
	ReportTypeSearchTerm,
	ReportTypeProductTargeting,
	ReportTypeBudget,
	ReportTypePurchasedProduct,
}

// platformReportTypes is the closed table of report type ids the ads
// platform returns in report metadata.
var platformReportTypes = map[string]ReportType{
	"spCampaigns":         ReportTypeCampaign,
	"spCampaignBudgets":   ReportTypeBudget,
	"spKeywords":          ReportTypeKeyword,
	"spTargeting":         ReportTypeProductTargeting,
	"spAdvertisedProduct": ReportTypeProductAd,
	"spSearchTerm":        ReportTypeSearchTerm,
	"spPurchasedProduct":  ReportTypePurchasedProduct,
}

// ReportTypeFromPlatform maps a platform report type id to the internal enum.
func ReportTypeFromPlatform(id string) (ReportType, error) {
	rt, ok := platformReportTypes[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownReportType, id)
	}
	return rt, nil
}

// PlatformID is the inverse of ReportTypeFromPlatform.
func (t ReportType) PlatformID() (string, error) {
	for id, rt := range platformReportTypes {
		if rt == t {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReportType, string(t))
}

func ParseReportType(s string) (ReportType, error) {
	for _, rt := range AllReportTypes {
		if string(rt) == s {
			return rt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReportType, s)
}

func (t ReportType) String() string {
	return string(t)
}
