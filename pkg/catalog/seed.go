package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type SeedMetric struct {
	Name       string    `yaml:"name"`
	EntityType string    `yaml:"entity_type,omitempty"`
	ValueType  ValueType `yaml:"type"`
}

type SeedAdType struct {
	Code    string       `yaml:"code"`
	Name    string       `yaml:"name"`
	Metrics []SeedMetric `yaml:"metrics"`
}

type Seed struct {
	AdTypes []SeedAdType `yaml:"ad_types"`
}

// LoadSeed reads a YAML seed file. An empty path yields DefaultSeed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Seed{}, err
	}
	var seed Seed
	if err := yaml.Unmarshal(content, &seed); err != nil {
		return Seed{}, fmt.Errorf("parsing catalog seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return Seed{}, err
	}
	return seed, nil
}

func (s Seed) Validate() error {
	if len(s.AdTypes) == 0 {
		return fmt.Errorf("catalog seed empty")
	}
	for _, at := range s.AdTypes {
		if strings.TrimSpace(at.Code) == "" {
			return fmt.Errorf("ad type without code")
		}
		for _, m := range at.Metrics {
			if strings.TrimSpace(m.Name) == "" {
				return fmt.Errorf("ad type %s: metric without name", at.Code)
			}
			if !m.ValueType.Valid() {
				return fmt.Errorf("ad type %s: metric %s has unknown type %q", at.Code, m.Name, m.ValueType)
			}
		}
	}
	return nil
}

func DefaultSeed() Seed {
	common := []SeedMetric{
		{Name: "impressions", ValueType: ValueInteger},
		{Name: "clicks", ValueType: ValueInteger},
		{Name: "cost", ValueType: ValueDecimal},
		{Name: "sales", ValueType: ValueDecimal},
		{Name: "purchases", ValueType: ValueInteger},
		{Name: "unitsSold", ValueType: ValueInteger},
		{Name: "roas", ValueType: ValueDecimal},
		{Name: "acos", ValueType: ValueDecimal},
		{Name: "ctr", ValueType: ValueDecimal},
		{Name: "cpc", ValueType: ValueDecimal},
	}
	scoped := []SeedMetric{
		{Name: "campaignStatus", EntityType: "campaign", ValueType: ValueString},
		{Name: "campaignBudgetAmount", EntityType: "campaign", ValueType: ValueDecimal},
		{Name: "campaignBudgetAmount", EntityType: "budget", ValueType: ValueDecimal},
		{Name: "keywordBid", EntityType: "keyword", ValueType: ValueDecimal},
		{Name: "matchType", EntityType: "keyword", ValueType: ValueString},
		{Name: "matchType", EntityType: "search-term", ValueType: ValueString},
		{Name: "searchTerm", EntityType: "search-term", ValueType: ValueString},
		{Name: "advertisedAsin", EntityType: "product-ad", ValueType: ValueString},
		{Name: "purchasedAsin", EntityType: "purchased-product", ValueType: ValueString},
	}
	return Seed{AdTypes: []SeedAdType{{
		Code:    "SPONSORED_PRODUCTS",
		Name:    "Sponsored Products",
		Metrics: append(common, scoped...),
	}}}
}
