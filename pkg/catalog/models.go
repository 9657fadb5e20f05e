package catalog

import (
	"sort"
	"strings"
)

type ValueType string

const (
	ValueDecimal ValueType = "decimal"
	ValueInteger ValueType = "integer"
	ValueDate    ValueType = "date"
	ValueString  ValueType = "string"
)

// Numeric reports whether values of this type are stored in the decimal tier.
func (v ValueType) Numeric() bool {
	switch v {
	case ValueDecimal, ValueInteger, ValueDate:
		return true
	}
	return false
}

func (v ValueType) Valid() bool {
	return v.Numeric() || v == ValueString
}

type AdType struct {
	ID   uint   `json:"id" gorm:"primaryKey;column:id"`
	Code string `json:"code" gorm:"column:code;uniqueIndex;size:64;not null"`
	Name string `json:"name" gorm:"column:name"`
}

func (AdType) TableName() string {
	return "ad_types"
}

// MetricName is a catalog entry. A nil EntityType makes the metric common to
// every entity type of its ad type.
type MetricName struct {
	ID         uint      `json:"id" gorm:"primaryKey;column:id"`
	Name       string    `json:"name" gorm:"column:name;size:128;not null;uniqueIndex:idx_metric_names_identity"`
	AdTypeID   uint      `json:"ad_type_id" gorm:"column:ad_type_id;not null;uniqueIndex:idx_metric_names_identity"`
	EntityType *string   `json:"entity_type,omitempty" gorm:"column:entity_type;size:32;uniqueIndex:idx_metric_names_identity"`
	ValueType  ValueType `json:"value_type" gorm:"column:value_type;size:16;not null"`
}

func (MetricName) TableName() string {
	return "metric_names"
}

type Definition struct {
	ID         uint
	Name       string
	EntityType string
	ValueType  ValueType
}

// Catalog maps metric names to their definitions for one ad type and entity
// type. It is loaded per ingest call and passed explicitly.
type Catalog struct {
	byName map[string]Definition
	folded map[string]Definition
}

// NewCatalog indexes defs by name. Names that differ only by case share one
// case-insensitive entry, held by the lexically smallest of them.
func NewCatalog(defs map[string]Definition) Catalog {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	folded := make(map[string]Definition, len(defs))
	for _, name := range names {
		key := strings.ToLower(name)
		if _, ok := folded[key]; !ok {
			folded[key] = defs[name]
		}
	}
	return Catalog{byName: defs, folded: folded}
}

// Lookup prefers an exact match and falls back to a case-insensitive one.
func (c Catalog) Lookup(name string) (Definition, bool) {
	if def, ok := c.byName[name]; ok {
		return def, true
	}
	def, ok := c.folded[strings.ToLower(name)]
	return def, ok
}

func (c Catalog) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

func (c Catalog) Len() int {
	return len(c.byName)
}

func (c Catalog) Empty() bool {
	return len(c.byName) == 0
}
