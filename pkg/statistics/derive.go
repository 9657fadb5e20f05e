package statistics

import (
	"github.com/adpulse-ai/platform/pkg/catalog"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/shopspring/decimal"
)

type Derived struct {
	Definition catalog.Definition
	Value      decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

type rule struct {
	metric string
	inputs []string
	// compute returns false when the guard on the inputs does not hold.
	compute func(in map[string]decimal.Decimal) (decimal.Decimal, bool)
}

var rules = []rule{
	{
		metric: "roas",
		inputs: []string{"sales", "cost"},
		compute: func(in map[string]decimal.Decimal) (decimal.Decimal, bool) {
			if !in["cost"].IsPositive() {
				return decimal.Zero, false
			}
			return in["sales"].Div(in["cost"]), true
		},
	},
	{
		metric: "acos",
		inputs: []string{"sales", "cost"},
		compute: func(in map[string]decimal.Decimal) (decimal.Decimal, bool) {
			if !in["sales"].IsPositive() {
				return decimal.Zero, false
			}
			return in["cost"].Div(in["sales"]).Mul(hundred), true
		},
	},
	{
		metric: "ctr",
		inputs: []string{"clicks", "impressions"},
		compute: func(in map[string]decimal.Decimal) (decimal.Decimal, bool) {
			if !in["impressions"].IsPositive() {
				return decimal.Zero, false
			}
			return in["clicks"].Div(in["impressions"]).Mul(hundred), true
		},
	},
	{
		metric: "cpc",
		inputs: []string{"cost", "clicks"},
		compute: func(in map[string]decimal.Decimal) (decimal.Decimal, bool) {
			if !in["clicks"].IsPositive() {
				return decimal.Zero, false
			}
			return in["cost"].Div(in["clicks"]), true
		},
	},
}

// Derive computes the metrics that are not reported directly. A rule fires only
// when its inputs are present and numeric, its guard holds and the catalog
// defines the target metric. row is not modified.
func Derive(row models.Row, cat catalog.Catalog) []Derived {
	var out []Derived
	for _, r := range rules {
		def, ok := cat.Lookup(r.metric)
		if !ok {
			continue
		}
		in, ok := numericInputs(row, r.inputs)
		if !ok {
			continue
		}
		value, ok := r.compute(in)
		if !ok {
			continue
		}
		out = append(out, Derived{Definition: def, Value: value})
	}
	return out
}

func numericInputs(row models.Row, names []string) (map[string]decimal.Decimal, bool) {
	in := make(map[string]decimal.Decimal, len(names))
	for _, name := range names {
		d, ok, err := parseDecimal(row[name])
		if err != nil || !ok {
			return nil, false
		}
		in[name] = d
	}
	return in, true
}
