package api

import (
	"fmt"
	"strings"
)

// CompetitorReason is one reason the engine picked a competitor as the
// benchmark, with supporting evidence.
type CompetitorReason struct {
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// CompetitorDiscovery is the result of the competitor discovery stage.
// Immutable once returned; the compare stage and the usage audit both
// consume it as-is.
type CompetitorDiscovery struct {
	SourceProductName string  `json:"source_product_name"`
	SourceBrand       string  `json:"source_brand"`
	SourceCategory    string  `json:"source_category"`
	SourcePrice       *string `json:"source_price,omitempty"`

	CompetitorURL         string  `json:"competitor_url"`
	CompetitorProductName string  `json:"competitor_product_name"`
	CompetitorBrand       string  `json:"competitor_brand"`
	CompetitorPrice       *string `json:"competitor_price,omitempty"`

	Reasons                    []CompetitorReason `json:"reasons"`
	OtherCompetitorsConsidered []string           `json:"other_competitors_considered"`
}

// Validate checks that the engine returned a fully populated discovery.
// Price fields and the considered-alternatives list are optional; everything
// else must be present so that partial records never reach callers.
func (d *CompetitorDiscovery) Validate() error {
	var missing []string
	check := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	check("source_product_name", d.SourceProductName)
	check("source_brand", d.SourceBrand)
	check("source_category", d.SourceCategory)
	check("competitor_url", d.CompetitorURL)
	check("competitor_product_name", d.CompetitorProductName)
	check("competitor_brand", d.CompetitorBrand)
	if len(d.Reasons) == 0 {
		missing = append(missing, "reasons")
	}
	for i, r := range d.Reasons {
		if strings.TrimSpace(r.Reason) == "" {
			missing = append(missing, fmt.Sprintf("reasons[%d].reason", i))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete competitor discovery: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
