package api

// Recommendation priority levels, highest first.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Winner values used in ComparisonDimension.
const (
	WinnerSource    = "source"
	WinnerReference = "reference"
	WinnerTie       = "tie"
)

// TitleAnalysis scores the product title. Score fields are 1-10.
type TitleAnalysis struct {
	TitleText       string   `json:"title_text"`
	CharacterCount  int      `json:"character_count"`
	KeywordRichness int      `json:"keyword_richness"`
	Clarity         int      `json:"clarity"`
	EmotionalAppeal int      `json:"emotional_appeal"`
	Observations    []string `json:"observations"`
}

// DescriptionAnalysis scores the product description.
// DescriptionLength is a Short/Medium/Long classification, not a count.
type DescriptionAnalysis struct {
	HasBulletPoints     bool     `json:"has_bullet_points"`
	BulletPointCount    int      `json:"bullet_point_count"`
	DescriptionLength   string   `json:"description_length"`
	BenefitFocused      int      `json:"benefit_focused"`
	Readability         int      `json:"readability"`
	Completeness        int      `json:"completeness"`
	UniqueSellingPoints []string `json:"unique_selling_points"`
	Observations        []string `json:"observations"`
}

// ImageAnalysis scores the product imagery.
type ImageAnalysis struct {
	ImageCount         int      `json:"image_count"`
	HasLifestyleImages bool     `json:"has_lifestyle_images"`
	HasDetailShots     bool     `json:"has_detail_shots"`
	HasSizeReference   bool     `json:"has_size_reference"`
	HasVideo           bool     `json:"has_video"`
	ImageQualityScore  int      `json:"image_quality_score"`
	ImageVarietyScore  int      `json:"image_variety_score"`
	Observations       []string `json:"observations"`
}

// PricingAnalysis scores price presentation. PriceDisplayed carries the
// price as shown on the page, or "Not visible".
type PricingAnalysis struct {
	PriceDisplayed        string   `json:"price_displayed"`
	HasOriginalPrice      bool     `json:"has_original_price"`
	HasDiscountBadge      bool     `json:"has_discount_badge"`
	HasPromotionalOffer   bool     `json:"has_promotional_offer"`
	PriceVisibilityScore  int      `json:"price_visibility_score"`
	ValuePropositionScore int      `json:"value_proposition_score"`
	Observations          []string `json:"observations"`
}

// ReviewsAnalysis scores social proof. Rating and count are nil when the
// page does not show them.
type ReviewsAnalysis struct {
	AverageRating             *float64 `json:"average_rating"`
	ReviewCount               *int     `json:"review_count"`
	HasReviewSummary          bool     `json:"has_review_summary"`
	HasReviewImages           bool     `json:"has_review_images"`
	HasSellerResponses        bool     `json:"has_seller_responses"`
	HasVerifiedPurchaseBadges bool     `json:"has_verified_purchase_badges"`
	SocialProofScore          int      `json:"social_proof_score"`
	Observations              []string `json:"observations"`
}

// SEOAnalysis scores search optimization signals visible on the page.
type SEOAnalysis struct {
	HasStructuredData    bool     `json:"has_structured_data"`
	KeywordUsageScore    int      `json:"keyword_usage_score"`
	BreadcrumbNavigation bool     `json:"breadcrumb_navigation"`
	URLStructureScore    int      `json:"url_structure_score"`
	Observations         []string `json:"observations"`
}

// CTAAnalysis scores the calls to action.
type CTAAnalysis struct {
	PrimaryCTAText              string   `json:"primary_cta_text"`
	CTAVisibilityScore          int      `json:"cta_visibility_score"`
	HasUrgencyElements          bool     `json:"has_urgency_elements"`
	HasTrustBadges              bool     `json:"has_trust_badges"`
	HasGuaranteeInfo            bool     `json:"has_guarantee_info"`
	SecondaryCTAs               []string `json:"secondary_ctas"`
	ConversionOptimizationScore int      `json:"conversion_optimization_score"`
	Observations                []string `json:"observations"`
}

// PDPAnalysis is the complete analysis of a single product detail page.
// OverallScore is 1-100.
type PDPAnalysis struct {
	URL          string              `json:"url"`
	ProductName  string              `json:"product_name"`
	Brand        *string             `json:"brand"`
	Category     *string             `json:"category"`
	Title        TitleAnalysis       `json:"title"`
	Description  DescriptionAnalysis `json:"description"`
	Images       ImageAnalysis       `json:"images"`
	Pricing      PricingAnalysis     `json:"pricing"`
	Reviews      ReviewsAnalysis     `json:"reviews"`
	SEO          SEOAnalysis         `json:"seo"`
	CTA          CTAAnalysis         `json:"cta"`
	OverallScore int                 `json:"overall_score"`
	Strengths    []string            `json:"strengths"`
	Weaknesses   []string            `json:"weaknesses"`
}

// ComparisonDimension holds both scores and the verdict for one dimension.
type ComparisonDimension struct {
	Dimension      string `json:"dimension"`
	SourceScore    int    `json:"source_score"`
	ReferenceScore int    `json:"reference_score"`
	Winner         string `json:"winner"`
	GapAnalysis    string `json:"gap_analysis"`
}

// CompetitiveComparison is the side-by-side comparison of both pages.
type CompetitiveComparison struct {
	TitleComparison       ComparisonDimension `json:"title_comparison"`
	DescriptionComparison ComparisonDimension `json:"description_comparison"`
	ImagesComparison      ComparisonDimension `json:"images_comparison"`
	PricingComparison     ComparisonDimension `json:"pricing_comparison"`
	ReviewsComparison     ComparisonDimension `json:"reviews_comparison"`
	SEOComparison         ComparisonDimension `json:"seo_comparison"`
	CTAComparison         ComparisonDimension `json:"cta_comparison"`
	OverallSourceScore    int                 `json:"overall_source_score"`
	OverallReferenceScore int                 `json:"overall_reference_score"`
	CompetitivePosition   string              `json:"competitive_position"`
}

// Recommendation is one prioritized improvement for the source page.
// Effort and impact are Low/Medium/High.
type Recommendation struct {
	Priority             string  `json:"priority"`
	Dimension            string  `json:"dimension"`
	Recommendation       string  `json:"recommendation"`
	Rationale            string  `json:"rationale"`
	ImplementationEffort string  `json:"implementation_effort"`
	ExpectedImpact       string  `json:"expected_impact"`
	ExampleFromReference *string `json:"example_from_reference"`
}

// AnalysisReport is the complete competitive analysis produced by the
// compare stage. Produced once per successful call, never mutated after.
type AnalysisReport struct {
	AnalysisTimestamp string                `json:"analysis_timestamp"`
	SourcePDP         PDPAnalysis           `json:"source_pdp"`
	ReferencePDP      PDPAnalysis           `json:"reference_pdp"`
	Comparison        CompetitiveComparison `json:"comparison"`
	Recommendations   []Recommendation      `json:"recommendations"`
	ExecutiveSummary  string                `json:"executive_summary"`
}

// CombinedAnalysis is the response of the full single-URL chain: discovery
// followed by comparison against the discovered competitor. On a stage
// failure the fields up to that stage are populated and Error is set.
type CombinedAnalysis struct {
	Success             bool                 `json:"success"`
	CompetitorDiscovery *CompetitorDiscovery `json:"competitor_discovery,omitempty"`
	Comparison          *AnalysisReport      `json:"comparison,omitempty"`
	Error               string               `json:"error,omitempty"`
}
