// Package api defines the wire types exchanged between the pdplens gateway,
// the upstream analysis engine, and SDK consumers. The JSON field names match
// the engine's contract and must not drift from it.
package api

// AnalysisRequest is the request body accepted by the analysis endpoints.
// SourceURL is always required; ReferenceURL is consumed only by the compare
// endpoint and is normally taken from a prior discovery's CompetitorURL.
type AnalysisRequest struct {
	SourceURL    string `json:"source_url"`
	ReferenceURL string `json:"reference_url,omitempty"`
}
