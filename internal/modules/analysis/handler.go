package analysis

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pdplens/pdplens/api"
	"github.com/pdplens/pdplens/internal/middleware"
	"github.com/pdplens/pdplens/internal/pkg/response"
)

// Handler exposes one analysis surface. The authenticated and the trial
// surface each get their own instance, parameterized by variant.
type Handler struct {
	svc     *Service
	variant Variant
}

func NewHandler(svc *Service, variant Variant) *Handler {
	return &Handler{svc: svc, variant: variant}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/analysis")
	if h.variant.RequireAuth {
		g.Use(authMW)
	}
	g.POST("/discover", h.discover)
	g.POST("/compare", h.compare)
	g.POST("/full", h.full)
}

// POST /analysis/discover
func (h *Handler) discover(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	if req.SourceURL == "" {
		response.UnprocessableEntity(c, "source_url is required")
		return
	}

	discovery, err := h.svc.Discover(c.Request.Context(), h.variant, middleware.CurrentUserID(c), req)
	if err != nil {
		writeUpstreamError(c, err)
		return
	}
	response.OK(c, discovery)
}

// POST /analysis/compare
func (h *Handler) compare(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	if req.SourceURL == "" {
		response.UnprocessableEntity(c, "source_url is required")
		return
	}
	if req.ReferenceURL == "" {
		response.UnprocessableEntity(c, "reference_url is required")
		return
	}

	report, err := h.svc.Compare(c.Request.Context(), h.variant, req)
	if err != nil {
		writeUpstreamError(c, err)
		return
	}
	response.OK(c, report)
}

// POST /analysis/full
//
// The combined result carries its own success flag, mirroring the staged
// nature of the run, so it goes out without the envelope.
func (h *Handler) full(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	if req.SourceURL == "" {
		response.UnprocessableEntity(c, "source_url is required")
		return
	}

	combined := h.svc.Full(c.Request.Context(), h.variant, middleware.CurrentUserID(c), req)
	response.Raw(c, combined)
}

// bindRequest decodes and trims the request body. URLs are only checked for
// presence; anything non-empty is forwarded to the engine untouched.
func bindRequest(c *gin.Context) (api.AnalysisRequest, bool) {
	var req api.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.UnprocessableEntity(c, "invalid request body")
		return req, false
	}
	req.SourceURL = strings.TrimSpace(req.SourceURL)
	req.ReferenceURL = strings.TrimSpace(req.ReferenceURL)
	return req, true
}

// writeUpstreamError maps a classified engine failure onto the response
// envelope: budget exhaustion reports 504, engine errors pass through with
// their original status and detail, everything else is a bad gateway.
func writeUpstreamError(c *gin.Context, err error) {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		response.InternalError(c, err)
		return
	}
	switch {
	case errors.Is(ue, ErrTimeout):
		response.GatewayTimeout(c, msgTimeout)
	case errors.Is(ue, ErrUpstream):
		detail := ue.Detail
		if detail == "" {
			detail = msgEngineRejected
		}
		response.Error(c, ue.Status, detail)
	case errors.Is(ue, ErrDecode):
		response.BadGateway(c, msgBadEngineReply)
	default:
		response.BadGateway(c, msgUnreachable)
	}
}
