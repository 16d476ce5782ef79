package archive

import (
	"github.com/gin-gonic/gin"
	"github.com/pdplens/pdplens/internal/pkg/response"
)

// Handler exposes the recent-uploads ring to admin users.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/reports/archive", authMW)
	g.GET("/recent", h.recent)
}

// GET /reports/archive/recent
func (h *Handler) recent(c *gin.Context) {
	objects := h.svc.Recent()
	response.OK(c, gin.H{
		"count":   len(objects),
		"objects": objects,
	})
}
