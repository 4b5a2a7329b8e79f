package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/workbridge/engage-api/internal/dto"
	"github.com/workbridge/engage-api/internal/middleware"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
	"github.com/workbridge/engage-api/pkg/response"
)

type dashboardService interface {
	Participant(ctx context.Context, participantID string) (*dto.ParticipantDashboardResponse, bool, error)
	Sponsor(ctx context.Context, sponsorID string) (*dto.SponsorDashboardResponse, bool, error)
}

// DashboardHandler wires dashboard aggregation to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Participant godoc
// @Summary Participant dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/participant [get]
func (h *DashboardHandler) Participant(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	start := time.Now()
	dashboard, cacheHit, err := h.service.Participant(c.Request.Context(), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, dashboard, nil, meta)
}

// Sponsor godoc
// @Summary Sponsor dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/sponsor [get]
func (h *DashboardHandler) Sponsor(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	start := time.Now()
	dashboard, cacheHit, err := h.service.Sponsor(c.Request.Context(), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, dashboard, nil, meta)
}
