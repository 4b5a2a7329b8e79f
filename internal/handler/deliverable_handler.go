package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workbridge/engage-api/internal/models"
	"github.com/workbridge/engage-api/internal/service"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
	"github.com/workbridge/engage-api/pkg/response"
)

type deliverableService interface {
	Create(ctx context.Context, engagementID, sponsorID string, req service.CreateDeliverableRequest) (*models.Deliverable, error)
	List(ctx context.Context, engagementID string) ([]models.Deliverable, error)
	Start(ctx context.Context, deliverableID, participantID string) (*models.Deliverable, error)
	Submit(ctx context.Context, deliverableID, participantID string, req service.SubmitDeliverableRequest) (*models.Deliverable, error)
	Review(ctx context.Context, deliverableID, sponsorID string, req service.ReviewDeliverableRequest) (*models.Deliverable, error)
	Submissions(ctx context.Context, deliverableID string) ([]models.Submission, error)
	Progress(ctx context.Context, engagementID string) (*models.DeliverableProgress, error)
}

// DeliverableHandler wires the deliverable cycle to HTTP endpoints.
type DeliverableHandler struct {
	service     deliverableService
	maxFileSize int64
}

// NewDeliverableHandler constructs the handler. maxFileSize bounds uploaded
// artifact size in bytes; zero disables the bound.
func NewDeliverableHandler(service deliverableService, maxFileSize int64) *DeliverableHandler {
	return &DeliverableHandler{service: service, maxFileSize: maxFileSize}
}

// Create godoc
// @Summary Attach a deliverable to an engagement
// @Tags Deliverables
// @Accept json
// @Produce json
// @Param id path string true "Engagement ID"
// @Param payload body service.CreateDeliverableRequest true "Deliverable payload"
// @Success 201 {object} response.Envelope
// @Router /engagements/{id}/deliverables [post]
func (h *DeliverableHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateDeliverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	deliverable, err := h.service.Create(c.Request.Context(), c.Param("id"), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, deliverable)
}

// List godoc
// @Summary An engagement's deliverables
// @Tags Deliverables
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} response.Envelope
// @Router /engagements/{id}/deliverables [get]
func (h *DeliverableHandler) List(c *gin.Context) {
	deliverables, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deliverables, nil)
}

// Start godoc
// @Summary Start work on a pending deliverable
// @Tags Deliverables
// @Produce json
// @Param id path string true "Deliverable ID"
// @Success 200 {object} response.Envelope
// @Router /deliverables/{id}/start [post]
func (h *DeliverableHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	deliverable, err := h.service.Start(c.Request.Context(), c.Param("id"), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deliverable, nil)
}

// Submit godoc
// @Summary Submit a deliverable
// @Tags Deliverables
// @Accept mpfd
// @Produce json
// @Param id path string true "Deliverable ID"
// @Param content formData string true "Submission text"
// @Param artifact formData file false "Optional artifact file"
// @Success 200 {object} response.Envelope
// @Router /deliverables/{id}/submit [post]
func (h *DeliverableHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.SubmitDeliverableRequest{Content: c.PostForm("content")}
	if file, err := c.FormFile("artifact"); err == nil && file != nil {
		if h.maxFileSize > 0 && file.Size > h.maxFileSize {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "artifact exceeds the size limit"))
			return
		}
		opened, err := file.Open()
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unreadable artifact"))
			return
		}
		defer opened.Close() //nolint:errcheck
		contents, err := io.ReadAll(opened)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unreadable artifact"))
			return
		}
		req.ArtifactName = file.Filename
		req.ArtifactContents = contents
	}

	deliverable, err := h.service.Submit(c.Request.Context(), c.Param("id"), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deliverable, nil)
}

// Review godoc
// @Summary Approve or reject a submitted deliverable
// @Tags Deliverables
// @Accept json
// @Produce json
// @Param id path string true "Deliverable ID"
// @Param payload body service.ReviewDeliverableRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /deliverables/{id}/review [post]
func (h *DeliverableHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ReviewDeliverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	deliverable, err := h.service.Review(c.Request.Context(), c.Param("id"), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deliverable, nil)
}

// Submissions godoc
// @Summary A deliverable's submission history
// @Tags Deliverables
// @Produce json
// @Param id path string true "Deliverable ID"
// @Success 200 {object} response.Envelope
// @Router /deliverables/{id}/submissions [get]
func (h *DeliverableHandler) Submissions(c *gin.Context) {
	submissions, err := h.service.Submissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Progress godoc
// @Summary Deliverable completion for an engagement
// @Tags Deliverables
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} response.Envelope
// @Router /engagements/{id}/progress [get]
func (h *DeliverableHandler) Progress(c *gin.Context) {
	progress, err := h.service.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}
