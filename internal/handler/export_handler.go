package handler

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/workbridge/engage-api/internal/models"
	"github.com/workbridge/engage-api/internal/service"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
	"github.com/workbridge/engage-api/pkg/response"
)

type exportService interface {
	RequestExport(ctx context.Context, engagementID, sponsorID string, format models.ExportFormat) (*models.ExportJob, error)
	GetExport(ctx context.Context, jobID, sponsorID string) (*models.ExportJob, string, error)
	DownloadByToken(ctx context.Context, token string) (*service.ExportDownload, error)
}

type requestExportBody struct {
	Format models.ExportFormat `json:"format"`
}

// ExportHandler wires roster exports to HTTP endpoints.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Request godoc
// @Summary Queue a roster export for an engagement
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Engagement ID"
// @Param payload body requestExportBody true "Export format"
// @Success 202 {object} response.Envelope
// @Router /engagements/{id}/exports [post]
func (h *ExportHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var body requestExportBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	job, err := h.service.RequestExport(c.Request.Context(), c.Param("id"), claims.ActorID, body.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Get godoc
// @Summary Export job status with a download token when ready
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	job, token, err := h.service.GetExport(c.Request.Context(), c.Param("id"), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := gin.H{"job": job}
	if token != "" {
		payload["download_token"] = token
	}
	response.JSON(c, http.StatusOK, payload, nil)
}

// Download godoc
// @Summary Download a rendered export by signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.DownloadByToken(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	filename := filepath.Base(download.Filename)
	contentType := "application/octet-stream"
	switch download.Job.Format {
	case models.ExportFormatCSV:
		contentType = "text/csv"
	case models.ExportFormatPDF:
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", contentType)
	c.File(download.File.Name())
}
