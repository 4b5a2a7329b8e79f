package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workbridge/engage-api/internal/dto"
	"github.com/workbridge/engage-api/internal/middleware"
	"github.com/workbridge/engage-api/internal/models"
	appErrors "github.com/workbridge/engage-api/pkg/errors"
)

type dashboardServiceMock struct {
	participantResp   *dto.ParticipantDashboardResponse
	participantHit    bool
	participantErr    error
	sponsorResp       *dto.SponsorDashboardResponse
	sponsorErr        error
	participantCalled string
	sponsorCalled     string
}

func (m *dashboardServiceMock) Participant(ctx context.Context, participantID string) (*dto.ParticipantDashboardResponse, bool, error) {
	m.participantCalled = participantID
	return m.participantResp, m.participantHit, m.participantErr
}

func (m *dashboardServiceMock) Sponsor(ctx context.Context, sponsorID string) (*dto.SponsorDashboardResponse, bool, error) {
	m.sponsorCalled = sponsorID
	return m.sponsorResp, false, m.sponsorErr
}

func dashboardTestContext(t *testing.T, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, "/dashboard", nil)
	require.NoError(t, err)
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestDashboardHandlerParticipant(t *testing.T) {
	mockSvc := &dashboardServiceMock{
		participantResp: &dto.ParticipantDashboardResponse{
			StatusCard:          dto.StatusCard{State: dto.StatusCardEmpty},
			ProfileCompleteness: 40,
		},
		participantHit: true,
	}
	handler := NewDashboardHandler(mockSvc)

	c, w := dashboardTestContext(t, &models.JWTClaims{ActorID: "part-1", Role: models.RoleParticipant})
	handler.Participant(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "part-1", mockSvc.participantCalled)

	var envelope struct {
		Data dto.ParticipantDashboardResponse `json:"data"`
		Meta map[string]interface{}           `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, dto.StatusCardEmpty, envelope.Data.StatusCard.State)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestDashboardHandlerMissingClaims(t *testing.T) {
	handler := NewDashboardHandler(&dashboardServiceMock{})

	c, w := dashboardTestContext(t, nil)
	handler.Sponsor(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, handler.service.(*dashboardServiceMock).sponsorCalled)
}

func TestDashboardHandlerServiceError(t *testing.T) {
	mockSvc := &dashboardServiceMock{sponsorErr: appErrors.Clone(appErrors.ErrUnavailable, "redis down")}
	handler := NewDashboardHandler(mockSvc)

	c, w := dashboardTestContext(t, &models.JWTClaims{ActorID: "sponsor-1", Role: models.RoleSponsor})
	handler.Sponsor(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
