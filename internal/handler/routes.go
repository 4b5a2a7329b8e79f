package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/workbridge/engage-api/internal/middleware"
	"github.com/workbridge/engage-api/internal/models"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Engagements   *EngagementHandler
	Applications  *ApplicationHandler
	Deliverables  *DeliverableHandler
	Collaboration *CollaborationHandler
	Dashboard     *DashboardHandler
	Profiles      *ProfileHandler
	Exports       *ExportHandler
	Metrics       *MetricsHandler
}

// RegisterRoutes mounts the API under the given prefix. auth must resolve
// bearer tokens into claims; role guards layer on top of it. optionalAuth
// serves the public browse surface, where a token is honored but not required.
func RegisterRoutes(r *gin.Engine, prefix string, auth, optionalAuth gin.HandlerFunc, h Handlers) {
	sponsorOnly := middleware.RequireRoles(models.RoleSponsor)
	participantOnly := middleware.RequireRoles(models.RoleParticipant)

	browse := r.Group(prefix)
	browse.Use(optionalAuth)
	browse.GET("/engagements", h.Engagements.List)
	browse.GET("/engagements/:id", h.Engagements.Get)

	api := r.Group(prefix)
	api.Use(auth)

	api.GET("/me", h.Profiles.Me)
	api.PUT("/me/profile", h.Profiles.Update)
	api.GET("/profiles/:id", h.Profiles.Get)

	engagements := api.Group("/engagements")
	{
		engagements.POST("", sponsorOnly, h.Engagements.Create)
		engagements.PATCH("/:id", sponsorOnly, h.Engagements.Edit)
		engagements.PUT("/:id/status", sponsorOnly, h.Engagements.SetStatus)
		engagements.DELETE("/:id", sponsorOnly, h.Engagements.Delete)

		engagements.POST("/:id/applications", participantOnly, h.Applications.Apply)
		engagements.GET("/:id/applications", sponsorOnly, h.Applications.ListForEngagement)

		engagements.POST("/:id/deliverables", sponsorOnly, h.Deliverables.Create)
		engagements.GET("/:id/deliverables", h.Deliverables.List)
		engagements.GET("/:id/progress", h.Deliverables.Progress)

		engagements.GET("/:id/scope", h.Collaboration.Scope)
		engagements.POST("/:id/resources", h.Collaboration.AddResource)
		engagements.GET("/:id/resources", h.Collaboration.ListResources)
		engagements.POST("/:id/messages", h.Collaboration.SendMessage)
		engagements.GET("/:id/messages", h.Collaboration.ListMessages)
		engagements.GET("/:id/messages/unread", h.Collaboration.UnreadCount)

		if h.Exports != nil {
			engagements.POST("/:id/exports", sponsorOnly, h.Exports.Request)
		}
	}

	applications := api.Group("/applications")
	{
		applications.GET("", participantOnly, h.Applications.History)
		applications.POST("/:id/withdraw", participantOnly, h.Applications.Withdraw)
		applications.POST("/:id/accept", sponsorOnly, h.Applications.Accept)
		applications.POST("/:id/reject", sponsorOnly, h.Applications.Reject)
		applications.POST("/:id/acknowledge", participantOnly, h.Applications.Acknowledge)
	}

	deliverables := api.Group("/deliverables")
	{
		deliverables.POST("/:id/start", participantOnly, h.Deliverables.Start)
		deliverables.POST("/:id/submit", participantOnly, h.Deliverables.Submit)
		deliverables.POST("/:id/review", sponsorOnly, h.Deliverables.Review)
		deliverables.GET("/:id/submissions", h.Deliverables.Submissions)
	}

	api.POST("/messages/:id/read", h.Collaboration.MarkRead)

	api.GET("/dashboard/participant", participantOnly, h.Dashboard.Participant)
	api.GET("/dashboard/sponsor", sponsorOnly, h.Dashboard.Sponsor)

	if h.Exports != nil {
		api.GET("/exports/:id", sponsorOnly, h.Exports.Get)
		// Token-authenticated: the signed token is the credential.
		r.GET(prefix+"/exports/download/:token", h.Exports.Download)
	}
}
