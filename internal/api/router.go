package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kilnworks/autodev/internal/common/httpmw"
)

// NewRouter assembles the gin engine: request logging and tracing on
// every route, the server-token check on every route under /api/v1.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmw.RequestLogger(deps.Logger, "autodev-api"))
	r.Use(httpmw.OtelTracing("autodev-api"))

	s := &server{deps: deps}

	r.GET("/healthz", s.healthz)

	v1 := r.Group("/api/v1", requireAuth(deps.Auth))
	{
		v1.GET("/providers", s.listProviders)
		v1.POST("/probe-dir", s.probeDir)

		v1.GET("/projects", s.listProjects)
		v1.POST("/projects", s.createProject)
		v1.POST("/projects/import", s.importProject)
		v1.GET("/projects/:projectId", s.getProject)
		v1.DELETE("/projects/:projectId", s.deleteProject)

		v1.POST("/projects/:projectId/start", s.startAgent)
		v1.POST("/projects/:projectId/stop", s.stopAgent)

		v1.GET("/projects/:projectId/features", s.listFeatures)
		v1.GET("/projects/:projectId/sessions", s.listSessions)
		v1.GET("/projects/:projectId/logs", s.listLogs)
		v1.GET("/projects/:projectId/sessions/:sessionId/raw", s.getSessionRawLog)

		v1.GET("/projects/:projectId/help-requests", s.listHelpRequests)
		v1.POST("/projects/:projectId/help-requests/:requestId/respond", s.respondHelpRequest)

		v1.PUT("/projects/:projectId/system-prompt", s.updateSystemPrompt)
		v1.POST("/projects/:projectId/append-spec", s.appendSpec)
		v1.POST("/projects/:projectId/review", s.startReview)
		v1.POST("/projects/:projectId/review/confirm", s.confirmReview)

		v1.GET("/projects/:projectId/stream", s.stream)
	}

	return r
}

func (s *server) healthz(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
