package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *server) startAgent(c *gin.Context) {
	projectID := c.Param("projectId")
	if err := s.deps.Orchestrator.StartAgent(c.Request.Context(), projectID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *server) stopAgent(c *gin.Context) {
	projectID := c.Param("projectId")
	if err := s.deps.Orchestrator.StopAgent(projectID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
