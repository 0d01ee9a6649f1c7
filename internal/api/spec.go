package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kilnworks/autodev/internal/errs"
)

type updateSystemPromptRequest struct {
	SystemPrompt string `json:"systemPrompt"`
}

func (s *server) updateSystemPrompt(c *gin.Context) {
	projectID := c.Param("projectId")
	var req updateSystemPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	proj, err := s.deps.Store.LoadProject(projectID)
	if err != nil {
		fail(c, errs.NotFound("project", projectID))
		return
	}
	proj.SystemPrompt = req.SystemPrompt
	if err := s.deps.Store.SaveProject(proj); err != nil {
		fail(c, errs.Internal("saving project", err))
		return
	}
	c.JSON(http.StatusOK, proj)
}

type appendSpecRequest struct {
	AdditionalSpec string `json:"additionalSpec"`
}

func (s *server) appendSpec(c *gin.Context) {
	projectID := c.Param("projectId")
	var req appendSpecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.AdditionalSpec == "" {
		badRequest(c, "additionalSpec is required")
		return
	}
	if err := s.deps.Orchestrator.StartAppendInitializer(c.Request.Context(), projectID, req.AdditionalSpec); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

type reviewRequest struct {
	FeatureIDs  []string `json:"featureIds"`
	Instruction string   `json:"instruction"`
}

func (s *server) startReview(c *gin.Context) {
	projectID := c.Param("projectId")
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if len(req.FeatureIDs) == 0 {
		badRequest(c, "featureIds is required")
		return
	}
	if err := s.deps.Orchestrator.StartReviewSession(c.Request.Context(), projectID, req.FeatureIDs, req.Instruction); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *server) confirmReview(c *gin.Context) {
	projectID := c.Param("projectId")
	if err := s.deps.Orchestrator.ConfirmReview(projectID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
