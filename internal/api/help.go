package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kilnworks/autodev/internal/errs"
	"github.com/kilnworks/autodev/internal/model"
)

func (s *server) listHelpRequests(c *gin.Context) {
	projectID := c.Param("projectId")
	reqs, err := s.deps.Store.LoadHelpRequests(projectID)
	if err != nil {
		fail(c, errs.Internal("listing help requests", err))
		return
	}

	pending := make([]model.HelpRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.Status == model.HelpPending {
			pending = append(pending, r)
		}
	}
	c.JSON(http.StatusOK, pending)
}

type respondHelpRequestBody struct {
	Response string `json:"response"`
}

// respondHelpRequest resolves a pending help request, writes
// .human-response.md into the project's working directory so the next
// agent invocation can read it, and — if the project is not currently
// running and not completed — restarts it (spec §4.8's help-response
// side effect).
func (s *server) respondHelpRequest(c *gin.Context) {
	projectID := c.Param("projectId")
	requestID := c.Param("requestId")

	var body respondHelpRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Response) == "" {
		badRequest(c, "response is required")
		return
	}

	proj, err := s.deps.Store.LoadProject(projectID)
	if err != nil {
		fail(c, errs.NotFound("project", projectID))
		return
	}

	resolved, err := s.deps.Store.ResolveHelpRequest(projectID, requestID, body.Response)
	if err != nil {
		fail(c, errs.Internal("resolving help request", err))
		return
	}
	if resolved == nil {
		fail(c, errs.NotFound("help request", requestID))
		return
	}

	if err := writeHumanResponse(proj.ProjectDir, *resolved); err != nil {
		fail(c, errs.Internal("writing human response", err))
		return
	}

	if proj.Status != model.StatusCompleted && !s.deps.Orchestrator.IsRunning(projectID) {
		_ = s.deps.Orchestrator.StartAgent(c.Request.Context(), projectID)
	}

	c.JSON(http.StatusOK, resolved)
}

func writeHumanResponse(projectDir string, req model.HelpRequest) error {
	var b strings.Builder
	b.WriteString("# Human Response\n\n")

	b.WriteString("## Current Task\n")
	if req.FeatureDesc != "" {
		fmt.Fprintf(&b, "%s (feature %s)\n\n", req.FeatureDesc, req.FeatureID)
	} else {
		b.WriteString("(no feature associated with this request)\n\n")
	}

	b.WriteString("## Problem\n")
	fmt.Fprintf(&b, "%s\n\n", req.Message)

	b.WriteString("## Recent Logs\n")
	if len(req.LogSnapshot) == 0 {
		b.WriteString("(no log snapshot captured)\n\n")
	} else {
		for _, entry := range req.LogSnapshot {
			fmt.Fprintf(&b, "- [%s] %s\n", entry.Kind, entry.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Guidance\n")
	fmt.Fprintf(&b, "%s\n", req.Response)

	return os.WriteFile(filepath.Join(projectDir, ".human-response.md"), []byte(b.String()), 0o644)
}
