package api

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kilnworks/autodev/internal/errs"
	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/pathsafe"
	"github.com/kilnworks/autodev/internal/provider"
	"github.com/kilnworks/autodev/internal/store"
)

// projectView folds a project's features, sessions, and progress into
// one response object, per spec §4.8's "list projects (with
// features/sessions/progress folded in)".
type projectView struct {
	model.Project
	Features []model.Feature `json:"features"`
	Sessions []model.Session `json:"sessions"`
	Progress model.Progress  `json:"progress"`
}

func (s *server) buildProjectView(proj *model.Project) (projectView, error) {
	features, err := s.deps.Store.LoadFeaturesCache(proj.ID)
	if err != nil {
		return projectView{}, err
	}
	sessions, err := s.deps.Store.LoadSessions(proj.ID)
	if err != nil {
		return projectView{}, err
	}
	return projectView{
		Project:  *proj,
		Features: features,
		Sessions: sessions,
		Progress: model.ComputeProgress(features),
	}, nil
}

func (s *server) listProjects(c *gin.Context) {
	ids, err := s.deps.Store.ListProjectIDs()
	if err != nil {
		fail(c, errs.Internal("listing projects", err))
		return
	}

	views := make([]projectView, 0, len(ids))
	for _, id := range ids {
		proj, err := s.deps.Store.LoadProject(id)
		if err != nil {
			continue // a project directory without a readable project.json is skipped, not fatal
		}
		view, err := s.buildProjectView(proj)
		if err != nil {
			continue
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, views)
}

func (s *server) getProject(c *gin.Context) {
	projectID := c.Param("projectId")
	proj, err := s.deps.Store.LoadProject(projectID)
	if err != nil {
		fail(c, errs.NotFound("project", projectID))
		return
	}
	view, err := s.buildProjectView(proj)
	if err != nil {
		fail(c, errs.Internal("building project view", err))
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *server) listProviders(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Registry.List())
}

type probeDirRequest struct {
	Path string `json:"path"`
}

type probeDirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
}

func (s *server) probeDir(c *gin.Context) {
	var req probeDirRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := pathsafe.Check(req.Path); err != nil {
		fail(c, errs.UnsafePath(req.Path))
		return
	}

	entries, err := os.ReadDir(req.Path)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, gin.H{"exists": false, "entries": []probeDirEntry{}})
			return
		}
		fail(c, errs.Internal("reading directory", err))
		return
	}

	out := make([]probeDirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, probeDirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	c.JSON(http.StatusOK, gin.H{"exists": true, "entries": out})
}

type createProjectRequest struct {
	Name               string         `json:"name"`
	Spec               string         `json:"spec"`
	ProjectDir         string         `json:"projectDir"`
	Provider           string         `json:"provider"`
	Model              string         `json:"model"`
	Concurrency        int            `json:"concurrency"`
	UseAgentTeams      bool           `json:"useAgentTeams"`
	SystemPrompt       string         `json:"systemPrompt"`
	ReviewBeforeCoding bool           `json:"reviewBeforeCoding"`
	Settings           map[string]any `json:"settings"`
}

func (s *server) createProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Name == "" || req.Spec == "" || req.ProjectDir == "" || req.Provider == "" {
		badRequest(c, "name, spec, projectDir, and provider are required")
		return
	}
	if err := pathsafe.Check(req.ProjectDir); err != nil {
		fail(c, errs.UnsafePath(req.ProjectDir))
		return
	}
	adapter, ok := s.deps.Registry.Get(req.Provider)
	if !ok {
		badRequest(c, "unknown provider")
		return
	}
	if err := provider.ValidateSettings(adapter.Settings(), req.Settings); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := os.MkdirAll(req.ProjectDir, 0o755); err != nil {
		fail(c, errs.Internal("creating project directory", err))
		return
	}
	specPath := filepath.Join(req.ProjectDir, "app_spec.txt")
	if err := os.WriteFile(specPath, []byte(req.Spec), 0o644); err != nil {
		fail(c, errs.Internal("writing app_spec.txt", err))
		return
	}

	now := time.Now()
	proj := &model.Project{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		Spec:               req.Spec,
		Status:             model.StatusIdle,
		Provider:           req.Provider,
		Settings:           req.Settings,
		Model:              req.Model,
		Concurrency:        req.Concurrency,
		UseAgentTeams:      req.UseAgentTeams,
		SystemPrompt:       req.SystemPrompt,
		ReviewBeforeCoding: req.ReviewBeforeCoding,
		ProjectDir:         req.ProjectDir,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	proj.ClampConcurrency()

	if err := s.deps.Store.SaveProject(proj); err != nil {
		fail(c, errs.Internal("saving project", err))
		return
	}
	c.JSON(http.StatusCreated, proj)
}

type importProjectRequest struct {
	Name          string `json:"name"`
	ProjectDir    string `json:"projectDir"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	Concurrency   int    `json:"concurrency"`
	UseAgentTeams bool   `json:"useAgentTeams"`
}

// importProject attaches an existing working directory (already holding
// app_spec.txt and, typically, feature_list.json) as a new project,
// without touching either file.
func (s *server) importProject(c *gin.Context) {
	var req importProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.ProjectDir == "" || req.Provider == "" {
		badRequest(c, "projectDir and provider are required")
		return
	}
	if err := pathsafe.Check(req.ProjectDir); err != nil {
		fail(c, errs.UnsafePath(req.ProjectDir))
		return
	}
	if _, ok := s.deps.Registry.Get(req.Provider); !ok {
		badRequest(c, "unknown provider")
		return
	}

	specBytes, err := os.ReadFile(filepath.Join(req.ProjectDir, "app_spec.txt"))
	if err != nil && !os.IsNotExist(err) {
		fail(c, errs.Internal("reading app_spec.txt", err))
		return
	}

	name := req.Name
	if name == "" {
		name = filepath.Base(req.ProjectDir)
	}

	now := time.Now()
	proj := &model.Project{
		ID:            uuid.New().String(),
		Name:          name,
		Spec:          string(specBytes),
		Status:        model.StatusIdle,
		Provider:      req.Provider,
		Model:         req.Model,
		Concurrency:   req.Concurrency,
		UseAgentTeams: req.UseAgentTeams,
		ProjectDir:    req.ProjectDir,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	proj.ClampConcurrency()

	if err := s.deps.Store.SaveProject(proj); err != nil {
		fail(c, errs.Internal("saving project", err))
		return
	}

	if features, err := store.ReadFeatureList(req.ProjectDir); err == nil && len(features) > 0 {
		_ = s.deps.Store.SaveFeaturesCache(proj.ID, features)
	}

	c.JSON(http.StatusCreated, proj)
}

func (s *server) deleteProject(c *gin.Context) {
	projectID := c.Param("projectId")
	if _, err := s.deps.Store.LoadProject(projectID); err != nil {
		fail(c, errs.NotFound("project", projectID))
		return
	}

	if s.deps.Orchestrator.IsRunning(projectID) {
		if err := s.deps.Orchestrator.StopAgent(projectID); err != nil {
			fail(c, errs.Internal("stopping agents before delete", err))
			return
		}
	}

	if err := s.deps.Store.DeleteProject(projectID); err != nil {
		fail(c, errs.Internal("deleting project", err))
		return
	}
	c.Status(http.StatusNoContent)
}
