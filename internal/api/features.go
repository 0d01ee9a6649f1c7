package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kilnworks/autodev/internal/errs"
	"github.com/kilnworks/autodev/internal/store"
)

// listFeatures forces a disk sync (spec §4.8) rather than serving the
// cache: it re-reads feature_list.json, refreshes the cache, and returns
// the fresh list.
func (s *server) listFeatures(c *gin.Context) {
	projectID := c.Param("projectId")
	proj, err := s.deps.Store.LoadProject(projectID)
	if err != nil {
		fail(c, errs.NotFound("project", projectID))
		return
	}

	features, err := store.ReadFeatureList(proj.ProjectDir)
	if err != nil {
		fail(c, errs.Internal("reading feature list", err))
		return
	}
	if err := s.deps.Store.SaveFeaturesCache(projectID, features); err != nil {
		fail(c, errs.Internal("caching feature list", err))
		return
	}
	c.JSON(http.StatusOK, features)
}
