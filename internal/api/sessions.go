package api

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/kilnworks/autodev/internal/errs"
	"github.com/kilnworks/autodev/internal/pathsafe"
)

func (s *server) listSessions(c *gin.Context) {
	projectID := c.Param("projectId")
	sessions, err := s.deps.Store.LoadSessions(projectID)
	if err != nil {
		fail(c, errs.Internal("listing sessions", err))
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (s *server) listLogs(c *gin.Context) {
	projectID := c.Param("projectId")
	logs, err := s.deps.Store.ReadLogs(projectID)
	if err != nil {
		fail(c, errs.Internal("reading logs", err))
		return
	}
	c.JSON(http.StatusOK, logs)
}

// getSessionRawLog streams the last 200 KB of a session's verbatim raw
// log, with the path-sandbox check applied against the claude-logs
// directory (spec §4.8).
func (s *server) getSessionRawLog(c *gin.Context) {
	sessionID := c.Param("sessionId")

	path := s.deps.Store.RawLogPath(sessionID)
	if err := pathsafe.Check(path); err != nil {
		fail(c, errs.UnsafePath(path))
		return
	}
	if filepath.Dir(path) != s.deps.Store.ClaudeLogsDir() {
		fail(c, errs.UnsafePath(path))
		return
	}

	data, err := s.deps.Store.TailRawLog(sessionID)
	if err != nil {
		fail(c, errs.NotFound("session raw log", sessionID))
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}
