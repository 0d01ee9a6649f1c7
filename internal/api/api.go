// Package api is the HTTP/WebSocket surface over the orchestrator (spec
// §4.8): a gin router exposing project CRUD, agent start/stop, feature
// and session listings, help-request handling, and a subscribe endpoint
// that upgrades to the broadcast hub. Grounded on the teacher's
// apps/backend/internal/orchestrator/api package shape (gin.Engine,
// versioned route group, JSON error envelope) and its
// streaming.WSHandler for the upgrade handler.
package api

import (
	"github.com/kilnworks/autodev/internal/broadcast"
	"github.com/kilnworks/autodev/internal/common/config"
	"github.com/kilnworks/autodev/internal/common/logger"
	"github.com/kilnworks/autodev/internal/orchestrator"
	"github.com/kilnworks/autodev/internal/provider"
	"github.com/kilnworks/autodev/internal/store"
)

// Deps are the collaborators every handler needs. One Deps is built once
// at startup and shared by every request.
type Deps struct {
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Registry     *provider.Registry
	Hub          *broadcast.Hub
	Logger       *logger.Logger
	Auth         config.AuthConfig
}

type server struct {
	deps Deps
}
