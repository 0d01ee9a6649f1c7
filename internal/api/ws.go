package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kilnworks/autodev/internal/broadcast"
)

// upgrader mirrors the teacher's streaming.upgrader: origin checking is
// left to a reverse proxy in front of this service.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// stream upgrades the connection and registers it with the hub as a
// subscriber to one project, per spec §4.7's wire protocol. Auth is
// already enforced by requireAuth on the /api/v1 group the route belongs
// to, satisfying the "subscribe handshake must present the same token"
// requirement.
func (s *server) stream(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		badRequest(c, "projectId is required")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.deps.Logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	s.deps.Logger.WithFields(
		zap.String("client_id", clientID),
		zap.String("project_id", projectID),
	).Info("subscriber connected")

	client := broadcast.NewClient(clientID, conn, s.deps.Hub, projectID, s.deps.Logger)
	s.deps.Hub.Register(client)

	go client.WritePump()
	client.ReadPump()
}
