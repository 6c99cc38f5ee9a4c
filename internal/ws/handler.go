package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/webllm/renderify/internal/logging"
	"github.com/webllm/renderify/internal/plan"
	"github.com/webllm/renderify/internal/runtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS middleware in front of us.
		return true
	},
}

// dispatchTimeout bounds one event dispatch started from a stream message.
const dispatchTimeout = 30 * time.Second

// Message is a client-to-server stream frame.
type Message struct {
	Type  string      `json:"type"`
	Event *plan.Event `json:"event,omitempty"`
}

// Handler manages WebSocket event streams. One connection follows one plan:
// the client dispatches events and receives the resulting state and markup.
type Handler struct {
	manager *runtime.Manager
	log     *logging.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(manager *runtime.Manager, log *logging.Logger) *Handler {
	return &Handler{
		manager: manager,
		log:     log.Component("ws"),
	}
}

// HandleConnection upgrades the request and serves the event stream for the
// plan named in the route.
func (h *Handler) HandleConnection(c *gin.Context) {
	planID := c.Param("id")
	if _, err := h.manager.GetPlan(planID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	reqCtx := c.Request.Context()

	h.send(conn, map[string]interface{}{
		"type":    "connected",
		"plan_id": planID,
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", zap.Error(err))
			}
			break
		}

		switch msg.Type {
		case "dispatch":
			h.handleDispatch(reqCtx, conn, planID, msg)
		case "state":
			h.handleState(conn, planID)
		case "ping":
			h.send(conn, map[string]interface{}{"type": "pong"})
		default:
			h.sendError(conn, "unknown message type")
		}
	}
}

func (h *Handler) handleDispatch(reqCtx context.Context, conn *websocket.Conn, planID string, msg Message) {
	if msg.Event == nil || msg.Event.Type == "" {
		h.sendError(conn, "dispatch requires an event with a type")
		return
	}

	ctx, cancel := context.WithTimeout(reqCtx, dispatchTimeout)
	defer cancel()

	result, err := h.manager.DispatchEvent(ctx, planID, *msg.Event)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	h.send(conn, map[string]interface{}{
		"type":            "state",
		"plan_id":         planID,
		"handled_event":   result.HandledEvent,
		"applied_actions": result.AppliedActions,
		"state":           result.State,
		"html":            result.HTML,
		"timestamp":       time.Now().Unix(),
	})
}

func (h *Handler) handleState(conn *websocket.Conn, planID string) {
	state, err := h.manager.GetPlanState(planID)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	h.send(conn, map[string]interface{}{
		"type":    "state",
		"plan_id": planID,
		"state":   state,
	})
}

func (h *Handler) send(conn *websocket.Conn, data interface{}) error {
	return conn.WriteJSON(data)
}

func (h *Handler) sendError(conn *websocket.Conn, msg string) error {
	return h.send(conn, map[string]interface{}{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}
