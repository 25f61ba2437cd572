package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/lock"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/presence"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/room"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/session"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/users"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/logger"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/metrics"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// deployments front this service with a reverse proxy that
		// enforces origins; same-origin is assumed here
		return true
	},
}

// Handler upgrades connections and routes validated messages into the
// collaboration core.
type Handler struct {
	verifier  middleware.Verifier
	workflows session.WorkflowDirectory
	sessions  *session.Service
	locks     lock.Manager
	reg       *presence.Registry
	rooms     *room.Broadcaster
	users     *users.Service // optional; resolves display names
}

func NewHandler(verifier middleware.Verifier, workflows session.WorkflowDirectory, sessions *session.Service, locks lock.Manager, reg *presence.Registry, rooms *room.Broadcaster, userSvc *users.Service) *Handler {
	return &Handler{
		verifier:  verifier,
		workflows: workflows,
		sessions:  sessions,
		locks:     locks,
		reg:       reg,
		rooms:     rooms,
		users:     userSvc,
	}
}

// HandleConnection authenticates the request (token query parameter or
// Bearer header), upgrades it, and runs the read loop until the peer goes
// away. The disconnect cascade runs exactly once when the loop exits.
func (h *Handler) HandleConnection(c *gin.Context) {
	ident, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing credentials"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("ws upgrade failed for %s: %v", ident.UserID, err)
		return
	}

	client := NewClient(conn, uuid.NewString(), ident.UserID, ident.Name)
	metrics.WSConnections.Inc()
	logger.Debugf("ws connection %s opened for user %s", client.id, client.userID)

	go h.writePump(client)
	h.readPump(client)
}

func (h *Handler) authenticate(c *gin.Context) (collab.Identity, error) {
	raw := c.Query("token")
	if raw == "" {
		raw = bearerToken(c.GetHeader("Authorization"))
	}
	if raw == "" {
		return collab.Identity{}, errors.New("missing token")
	}
	token, err := h.verifier.Verify(c.Request.Context(), raw)
	if err != nil {
		return collab.Identity{}, err
	}
	var claims map[string]interface{}
	if err := token.Claims(&claims); err != nil {
		return collab.Identity{}, err
	}
	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return collab.Identity{}, errors.New("token has no subject")
	}
	if h.users != nil {
		if u, err := h.users.UpsertFromClaims(c.Request.Context(), claims); err == nil && u != nil && u.Name != "" {
			name = u.Name
		}
	}
	return collab.Identity{UserID: sub, Name: name}, nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return ""
	}
	return header[len(prefix):]
}

func (h *Handler) readPump(client *Client) {
	defer func() {
		if err := h.sessions.Disconnect(context.Background(), client.id); err != nil {
			logger.Errorf("disconnect cascade for %s: %v", client.id, err)
		}
		client.Close()
		client.conn.Close()
		metrics.WSConnections.Dec()
		logger.Debugf("ws connection %s closed", client.id)
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warnf("ws read error on %s: %v", client.id, err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.sendError(client, "malformed envelope")
			continue
		}
		payload, err := env.Decode()
		if err != nil {
			h.sendError(client, err.Error())
			continue
		}
		h.dispatch(client, payload)
	}
}

func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) dispatch(client *Client, payload interface{}) {
	ctx := context.Background()
	switch p := payload.(type) {
	case *JoinRoomPayload:
		h.handleJoinRoom(ctx, client, p)
	case *CursorMovePayload:
		h.handleCursorMove(client, p)
	case *SelectionChangePayload:
		h.handleSelectionChange(client, p)
	case *LockResourcePayload:
		h.handleLockResource(ctx, client, p)
	case *UnlockResourcePayload:
		h.handleUnlockResource(ctx, client, p)
	case *ResourceUpdatePayload:
		h.handleResourceUpdate(ctx, client, p)
	}
}

func (h *Handler) handleJoinRoom(ctx context.Context, client *Client, p *JoinRoomPayload) {
	exists, err := h.workflows.Exists(ctx, p.DocumentID)
	if err != nil {
		logger.Errorf("join_room: workflow lookup %s: %v", p.DocumentID, err)
		h.sendError(client, "workflow lookup failed")
		return
	}
	if !exists {
		h.sendError(client, "unknown document "+p.DocumentID)
		return
	}
	ok, err := h.workflows.IsCollaborator(ctx, p.DocumentID, client.userID)
	if err != nil {
		logger.Errorf("join_room: permission lookup %s: %v", p.DocumentID, err)
		h.sendError(client, "permission lookup failed")
		return
	}
	if !ok {
		h.sendError(client, "not a collaborator on "+p.DocumentID)
		return
	}

	// a re-join moves the connection: drop old rooms first
	if prev := client.documentID(); prev != "" && prev != p.DocumentID {
		h.rooms.LeaveAll(client.id)
	}
	client.setDocumentID(p.DocumentID)
	docRoom := room.DocumentRoom(p.DocumentID)
	h.rooms.Join(docRoom, client.id, client)
	h.reg.Register(presence.Entry{
		ConnectionID: client.id,
		UserID:       client.userID,
		UserName:     client.userName,
		RoomID:       docRoom,
	})
	// Active session participants also hear session-room traffic.
	// Membership is evaluated only here: a client that joins the session
	// over REST after connecting re-sends join_room to subscribe to the
	// session room.
	if sess, err := h.sessions.ActiveForDocument(ctx, p.DocumentID); err == nil && sess != nil {
		if part := sess.Participant(client.userID); part != nil && part.IsActive {
			h.rooms.Join(room.SessionRoom(sess.ID), client.id, client)
		}
	}
	h.rooms.Publish(docRoom, client.id, room.Event{
		Type:    room.EventUserJoined,
		Payload: room.UserJoined{UserID: client.userID, UserName: client.userName},
	})
}

func (h *Handler) handleCursorMove(client *Client, p *CursorMovePayload) {
	if client.documentID() != p.DocumentID {
		h.sendError(client, "cursor_move: not joined to document "+p.DocumentID)
		return
	}
	cursor := collab.Cursor{X: p.X, Y: p.Y}
	h.reg.UpdateCursor(client.id, cursor)
	h.rooms.Publish(room.DocumentRoom(p.DocumentID), client.id, room.Event{
		Type:    room.EventCursorUpdate,
		Payload: room.CursorUpdate{UserID: client.userID, Cursor: cursor},
	})
}

func (h *Handler) handleSelectionChange(client *Client, p *SelectionChangePayload) {
	if client.documentID() != p.DocumentID {
		h.sendError(client, "selection_change: not joined to document "+p.DocumentID)
		return
	}
	h.reg.UpdateSelection(client.id, p.ResourceIDs)
	h.rooms.Publish(room.DocumentRoom(p.DocumentID), client.id, room.Event{
		Type:    room.EventSelectionUpdate,
		Payload: room.SelectionUpdate{UserID: client.userID, ResourceIDs: p.ResourceIDs},
	})
}

func (h *Handler) handleLockResource(ctx context.Context, client *Client, p *LockResourcePayload) {
	if client.documentID() != p.DocumentID {
		h.sendError(client, "lock_resource: not joined to document "+p.DocumentID)
		return
	}
	lk, err := h.locks.Acquire(ctx, p.ResourceID, p.ResourceType, client.userID)
	if err != nil {
		var locked *collab.LockedError
		if errors.As(err, &locked) {
			metrics.LocksDenied.Inc()
			h.sendEvent(client, room.Event{
				Type:    room.EventLockFailed,
				Payload: room.LockFailed{ResourceID: p.ResourceID, LockedBy: locked.Holder},
			})
			return
		}
		h.sendError(client, err.Error())
		return
	}
	metrics.LocksGranted.Inc()
	h.reg.SetStatus(client.id, presence.StatusEditing)
	h.rooms.Publish(room.DocumentRoom(p.DocumentID), "", room.Event{
		Type: room.EventResourceLocked,
		Payload: room.ResourceLocked{
			ResourceID:   lk.ResourceID,
			ResourceType: lk.ResourceType,
			LockedBy:     lk.LockedBy,
			ExpiresAt:    lk.ExpiresAt,
		},
	})
}

func (h *Handler) handleUnlockResource(ctx context.Context, client *Client, p *UnlockResourcePayload) {
	if client.documentID() != p.DocumentID {
		h.sendError(client, "unlock_resource: not joined to document "+p.DocumentID)
		return
	}
	released, err := h.locks.Release(ctx, p.ResourceID, client.userID)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}
	if !released {
		// not the holder; nothing to announce
		return
	}
	metrics.LocksReleased.Inc()
	h.reg.SetStatus(client.id, presence.StatusOnline)
	h.rooms.Publish(room.DocumentRoom(p.DocumentID), "", room.Event{
		Type:    room.EventResourceUnlocked,
		Payload: room.ResourceUnlocked{ResourceID: p.ResourceID, ReleasedBy: client.userID},
	})
}

func (h *Handler) handleResourceUpdate(ctx context.Context, client *Client, p *ResourceUpdatePayload) {
	if client.documentID() != p.DocumentID {
		h.sendError(client, "resource_update: not joined to document "+p.DocumentID)
		return
	}
	holder, held, err := h.locks.Holder(ctx, p.ResourceID)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}
	if held && holder != client.userID {
		h.sendEvent(client, room.Event{
			Type:    room.EventEditDenied,
			Payload: room.EditDenied{ResourceID: p.ResourceID, Reason: "locked by " + holder},
		})
		return
	}
	h.rooms.Publish(room.DocumentRoom(p.DocumentID), client.id, room.Event{
		Type: room.EventResourceUpdated,
		Payload: room.ResourceUpdated{
			ResourceID: p.ResourceID,
			UpdatedBy:  client.userID,
			Changes:    p.Changes,
		},
	})
}

func (h *Handler) sendEvent(client *Client, event room.Event) {
	data, err := event.Marshal()
	if err != nil {
		logger.Errorf("marshal %s event: %v", event.Type, err)
		return
	}
	client.Deliver(data)
}

func (h *Handler) sendError(client *Client, message string) {
	h.sendEvent(client, room.Event{Type: EventError, Payload: gin.H{"message": message}})
}
