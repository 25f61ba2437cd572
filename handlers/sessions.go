package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/presence"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/room"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/session"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/middleware"
)

// SessionHandler exposes the collaboration session lifecycle over REST.
// The realtime channel covers the same ground for connected clients; these
// endpoints serve session bootstrap and clients without a socket.
type SessionHandler struct {
	sessions *session.Service
	reg      *presence.Registry
}

func NewSessionHandler(sessions *session.Service, reg *presence.Registry) *SessionHandler {
	return &SessionHandler{sessions: sessions, reg: reg}
}

// RegisterSessionRoutes wires the collab REST API. Join and Get accept a
// join token as an alternative credential, so auth is optional there.
func RegisterSessionRoutes(r *gin.Engine, ver middleware.Verifier, h *SessionHandler) {
	api := r.Group("/api/v1/collab")

	api.POST("/sessions", middleware.AuthMiddleware(ver), h.Create)
	api.GET("/sessions/:id", middleware.OptionalAuthMiddleware(ver), h.Get)
	api.POST("/sessions/:id/join", middleware.OptionalAuthMiddleware(ver), h.Join)
	api.POST("/sessions/:id/leave", middleware.AuthMiddleware(ver), h.Leave)
	api.POST("/sessions/:id/cursor", middleware.AuthMiddleware(ver), h.Cursor)
	api.GET("/documents/:id/presence", middleware.AuthMiddleware(ver), h.Presence)
}

type createSessionRequest struct {
	DocumentID  string            `json:"documentId" binding:"required"`
	SessionType session.Type      `json:"sessionType"`
	Settings    *session.Settings `json:"settings"`
}

type sessionResponse struct {
	*session.Session
	JoinToken string `json:"joinToken,omitempty"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	sess, created, err := h.sessions.Create(c.Request.Context(), req.DocumentID, c.GetString("userID"), req.SessionType, req.Settings)
	if err != nil {
		writeCollabError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	// Only the session owner gets the join token to hand out; discovery
	// of a running session does not leak it.
	resp := sessionResponse{Session: sess}
	if p := sess.Participant(c.GetString("userID")); created || (p != nil && p.Role == session.RoleOwner) {
		resp.JoinToken = sess.JoinToken
	}
	c.JSON(status, resp)
}

func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"), c.GetString("userID"), c.Query("joinToken"))
	if err != nil {
		writeCollabError(c, err)
		return
	}
	resp := sessionResponse{Session: sess}
	if p := sess.Participant(c.GetString("userID")); p != nil && p.Role == session.RoleOwner {
		resp.JoinToken = sess.JoinToken
	}
	c.JSON(http.StatusOK, resp)
}

type joinSessionRequest struct {
	JoinToken string `json:"joinToken"`
}

func (h *SessionHandler) Join(c *gin.Context) {
	var req joinSessionRequest
	_ = c.ShouldBindJSON(&req)
	if req.JoinToken == "" {
		req.JoinToken = c.Query("joinToken")
	}
	sess, err := h.sessions.Join(c.Request.Context(), c.Param("id"), c.GetString("userID"), req.JoinToken)
	if err != nil {
		writeCollabError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Session: sess})
}

func (h *SessionHandler) Leave(c *gin.Context) {
	sess, err := h.sessions.Leave(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		writeCollabError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Session: sess})
}

type cursorRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (h *SessionHandler) Cursor(c *gin.Context) {
	var req cursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	err := h.sessions.UpdateCursor(c.Request.Context(), c.Param("id"), c.GetString("userID"), collab.Cursor{X: req.X, Y: req.Y})
	if err != nil {
		writeCollabError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *SessionHandler) Presence(c *gin.Context) {
	docID := c.Param("id")
	entries := h.reg.ListByRoom(room.DocumentRoom(docID))
	c.JSON(http.StatusOK, gin.H{"documentId": docID, "presence": entries})
}

// writeCollabError maps the collaboration failure classes onto HTTP status
// codes. Unknown errors become 500 without leaking internals.
func writeCollabError(c *gin.Context, err error) {
	var locked *collab.LockedError
	switch {
	case errors.As(err, &locked):
		c.JSON(http.StatusConflict, gin.H{"error": "resource locked", "resourceId": locked.ResourceID, "lockedBy": locked.Holder})
	case errors.Is(err, collab.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, collab.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, collab.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, collab.ErrSessionEnded):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
