package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/workflow"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/workflow/service"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/middleware"
)

// RegisterWorkflowRoutes exposes the workflow registry over HTTP. All routes
// require an authenticated caller.
func RegisterWorkflowRoutes(engine *gin.Engine, ver middleware.Verifier, svc *service.Service) {
	r := engine.Group("/", middleware.AuthMiddleware(ver))
	r.GET("/api/workflows", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]gin.H, 0, len(list))
		for _, w := range list {
			out = append(out, gin.H{"id": w.ID, "name": w.Name, "ownerId": w.OwnerID, "updatedAt": w.UpdatedAt})
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/api/workflows", func(c *gin.Context) {
		var req struct {
			Name          string                  `json:"name" binding:"required"`
			OwnerID       string                  `json:"ownerId"`
			Collaborators []workflow.Collaborator `json:"collaborators"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.OwnerID == "" {
			req.OwnerID = c.GetString("userID")
		}
		w := &workflow.Workflow{Name: req.Name, OwnerID: req.OwnerID, Collaborators: req.Collaborators}
		id, err := svc.Create(c.Request.Context(), w)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id, "name": w.Name})
	})

	r.GET("/api/workflows/:id", func(c *gin.Context) {
		w, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, w)
	})

	r.PUT("/api/workflows/:id/collaborators", func(c *gin.Context) {
		var req struct {
			Collaborators []workflow.Collaborator `json:"collaborators" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.SetCollaborators(c.Request.Context(), c.Param("id"), req.Collaborators); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	r.DELETE("/api/workflows/:id", func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})
}
