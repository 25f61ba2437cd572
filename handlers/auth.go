package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/config"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/models"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/tokens"
)

// RegisterDevAuth registers a token-minting endpoint for local development
// and integration tests. It is only mounted when ALLOW_INSECURE_TOKEN=true;
// production deployments authenticate against the OIDC issuer instead.
func RegisterDevAuth(r *gin.Engine, cfg *config.Config) {
	if os.Getenv("ALLOW_INSECURE_TOKEN") != "true" {
		return
	}
	r.POST("/auth/dev-token", func(c *gin.Context) {
		var req struct {
			Sub   string `json:"sub" binding:"required"`
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
		u := &models.User{Sub: req.Sub, Name: req.Name, Email: req.Email}
		tok, err := tokens.GenerateAccessToken(cfg, u, cfg.JWT.AccessTokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": tok, "token_type": "Bearer"})
	})
}
