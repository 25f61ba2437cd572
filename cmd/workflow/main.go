package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/database"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/oidc"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/tokens"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/workflow/handler"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/workflow/service"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/middleware"
)

// Standalone workflow registry service. The collab service embeds the same
// routes; this binary exists for deployments that scale the registry
// separately from the realtime tier.
func main() {
	port := os.Getenv("WORKFLOW_SERVICE_PORT")
	if port == "" {
		port = "5010"
	}

	r := gin.New()
	r.Use(gin.Recovery())

	// Prefer the Mongo-backed service when MONGODB_URI is provided.
	var svc *service.Service
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI != "" {
		client, err := database.ConnectMongo(context.Background(), mongoURI, 10*time.Second)
		if err != nil {
			log.Printf("warning: cannot connect to MongoDB (%v), using memory-backed repo", err)
			svc = service.NewMemoryService()
		} else {
			col := client.Database(os.Getenv("MONGODB_DATABASE")).Collection("workflows")
			svc = service.NewMongoService(col)
		}
	} else {
		svc = service.NewMemoryService()
	}

	var verifier middleware.Verifier
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		verifier = tokens.NewHMACVerifier(secret)
	} else if os.Getenv("ALLOW_INSECURE_TOKEN") == "true" {
		log.Printf("warning: insecure token verifier enabled")
		verifier = oidc.NewInsecureVerifier()
	} else {
		log.Fatal("set JWT_SECRET or ALLOW_INSECURE_TOKEN=true")
	}

	handler.RegisterWorkflowRoutes(r, verifier, svc)

	log.Printf("workflow service listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
