package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the collab service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>flowdeck-collab Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the collaboration endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "flowdeck-collab", "version": "v0.1.0" },
  "paths": {
    "/api/v1/collab/sessions": {
      "post": {
        "summary": "Start (or rediscover) a collaboration session for a document",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"documentId":{"type":"string"},"sessionType":{"type":"string"},"settings":{"type":"object"}}}}}},
        "responses": { "201": { "description": "session created" }, "200": { "description": "existing active session returned" }, "403": { "description": "no edit permission" } }
      }
    },
    "/api/v1/collab/sessions/{id}": {
      "get": { "summary": "Fetch a session (collaborator or joinToken)", "responses": { "200": { "description": "session" }, "403": { "description": "denied" }, "410": { "description": "session ended or expired" } } }
    },
    "/api/v1/collab/sessions/{id}/join": {
      "post": { "summary": "Join a session", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"joinToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "joined" }, "409": { "description": "capacity exceeded" } } }
    },
    "/api/v1/collab/sessions/{id}/leave": {
      "post": { "summary": "Leave a session", "responses": { "200": { "description": "left" } } }
    },
    "/api/v1/collab/sessions/{id}/cursor": {
      "post": { "summary": "Report a cursor position without a realtime channel", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"x":{"type":"number"},"y":{"type":"number"}}}}}}, "responses": { "200": { "description": "recorded" } } }
    },
    "/api/v1/collab/documents/{id}/presence": {
      "get": { "summary": "List live presence for a document", "responses": { "200": { "description": "presence entries" } } }
    },
    "/ws": { "get": { "summary": "Realtime channel (WebSocket upgrade, token in query or header)", "responses": { "101": { "description": "switching protocols" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
