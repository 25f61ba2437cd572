// Package collab holds the shared vocabulary of the collaboration core:
// failure classes and the small value types that cross component boundaries.
package collab

// Cursor is a position on the diagram canvas.
type Cursor struct {
	X float64 `bson:"x" json:"x"`
	Y float64 `bson:"y" json:"y"`
}

// Identity is the authenticated principal acting on the collaboration core.
// Resolution from credentials happens outside (OIDC or HMAC verifier).
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}
