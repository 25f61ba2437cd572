// Package workflow is the collaboration core's view of the workflow-diagram
// registry: which documents exist and who may view or edit them. Diagram
// content itself is stored and versioned elsewhere.
package workflow

import "time"

type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// Collaborator grants one user a permission on one workflow.
type Collaborator struct {
	UserID     string     `bson:"userId" json:"userId"`
	Permission Permission `bson:"permission" json:"permission"`
}

// Workflow is the registry record for one diagram.
type Workflow struct {
	ID            string         `bson:"_id" json:"id"`
	Name          string         `bson:"name" json:"name"`
	OwnerID       string         `bson:"ownerId" json:"ownerId"`
	Collaborators []Collaborator `bson:"collaborators" json:"collaborators"`
	CreatedAt     time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// PermissionFor resolves the effective permission for a user. Owners edit.
func (w *Workflow) PermissionFor(userID string) (Permission, bool) {
	if userID == "" {
		return "", false
	}
	if w.OwnerID == userID {
		return PermissionEdit, true
	}
	for _, c := range w.Collaborators {
		if c.UserID == userID {
			return c.Permission, true
		}
	}
	return "", false
}
