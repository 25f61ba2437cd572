package room

import (
	"encoding/json"
	"time"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/lock"
)

// Broadcast event types delivered over the realtime channel.
const (
	EventUserJoined       = "user_joined"
	EventUserLeft         = "user_left"
	EventCursorUpdate     = "cursor_update"
	EventSelectionUpdate  = "selection_update"
	EventResourceLocked   = "resource_locked"
	EventResourceUnlocked = "resource_unlocked"
	EventResourceUpdated  = "resource_updated"
	EventEditDenied       = "edit_denied"
	EventLockFailed       = "lock_failed"
)

// Event is the tagged envelope every broadcast is wrapped in.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Marshal encodes the event once so fan-out shares the same bytes.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UserJoined announces a new presence in a room or a new session participant.
type UserJoined struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

// UserLeft carries the departed identity and, for session rooms, the owner
// after recomputation.
type UserLeft struct {
	UserID     string `json:"userId"`
	NewOwnerID string `json:"newOwnerId,omitempty"`
	Ended      bool   `json:"ended,omitempty"`
}

type CursorUpdate struct {
	UserID string        `json:"userId"`
	Cursor collab.Cursor `json:"cursor"`
}

type SelectionUpdate struct {
	UserID      string   `json:"userId"`
	ResourceIDs []string `json:"resourceIds"`
}

type ResourceLocked struct {
	ResourceID   string            `json:"resourceId"`
	ResourceType lock.ResourceType `json:"resourceType"`
	LockedBy     string            `json:"lockedBy"`
	ExpiresAt    time.Time         `json:"expiresAt"`
}

type ResourceUnlocked struct {
	ResourceID string `json:"resourceId"`
	ReleasedBy string `json:"releasedBy,omitempty"`
}

type ResourceUpdated struct {
	ResourceID string          `json:"resourceId"`
	UpdatedBy  string          `json:"updatedBy"`
	Changes    json.RawMessage `json:"changes"`
}

type EditDenied struct {
	ResourceID string `json:"resourceId"`
	Reason     string `json:"reason"`
}

type LockFailed struct {
	ResourceID string `json:"resourceId"`
	LockedBy   string `json:"lockedBy,omitempty"`
}
