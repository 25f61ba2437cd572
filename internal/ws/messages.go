// Package ws is the realtime channel: it upgrades HTTP connections,
// validates the tagged message schema once at the boundary, and routes
// decoded messages into the collaboration core.
package ws

import (
	"encoding/json"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/lock"
)

// MessageType tags inbound envelopes.
type MessageType string

const (
	MessageTypeJoinRoom        MessageType = "join_room"
	MessageTypeCursorMove      MessageType = "cursor_move"
	MessageTypeSelectionChange MessageType = "selection_change"
	MessageTypeLockResource    MessageType = "lock_resource"
	MessageTypeUnlockResource  MessageType = "unlock_resource"
	MessageTypeResourceUpdate  MessageType = "resource_update"
)

// EventError is sent directly to a client whose envelope failed validation.
const EventError = "error"

// Envelope is the wire form of every inbound message.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinRoomPayload struct {
	DocumentID string `json:"documentId"`
}

func (p *JoinRoomPayload) Validate() error {
	if p.DocumentID == "" {
		return collab.Validationf("join_room: documentId is required")
	}
	return nil
}

type CursorMovePayload struct {
	DocumentID string  `json:"documentId"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

func (p *CursorMovePayload) Validate() error {
	if p.DocumentID == "" {
		return collab.Validationf("cursor_move: documentId is required")
	}
	return nil
}

type SelectionChangePayload struct {
	DocumentID  string   `json:"documentId"`
	ResourceIDs []string `json:"resourceIds"`
}

func (p *SelectionChangePayload) Validate() error {
	if p.DocumentID == "" {
		return collab.Validationf("selection_change: documentId is required")
	}
	return nil
}

type LockResourcePayload struct {
	DocumentID   string            `json:"documentId"`
	ResourceID   string            `json:"resourceId"`
	ResourceType lock.ResourceType `json:"resourceType"`
}

func (p *LockResourcePayload) Validate() error {
	if p.DocumentID == "" || p.ResourceID == "" {
		return collab.Validationf("lock_resource: documentId and resourceId are required")
	}
	if p.ResourceType == "" {
		p.ResourceType = lock.ResourceNode
	}
	if !p.ResourceType.Valid() {
		return collab.Validationf("lock_resource: unknown resource type %q", p.ResourceType)
	}
	return nil
}

type UnlockResourcePayload struct {
	DocumentID string `json:"documentId"`
	ResourceID string `json:"resourceId"`
}

func (p *UnlockResourcePayload) Validate() error {
	if p.DocumentID == "" || p.ResourceID == "" {
		return collab.Validationf("unlock_resource: documentId and resourceId are required")
	}
	return nil
}

type ResourceUpdatePayload struct {
	DocumentID string          `json:"documentId"`
	ResourceID string          `json:"resourceId"`
	Changes    json.RawMessage `json:"changes"`
}

func (p *ResourceUpdatePayload) Validate() error {
	if p.DocumentID == "" || p.ResourceID == "" {
		return collab.Validationf("resource_update: documentId and resourceId are required")
	}
	if len(p.Changes) == 0 {
		return collab.Validationf("resource_update: changes are required")
	}
	return nil
}

// Decode unmarshals and validates the payload for the envelope's type.
// Unknown types and malformed payloads are rejected here so the core only
// ever sees well-formed messages.
func (e *Envelope) Decode() (interface{}, error) {
	var target interface {
		Validate() error
	}
	switch e.Type {
	case MessageTypeJoinRoom:
		target = &JoinRoomPayload{}
	case MessageTypeCursorMove:
		target = &CursorMovePayload{}
	case MessageTypeSelectionChange:
		target = &SelectionChangePayload{}
	case MessageTypeLockResource:
		target = &LockResourcePayload{}
	case MessageTypeUnlockResource:
		target = &UnlockResourcePayload{}
	case MessageTypeResourceUpdate:
		target = &ResourceUpdatePayload{}
	default:
		return nil, collab.Validationf("unknown message type %q", e.Type)
	}
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, target); err != nil {
			return nil, collab.Validationf("%s: malformed payload: %v", e.Type, err)
		}
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return target, nil
}
