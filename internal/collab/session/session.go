// Package session holds the persisted collaboration-session record and the
// lifecycle controller that orchestrates create/join/leave/expire and
// ownership transfer.
package session

import (
	"time"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

type Role string

const (
	RoleOwner       Role = "owner"
	RoleParticipant Role = "participant"
)

// Type classifies what the session is for. Editing is the default.
type Type string

const (
	TypeEditing Type = "editing"
	TypeReview  Type = "review"
)

// Settings are the per-session collaboration toggles.
type Settings struct {
	AllowChat        bool `bson:"allowChat" json:"allowChat"`
	AllowScreenShare bool `bson:"allowScreenShare" json:"allowScreenShare"`
	AllowFileShare   bool `bson:"allowFileShare" json:"allowFileShare"`
	AutoSaveInterval int  `bson:"autoSaveIntervalSec" json:"autoSaveIntervalSec"`
	RequireApproval  bool `bson:"requireApproval" json:"requireApproval"`
}

// DefaultSettings matches what the editor UI assumes when the creator sends
// no overrides.
func DefaultSettings() Settings {
	return Settings{AllowChat: true, AutoSaveInterval: 30}
}

// Participant is owned by a Session. While the session is active exactly one
// active participant has the owner role.
type Participant struct {
	UserID       string         `bson:"userId" json:"userId"`
	Role         Role           `bson:"role" json:"role"`
	JoinedAt     time.Time      `bson:"joinedAt" json:"joinedAt"`
	LeftAt       *time.Time     `bson:"leftAt,omitempty" json:"leftAt,omitempty"`
	IsActive     bool           `bson:"isActive" json:"isActive"`
	Cursor       *collab.Cursor `bson:"cursor,omitempty" json:"cursor,omitempty"`
	Selection    []string       `bson:"selection,omitempty" json:"selection,omitempty"`
	LastActivity time.Time      `bson:"lastActivity" json:"lastActivity"`
}

// Session is the persisted record of one collaboration session. It is the
// system of record surviving restarts; presence and lock state are not.
type Session struct {
	ID              string        `bson:"_id" json:"id"`
	DocumentID      string        `bson:"documentId" json:"documentId"`
	CreatedBy       string        `bson:"createdBy" json:"createdBy"`
	Type            Type          `bson:"sessionType" json:"sessionType"`
	Settings        Settings      `bson:"settings" json:"settings"`
	Participants    []Participant `bson:"participants" json:"participants"`
	Status          Status        `bson:"status" json:"status"`
	CreatedAt       time.Time     `bson:"createdAt" json:"createdAt"`
	ExpiresAt       time.Time     `bson:"expiresAt" json:"expiresAt"`
	EndedAt         *time.Time    `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
	JoinToken       string        `bson:"joinToken" json:"-"`
	MaxParticipants int           `bson:"maxParticipants" json:"maxParticipants"`
}

// ActiveCount returns the number of participants with isActive=true. The
// capacity invariant keeps this at or below MaxParticipants.
func (s *Session) ActiveCount() int {
	n := 0
	for i := range s.Participants {
		if s.Participants[i].IsActive {
			n++
		}
	}
	return n
}

// Participant returns a pointer into the participants slice for the user,
// or nil. Participants are kept in join order.
func (s *Session) Participant(userID string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return &s.Participants[i]
		}
	}
	return nil
}

// Owner returns the active participant holding the owner role, or nil.
func (s *Session) Owner() *Participant {
	for i := range s.Participants {
		if s.Participants[i].IsActive && s.Participants[i].Role == RoleOwner {
			return &s.Participants[i]
		}
	}
	return nil
}

// Expired reports whether the session TTL has passed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Usable reports whether operations against the session are still allowed.
func (s *Session) Usable(now time.Time) bool {
	return s.Status == StatusActive && !s.Expired(now)
}
