// Package presence tracks who is connected to which room and where their
// cursor and selection are. State is process-local and ephemeral: it is
// rebuilt purely from live connections and never reloaded after a restart.
package presence

import (
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
)

// Status is the coarse activity state of a connection.
type Status string

const (
	StatusOnline  Status = "online"
	StatusEditing Status = "editing"
)

// Entry is the record for one live connection. A single user may hold
// several independent entries (multiple devices or tabs).
type Entry struct {
	ConnectionID string         `json:"connectionId"`
	UserID       string         `json:"userId"`
	UserName     string         `json:"userName,omitempty"`
	RoomID       string         `json:"roomId"`
	Cursor       *collab.Cursor `json:"cursor,omitempty"`
	Selection    []string       `json:"selection,omitempty"`
	Status       Status         `json:"status"`
	LastSeen     time.Time      `json:"lastSeen"`
}

// Registry holds one entry per live connection, keyed by connection id,
// with a secondary index by room.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	byRoom  map[string]map[string]*Entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		byRoom:  make(map[string]map[string]*Entry),
		now:     time.Now,
	}
}

// Register records the entry for its connection, replacing any previous
// entry for the same connection (a re-join moves the connection to the new
// room).
func (r *Registry) Register(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.entries[entry.ConnectionID]; ok {
		r.dropFromRoom(prev)
	}
	if entry.Status == "" {
		entry.Status = StatusOnline
	}
	entry.LastSeen = r.now()
	e := entry
	r.entries[e.ConnectionID] = &e
	room := r.byRoom[e.RoomID]
	if room == nil {
		room = make(map[string]*Entry)
		r.byRoom[e.RoomID] = room
	}
	room[e.ConnectionID] = &e
}

// UpdateCursor overwrites the latest cursor position and bumps lastSeen.
// No history is kept.
func (r *Registry) UpdateCursor(connectionID string, cursor collab.Cursor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[connectionID]
	if !ok {
		return false
	}
	c := cursor
	e.Cursor = &c
	e.LastSeen = r.now()
	return true
}

// UpdateSelection overwrites the latest selection and bumps lastSeen.
func (r *Registry) UpdateSelection(connectionID string, resourceIDs []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[connectionID]
	if !ok {
		return false
	}
	e.Selection = append([]string(nil), resourceIDs...)
	e.LastSeen = r.now()
	return true
}

// SetStatus updates the activity state for a connection.
func (r *Registry) SetStatus(connectionID string, status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[connectionID]
	if !ok {
		return false
	}
	e.Status = status
	e.LastSeen = r.now()
	return true
}

// Unregister removes the entry and returns it so the caller knows which
// room and locks to clean up downstream.
func (r *Registry) Unregister(connectionID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[connectionID]
	if !ok {
		return Entry{}, false
	}
	delete(r.entries, connectionID)
	r.dropFromRoom(e)
	return *e, true
}

// Get returns a copy of the entry for the connection.
func (r *Registry) Get(connectionID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[connectionID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// ListByRoom returns copies of every entry currently registered in the room.
func (r *Registry) ListByRoom(roomID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.byRoom[roomID]
	out := make([]Entry, 0, len(room))
	for _, e := range room {
		out = append(out, *e)
	}
	return out
}

func (r *Registry) dropFromRoom(e *Entry) {
	room := r.byRoom[e.RoomID]
	if room == nil {
		return
	}
	delete(room, e.ConnectionID)
	if len(room) == 0 {
		delete(r.byRoom, e.RoomID)
	}
}
