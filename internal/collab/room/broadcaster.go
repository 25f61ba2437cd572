// Package room provides best-effort, at-most-once fan-out of events to every
// connection subscribed to a room. Delivery from a single publisher reaches
// all members in publish order (Publish runs synchronously on the publisher's
// goroutine and each subscriber consumes an ordered buffer); no ordering is
// guaranteed across distinct publishers. Disconnected clients simply miss
// events.
package room

import (
	"strings"
	"sync"

	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/logger"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/metrics"
)

// Room id namespaces. One room exists per document (all viewers and
// editors) and one per active collaboration session.
func DocumentRoom(documentID string) string { return "document:" + documentID }
func SessionRoom(sessionID string) string   { return "session:" + sessionID }

// DocumentIDFromRoom recovers the document id from a document-room id.
func DocumentIDFromRoom(roomID string) (string, bool) {
	id, ok := strings.CutPrefix(roomID, "document:")
	return id, ok
}

// Subscriber receives marshaled events. Deliver must not block; a subscriber
// whose buffer is full drops the event (best-effort delivery).
type Subscriber interface {
	Deliver(data []byte) bool
}

// Broadcaster tracks which connections belong to which rooms. A connection
// may belong to multiple rooms simultaneously.
type Broadcaster struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Subscriber
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{rooms: make(map[string]map[string]Subscriber)}
}

// Join subscribes a connection to a room.
func (b *Broadcaster) Join(roomID, connectionID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members := b.rooms[roomID]
	if members == nil {
		members = make(map[string]Subscriber)
		b.rooms[roomID] = members
	}
	members[connectionID] = sub
}

// Leave unsubscribes a connection from one room.
func (b *Broadcaster) Leave(roomID, connectionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaveLocked(roomID, connectionID)
}

// LeaveAll unsubscribes a connection from every room it belongs to and
// returns the room ids it was removed from.
func (b *Broadcaster) LeaveAll(connectionID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var left []string
	for roomID, members := range b.rooms {
		if _, ok := members[connectionID]; ok {
			left = append(left, roomID)
			b.leaveLocked(roomID, connectionID)
		}
	}
	return left
}

// MemberCount returns the number of connections subscribed to the room.
func (b *Broadcaster) MemberCount(roomID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[roomID])
}

// Publish delivers the event to every room member except the connection
// named by exclude (pass "" to reach everyone). Marshals once, delivers
// at-most-once.
func (b *Broadcaster) Publish(roomID, exclude string, event Event) {
	data, err := event.Marshal()
	if err != nil {
		logger.Errorf("room %s: marshal %s event: %v", roomID, event.Type, err)
		return
	}
	b.mu.RLock()
	members := b.rooms[roomID]
	targets := make([]Subscriber, 0, len(members))
	for id, sub := range members {
		if id == exclude {
			continue
		}
		targets = append(targets, sub)
	}
	b.mu.RUnlock()
	metrics.BroadcastEvents.WithLabelValues(event.Type).Inc()
	for _, sub := range targets {
		if !sub.Deliver(data) {
			logger.Debugf("room %s: dropped %s event for slow subscriber", roomID, event.Type)
		}
	}
}

func (b *Broadcaster) leaveLocked(roomID, connectionID string) {
	members := b.rooms[roomID]
	if members == nil {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(b.rooms, roomID)
	}
}
