package presence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
)

func TestRegisterAndList(t *testing.T) {
	r := NewRegistry()
	r.Register(Entry{ConnectionID: "c1", UserID: "alice", RoomID: "document:d1"})
	r.Register(Entry{ConnectionID: "c2", UserID: "bob", RoomID: "document:d1"})
	r.Register(Entry{ConnectionID: "c3", UserID: "carol", RoomID: "document:d2"})

	entries := r.ListByRoom("document:d1")
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, StatusOnline, e.Status)
		require.False(t, e.LastSeen.IsZero())
	}
	require.Len(t, r.ListByRoom("document:d2"), 1)
	require.Empty(t, r.ListByRoom("document:d3"))
}

func TestSameUserMultipleConnections(t *testing.T) {
	r := NewRegistry()
	r.Register(Entry{ConnectionID: "tab-1", UserID: "alice", RoomID: "document:d1"})
	r.Register(Entry{ConnectionID: "tab-2", UserID: "alice", RoomID: "document:d1"})

	entries := r.ListByRoom("document:d1")
	require.Len(t, entries, 2)

	_, ok := r.Unregister("tab-1")
	require.True(t, ok)
	// the other tab's presence is untouched
	require.Len(t, r.ListByRoom("document:d1"), 1)
}

func TestRegisterMovesConnectionBetweenRooms(t *testing.T) {
	r := NewRegistry()
	r.Register(Entry{ConnectionID: "c1", UserID: "alice", RoomID: "document:d1"})
	r.Register(Entry{ConnectionID: "c1", UserID: "alice", RoomID: "document:d2"})

	require.Empty(t, r.ListByRoom("document:d1"))
	require.Len(t, r.ListByRoom("document:d2"), 1)
}

func TestUpdateCursorAndSelection(t *testing.T) {
	r := NewRegistry()
	r.Register(Entry{ConnectionID: "c1", UserID: "alice", RoomID: "document:d1"})

	require.True(t, r.UpdateCursor("c1", collab.Cursor{X: 10, Y: 20}))
	require.True(t, r.UpdateSelection("c1", []string{"node-1", "node-2"}))
	require.False(t, r.UpdateCursor("ghost", collab.Cursor{}))

	e, ok := r.Get("c1")
	require.True(t, ok)
	require.NotNil(t, e.Cursor)
	require.Equal(t, 10.0, e.Cursor.X)
	require.Equal(t, []string{"node-1", "node-2"}, e.Selection)
}

func TestSetStatus(t *testing.T) {
	r := NewRegistry()
	r.Register(Entry{ConnectionID: "c1", UserID: "alice", RoomID: "document:d1"})

	require.True(t, r.SetStatus("c1", StatusEditing))
	e, _ := r.Get("c1")
	require.Equal(t, StatusEditing, e.Status)
	require.False(t, r.SetStatus("ghost", StatusEditing))
}

func TestUnregisterReturnsEntry(t *testing.T) {
	r := NewRegistry()
	r.Register(Entry{ConnectionID: "c1", UserID: "alice", RoomID: "document:d1"})

	e, ok := r.Unregister("c1")
	require.True(t, ok)
	require.Equal(t, "alice", e.UserID)
	require.Equal(t, "document:d1", e.RoomID)

	_, ok = r.Unregister("c1")
	require.False(t, ok)
	require.Empty(t, r.ListByRoom("document:d1"))
}

func TestListReturnsCopies(t *testing.T) {
	r := NewRegistry()
	r.Register(Entry{ConnectionID: "c1", UserID: "alice", RoomID: "document:d1"})

	entries := r.ListByRoom("document:d1")
	entries[0].UserID = "mallory"

	e, _ := r.Get("c1")
	require.Equal(t, "alice", e.UserID)
}
