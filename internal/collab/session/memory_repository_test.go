package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testSession(id, docID string) *Session {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &Session{
		ID:         id,
		DocumentID: docID,
		CreatedBy:  "alice",
		Type:       TypeEditing,
		Status:     StatusActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(24 * time.Hour),
		Participants: []Participant{
			{UserID: "alice", Role: RoleOwner, JoinedAt: now, IsActive: true},
		},
		MaxParticipants: 10,
	}
}

func TestMemoryRepoCreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	require.NoError(t, r.Create(ctx, testSession("s1", "d1")))
	require.ErrorIs(t, r.Create(ctx, testSession("s1", "d1")), ErrAlreadyExists)

	got, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "d1", got.DocumentID)

	missing, err := r.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestMemoryRepoGetActiveByDocument(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	s := testSession("s1", "d1")
	require.NoError(t, r.Create(ctx, s))

	got, err := r.GetActiveByDocument(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.ID)

	s.Status = StatusEnded
	require.NoError(t, r.Update(ctx, s))

	got, err = r.GetActiveByDocument(ctx, "d1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemoryRepoUpdateUnknownFails(t *testing.T) {
	r := NewMemoryRepository()
	require.Error(t, r.Update(context.Background(), testSession("ghost", "d1")))
}

func TestMemoryRepoListActive(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	require.NoError(t, r.Create(ctx, testSession("s1", "d1")))
	ended := testSession("s2", "d2")
	ended.Status = StatusEnded
	require.NoError(t, r.Create(ctx, ended))

	active, err := r.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "s1", active[0].ID)
}

func TestMemoryRepoReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	require.NoError(t, r.Create(ctx, testSession("s1", "d1")))

	got, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	got.Participants[0].UserID = "mallory"
	got.Status = StatusEnded

	again, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "alice", again.Participants[0].UserID)
	require.Equal(t, StatusActive, again.Status)
}
