package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/workflow"
)

func seedWorkflow(t *testing.T, svc *Service) string {
	t.Helper()
	id, err := svc.Create(context.Background(), &workflow.Workflow{
		Name:    "Order approval",
		OwnerID: "alice",
		Collaborators: []workflow.Collaborator{
			{UserID: "bob", Permission: workflow.PermissionEdit},
			{UserID: "carol", Permission: workflow.PermissionView},
		},
	})
	require.NoError(t, err)
	return id
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	id := seedWorkflow(t, svc)

	w, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Order approval", w.Name)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.SetCollaborators(ctx, id, nil))
	w, err = svc.Get(ctx, id)
	require.NoError(t, err)
	require.Empty(t, w.Collaborators)

	require.NoError(t, svc.Delete(ctx, id))
	_, err = svc.Get(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, id), ErrNotFound)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	id := seedWorkflow(t, svc)

	ok, err := svc.Exists(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Exists(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanEdit(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	id := seedWorkflow(t, svc)

	for user, want := range map[string]bool{
		"alice":    true,  // owner
		"bob":      true,  // edit collaborator
		"carol":    false, // view only
		"stranger": false,
	} {
		ok, err := svc.CanEdit(ctx, id, user)
		require.NoError(t, err)
		require.Equal(t, want, ok, user)
	}
}

func TestIsCollaborator(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	id := seedWorkflow(t, svc)

	for user, want := range map[string]bool{
		"alice":    true,
		"carol":    true, // viewers count
		"stranger": false,
	} {
		ok, err := svc.IsCollaborator(ctx, id, user)
		require.NoError(t, err)
		require.Equal(t, want, ok, user)
	}

	ok, err := svc.IsCollaborator(ctx, "missing", "alice")
	require.NoError(t, err)
	require.False(t, ok)
}
