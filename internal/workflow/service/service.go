package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/workflow"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/workflow/repository"
)

var ErrNotFound = errors.New("not found")

// Repo is the persistence surface the service needs.
type Repo interface {
	Create(ctx context.Context, w *workflow.Workflow) (string, error)
	Get(ctx context.Context, id string) (*workflow.Workflow, error)
	List(ctx context.Context) ([]*workflow.Workflow, error)
	SetCollaborators(ctx context.Context, id string, collaborators []workflow.Collaborator) error
	Delete(ctx context.Context, id string) error
}

// Service exposes registry operations plus the existence-and-permission
// checks the collaboration core consumes (session.WorkflowDirectory).
type Service struct {
	repo Repo
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() *Service {
	return &Service{repo: repository.NewMemoryRepo()}
}

// NewMongoService returns a Service backed by a MongoDB collection.
func NewMongoService(col *mongo.Collection) *Service {
	return &Service{repo: repository.NewMongoRepo(col)}
}

func (s *Service) Create(ctx context.Context, w *workflow.Workflow) (string, error) {
	return s.repo.Create(ctx, w)
}

func (s *Service) Get(ctx context.Context, id string) (*workflow.Workflow, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

func (s *Service) List(ctx context.Context) ([]*workflow.Workflow, error) {
	return s.repo.List(ctx)
}

func (s *Service) SetCollaborators(ctx context.Context, id string, collaborators []workflow.Collaborator) error {
	if err := s.repo.SetCollaborators(ctx, id, collaborators); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Exists reports whether the workflow is registered.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// CanEdit reports whether the user holds edit permission on the workflow.
func (s *Service) CanEdit(ctx context.Context, id, userID string) (bool, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	perm, ok := w.PermissionFor(userID)
	return ok && perm == workflow.PermissionEdit, nil
}

// IsCollaborator reports whether the user may at least view the workflow.
func (s *Service) IsCollaborator(ctx context.Context, id, userID string) (bool, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_, ok := w.PermissionFor(userID)
	return ok, nil
}
