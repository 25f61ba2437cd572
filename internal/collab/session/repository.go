package session

import "context"

// Repository provides persistence for collaboration-session records.
// Implementations return (nil, nil) when a record is missing.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// GetActiveByDocument returns the active session for a document, if any.
	// At most one active session exists per document.
	GetActiveByDocument(ctx context.Context, documentID string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	ListActive(ctx context.Context) ([]*Session, error)
}
