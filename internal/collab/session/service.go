package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/lock"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/presence"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/room"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/logger"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/metrics"
)

// WorkflowDirectory is the narrow interface to the external document /
// workflow capability: existence and permission checks only.
type WorkflowDirectory interface {
	Exists(ctx context.Context, documentID string) (bool, error)
	CanEdit(ctx context.Context, documentID, userID string) (bool, error)
	IsCollaborator(ctx context.Context, documentID, userID string) (bool, error)
}

// Service is the session lifecycle controller. It is the only path through
// which Participant records are mutated, so the ownership and capacity
// invariants stay centrally enforced. Every read-modify-write of a record
// runs under a per-session mutex; concurrent joins and departures queue up
// instead of overwriting each other's persisted state.
type Service struct {
	repo            Repository
	locks           lock.Manager
	reg             *presence.Registry
	rooms           *room.Broadcaster
	workflows       WorkflowDirectory
	ttl             time.Duration
	maxParticipants int
	ops             *keyedMutex

	now      func() time.Time
	newID    func() string
	newToken func() (string, error)
}

func NewService(repo Repository, locks lock.Manager, reg *presence.Registry, rooms *room.Broadcaster, workflows WorkflowDirectory, ttl time.Duration, maxParticipants int) *Service {
	return &Service{
		repo:            repo,
		locks:           locks,
		reg:             reg,
		rooms:           rooms,
		workflows:       workflows,
		ttl:             ttl,
		maxParticipants: maxParticipants,
		ops:             newKeyedMutex(),
		now:             time.Now,
		newID:           func() string { return uuid.NewString() },
		newToken:        randomToken,
	}
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create starts a collaboration session for a document. When an active
// session already exists for the document its record is returned instead
// (idempotent discovery); the second return value reports whether a new
// session was created.
func (s *Service) Create(ctx context.Context, documentID, creator string, st Type, settings *Settings) (*Session, bool, error) {
	if documentID == "" || creator == "" {
		return nil, false, collab.Validationf("document id and creator are required")
	}
	exists, err := s.workflows.Exists(ctx, documentID)
	if err != nil {
		return nil, false, fmt.Errorf("workflow lookup: %w", err)
	}
	if !exists {
		return nil, false, collab.Validationf("document %s does not exist", documentID)
	}
	canEdit, err := s.workflows.CanEdit(ctx, documentID, creator)
	if err != nil {
		return nil, false, fmt.Errorf("permission lookup: %w", err)
	}
	if !canEdit {
		return nil, false, fmt.Errorf("%w: no edit permission on document %s", collab.ErrPermissionDenied, documentID)
	}

	// serialize against concurrent creates so two racing creators
	// converge on one session instead of forking two
	docKey := "document/" + documentID
	s.ops.lock(docKey)
	defer s.ops.unlock(docKey)

	if existing, err := s.repo.GetActiveByDocument(ctx, documentID); err != nil {
		return nil, false, err
	} else if existing != nil && existing.Usable(s.now()) {
		return existing, false, nil
	}

	token, err := s.newToken()
	if err != nil {
		return nil, false, err
	}
	if st == "" {
		st = TypeEditing
	}
	cfg := DefaultSettings()
	if settings != nil {
		cfg = *settings
	}
	now := s.now().UTC()
	sess := &Session{
		ID:         s.newID(),
		DocumentID: documentID,
		CreatedBy:  creator,
		Type:       st,
		Settings:   cfg,
		Participants: []Participant{{
			UserID:       creator,
			Role:         RoleOwner,
			JoinedAt:     now,
			IsActive:     true,
			LastActivity: now,
		}},
		Status:          StatusActive,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
		JoinToken:       token,
		MaxParticipants: s.maxParticipants,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, false, err
	}
	metrics.SessionsCreated.Inc()
	logger.Infof("session %s created for document %s by %s", sess.ID, documentID, creator)
	return sess, true, nil
}

// Get loads a session for a requester. Anonymous requesters must present
// the session's join token.
func (s *Service) Get(ctx context.Context, id, requester, joinToken string) (*Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.mayAccess(ctx, sess, requester, joinToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: not a collaborator and no valid join token", collab.ErrPermissionDenied)
	}
	return sess, nil
}

// Join upserts the requester as an active participant. Document
// collaborators bypass the token; everyone else must present a valid one.
// Capacity is checked unless an existing inactive entry is reactivated.
func (s *Service) Join(ctx context.Context, id, requester, joinToken string) (*Session, error) {
	if requester == "" {
		return nil, collab.Validationf("requester is required")
	}
	key := sessionKey(id)
	s.ops.lock(key)
	defer s.ops.unlock(key)
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.mayAccess(ctx, sess, requester, joinToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: invalid or missing join token", collab.ErrPermissionDenied)
	}

	now := s.now().UTC()
	p := sess.Participant(requester)
	if p == nil && sess.ActiveCount() >= sess.MaxParticipants {
		return nil, fmt.Errorf("%w: %d of %d seats taken", collab.ErrCapacityExceeded, sess.ActiveCount(), sess.MaxParticipants)
	}
	if p == nil {
		sess.Participants = append(sess.Participants, Participant{
			UserID: requester,
			Role:   RoleParticipant,
		})
		p = &sess.Participants[len(sess.Participants)-1]
	}
	p.IsActive = true
	p.JoinedAt = now
	p.LeftAt = nil
	p.LastActivity = now
	if err := s.repo.Update(ctx, sess); err != nil {
		return nil, err
	}
	s.rooms.Publish(room.SessionRoom(sess.ID), "", room.Event{
		Type:    room.EventUserJoined,
		Payload: room.UserJoined{UserID: requester},
	})
	return sess, nil
}

// Leave marks the requester inactive. A departing owner hands ownership to
// the earliest-joined remaining active participant; with nobody left the
// session ends.
func (s *Service) Leave(ctx context.Context, id, requester string) (*Session, error) {
	key := sessionKey(id)
	s.ops.lock(key)
	defer s.ops.unlock(key)
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	p := sess.Participant(requester)
	if p == nil || !p.IsActive {
		return nil, collab.Validationf("%s is not an active participant of session %s", requester, id)
	}
	left := s.departLocked(sess, p)
	if err := s.repo.Update(ctx, sess); err != nil {
		return nil, err
	}
	s.announceDeparture(sess, left)
	return sess, nil
}

// Disconnect is the cascade for a vanished connection: unregister presence,
// release the identity's locks, recompute session ownership, broadcast.
// Locks are released before ownership is recomputed so a departing owner's
// dangling locks never influence who becomes the new owner.
func (s *Service) Disconnect(ctx context.Context, connectionID string) error {
	entry, ok := s.reg.Unregister(connectionID)
	if !ok {
		return nil
	}
	s.rooms.LeaveAll(connectionID)

	released, err := s.locks.ReleaseAll(ctx, entry.UserID)
	if err != nil {
		logger.Errorf("disconnect %s: release locks for %s: %v", connectionID, entry.UserID, err)
	}
	for _, lk := range released {
		metrics.LocksReleased.Inc()
		s.rooms.Publish(entry.RoomID, "", room.Event{
			Type:    room.EventResourceUnlocked,
			Payload: room.ResourceUnlocked{ResourceID: lk.ResourceID, ReleasedBy: lk.LockedBy},
		})
	}

	docID, isDoc := room.DocumentIDFromRoom(entry.RoomID)
	if isDoc {
		sess, err := s.repo.GetActiveByDocument(ctx, docID)
		if err != nil {
			return fmt.Errorf("disconnect %s: session lookup: %w", connectionID, err)
		}
		if sess != nil {
			refreshed, left, err := s.departSession(ctx, sess.ID, entry.UserID)
			if err != nil {
				return fmt.Errorf("disconnect %s: persist departure: %w", connectionID, err)
			}
			if refreshed != nil {
				s.announceDeparture(refreshed, *left)
				return nil
			}
		}
	}
	s.rooms.Publish(entry.RoomID, "", room.Event{
		Type:    room.EventUserLeft,
		Payload: room.UserLeft{UserID: entry.UserID},
	})
	return nil
}

// ActiveForDocument returns the active session for a document, if any.
func (s *Service) ActiveForDocument(ctx context.Context, documentID string) (*Session, error) {
	return s.repo.GetActiveByDocument(ctx, documentID)
}

// UpdateCursor is the request/response fallback for clients without a
// realtime channel.
func (s *Service) UpdateCursor(ctx context.Context, id, requester string, cursor collab.Cursor) error {
	key := sessionKey(id)
	s.ops.lock(key)
	defer s.ops.unlock(key)
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	p := sess.Participant(requester)
	if p == nil || !p.IsActive {
		return collab.Validationf("%s is not an active participant of session %s", requester, id)
	}
	c := cursor
	p.Cursor = &c
	p.LastActivity = s.now().UTC()
	if err := s.repo.Update(ctx, sess); err != nil {
		return err
	}
	s.rooms.Publish(room.SessionRoom(sess.ID), "", room.Event{
		Type:    room.EventCursorUpdate,
		Payload: room.CursorUpdate{UserID: requester, Cursor: cursor},
	})
	return nil
}

// ExpireSweep ends every session whose TTL has passed. Safe to run
// concurrently with user operations; each candidate is re-read under its
// mutation lock before it is ended.
func (s *Service) ExpireSweep(ctx context.Context) (int, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	ended := 0
	for _, sess := range active {
		if !sess.Expired(now) {
			continue
		}
		expired, err := s.expireOne(ctx, sess.ID, now)
		if err != nil {
			logger.Errorf("expire sweep: session %s: %v", sess.ID, err)
			continue
		}
		if expired {
			ended++
		}
	}
	return ended, nil
}

func (s *Service) expireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	key := sessionKey(id)
	s.ops.lock(key)
	defer s.ops.unlock(key)
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if sess == nil || sess.Status != StatusActive || !sess.Expired(now) {
		return false, nil
	}
	sess.Status = StatusEnded
	sess.EndedAt = &now
	for i := range sess.Participants {
		if sess.Participants[i].IsActive {
			sess.Participants[i].IsActive = false
			sess.Participants[i].LeftAt = &now
		}
	}
	if err := s.repo.Update(ctx, sess); err != nil {
		return false, err
	}
	metrics.SessionsEnded.Inc()
	logger.Infof("session %s expired", sess.ID)
	return true, nil
}

func sessionKey(id string) string { return "session/" + id }

// departSession re-reads the session under its mutation lock and applies
// the departure for userID. Returns a nil session when the user is no
// longer an active participant of the current record.
func (s *Service) departSession(ctx context.Context, id, userID string) (*Session, *room.UserLeft, error) {
	key := sessionKey(id)
	s.ops.lock(key)
	defer s.ops.unlock(key)
	sess, err := s.repo.Get(ctx, id)
	if err != nil || sess == nil {
		return nil, nil, err
	}
	p := sess.Participant(userID)
	if p == nil || !p.IsActive {
		return nil, nil, nil
	}
	left := s.departLocked(sess, p)
	if err := s.repo.Update(ctx, sess); err != nil {
		return nil, nil, err
	}
	return sess, &left, nil
}

func (s *Service) load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, collab.Validationf("session id is required")
	}
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, collab.Validationf("unknown session %s", id)
	}
	if !sess.Usable(s.now()) {
		return nil, fmt.Errorf("%w: session %s", collab.ErrSessionEnded, id)
	}
	return sess, nil
}

func (s *Service) mayAccess(ctx context.Context, sess *Session, requester, joinToken string) (bool, error) {
	if requester != "" {
		if p := sess.Participant(requester); p != nil {
			return true, nil
		}
		ok, err := s.workflows.IsCollaborator(ctx, sess.DocumentID, requester)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return joinToken != "" && joinToken == sess.JoinToken, nil
}

// departLocked applies the leave effect to a record and returns the
// broadcast payload. Callers hold the session's mutation lock, then
// persist and announce.
func (s *Service) departLocked(sess *Session, p *Participant) room.UserLeft {
	now := s.now().UTC()
	wasOwner := p.Role == RoleOwner
	p.IsActive = false
	p.LeftAt = &now
	p.LastActivity = now

	left := room.UserLeft{UserID: p.UserID}
	if !wasOwner {
		return left
	}
	var next *Participant
	for i := range sess.Participants {
		c := &sess.Participants[i]
		if !c.IsActive {
			continue
		}
		if next == nil || c.JoinedAt.Before(next.JoinedAt) {
			next = c
		}
	}
	if next != nil {
		p.Role = RoleParticipant
		next.Role = RoleOwner
		left.NewOwnerID = next.UserID
		logger.Infof("session %s: ownership transferred %s -> %s", sess.ID, p.UserID, next.UserID)
		return left
	}
	sess.Status = StatusEnded
	sess.EndedAt = &now
	left.Ended = true
	metrics.SessionsEnded.Inc()
	logger.Infof("session %s ended: last active participant left", sess.ID)
	return left
}

func (s *Service) announceDeparture(sess *Session, left room.UserLeft) {
	ev := room.Event{Type: room.EventUserLeft, Payload: left}
	s.rooms.Publish(room.SessionRoom(sess.ID), "", ev)
	s.rooms.Publish(room.DocumentRoom(sess.DocumentID), "", ev)
}
