// Package profile holds the in-memory mirror of the user's allergy list.
// Mutations are local-only until Persist pushes the whole list to the
// service.
package profile

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/example/foodscan/internal/session"
	"github.com/example/foodscan/internal/transport"
)

// Store mirrors the user's allergy list. Add and Remove touch only local
// state; Persist replaces the server-side list and, on success, merges the
// result back into the session profile.
type Store struct {
	client  *transport.Client
	session *session.Manager
	log     *zap.Logger

	mu        sync.Mutex
	allergies []session.Allergy
}

// NewStore creates an allergy store seeded from the session's current
// profile.
func NewStore(client *transport.Client, sess *session.Manager, log *zap.Logger) *Store {
	s := &Store{
		client:  client,
		session: sess,
		log:     log,
	}
	s.SyncFromSession()
	return s
}

// SyncFromSession re-seeds the local list from the session profile. Call
// after login or register; with no profile the list becomes empty.
func (s *Store) SyncFromSession() {
	var allergies []session.Allergy
	if user := s.session.User(); user != nil {
		allergies = user.Allergies
	}
	s.mu.Lock()
	s.allergies = allergies
	s.mu.Unlock()
}

// Add appends the candidate with its name trimmed and case-folded. Adding a
// name already in the list (case-folded) is a no-op, as is an empty name or
// an unknown severity. Reports whether the list changed. Local-only.
func (s *Store) Add(candidate session.Allergy) bool {
	name := strings.ToLower(strings.TrimSpace(candidate.Name))
	if name == "" || !session.ValidSeverity(candidate.Severity) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.allergies {
		if a.Name == name {
			return false
		}
	}
	s.allergies = append(s.allergies, session.Allergy{
		Name:     name,
		Severity: candidate.Severity,
		Notes:    candidate.Notes,
	})
	return true
}

// Remove filters out the entry with the given (already-normalized) name.
// Reports whether an entry was removed. Local-only.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.allergies {
		if a.Name == name {
			s.allergies = append(s.allergies[:i], s.allergies[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a copy of the current local list.
func (s *Store) List() []session.Allergy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]session.Allergy(nil), s.allergies...)
}

type persistRequest struct {
	Allergies []session.Allergy `json:"allergies"`
}

// Persist replaces the server-side allergy list with the current local list
// (full replace, not a diff). On success the list is merged into the session
// profile. On failure the local list is left untouched; it was never
// considered saved, so there is nothing to roll back.
func (s *Store) Persist(ctx context.Context) error {
	list := s.List()
	if err := s.client.PostJSON(ctx, "/profile/allergies", persistRequest{Allergies: list}, nil); err != nil {
		return err
	}
	s.session.SetAllergies(list)
	s.log.Debug("allergy profile persisted", zap.Int("count", len(list)))
	return nil
}
