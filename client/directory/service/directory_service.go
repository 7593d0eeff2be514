package service

import (
	"context"
	"errors"
	"sync"

	"cleanmatch_client/client/common/gateway"
	cmnlog "cleanmatch_client/client/common/log"
	"cleanmatch_client/client/directory/domain"
)

const (
	usersPath = "/user"

	fetchFallbackMessage  = "Failed to fetch cleaners"
	createFallbackMessage = "Failed to create cleaner"
	updateFallbackMessage = "Failed to update cleaner"
	deleteFallbackMessage = "Failed to delete cleaner"

	errNotAuthenticated = "User is not authenticated"
)

// Service caches the cleaner directory. Reads dominate: the whole collection
// is replaced on fetch and patched in place by id on create/update/delete.
type Service struct {
	mu       sync.RWMutex
	cleaners []domain.Cleaner
	loading  bool
	lastErr  string

	gw     *gateway.Client
	tokens gateway.TokenSource
}

func NewService(gw *gateway.Client, tokens gateway.TokenSource) *Service {
	return &Service{gw: gw, tokens: tokens}
}

// FetchAll replaces the cached collection with the server's response. On
// failure the previous cache is preserved.
func (s *Service) FetchAll(ctx context.Context) error {
	if err := s.requireToken(); err != nil {
		return err
	}
	s.begin()

	var cleaners []domain.Cleaner
	if err := s.gw.Get(ctx, usersPath, &cleaners); err != nil {
		return s.fail("fetch_all", err, fetchFallbackMessage)
	}

	s.mu.Lock()
	s.cleaners = cleaners
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	cmnlog.Infof("event=directory action=fetch_all status=ok count=%d", len(cleaners))
	return nil
}

func (s *Service) Create(ctx context.Context, input domain.CleanerInput, image *gateway.ImagePart) (domain.Cleaner, error) {
	if err := s.requireToken(); err != nil {
		return domain.Cleaner{}, err
	}
	s.begin()

	var created domain.Cleaner
	if err := s.gw.PostForm(ctx, usersPath, input.Fields(), image, &created); err != nil {
		return domain.Cleaner{}, s.fail("create", err, createFallbackMessage)
	}

	s.mu.Lock()
	s.cleaners = append(s.cleaners, created)
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	cmnlog.Infof("event=directory action=create status=ok cleaner_id=%s", created.ID)
	return created, nil
}

// Update sends the changed fields and replaces the cached record with the
// server's copy. A response for an id no longer in the cache is dropped
// without refetching.
func (s *Service) Update(ctx context.Context, id string, input domain.CleanerInput, image *gateway.ImagePart) (domain.Cleaner, error) {
	if err := s.requireToken(); err != nil {
		return domain.Cleaner{}, err
	}
	s.begin()

	var updated domain.Cleaner
	if err := s.gw.PatchForm(ctx, usersPath+"/"+id, input.Fields(), image, &updated); err != nil {
		return domain.Cleaner{}, s.fail("update", err, updateFallbackMessage)
	}

	s.mu.Lock()
	for i := range s.cleaners {
		if s.cleaners[i].ID == updated.ID {
			s.cleaners[i] = updated
			break
		}
	}
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	cmnlog.Infof("event=directory action=update status=ok cleaner_id=%s", updated.ID)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.requireToken(); err != nil {
		return err
	}
	s.begin()

	if err := s.gw.Delete(ctx, usersPath+"/"+id, nil); err != nil {
		return s.fail("delete", err, deleteFallbackMessage)
	}

	s.mu.Lock()
	kept := s.cleaners[:0]
	for _, cleaner := range s.cleaners {
		if cleaner.ID != id {
			kept = append(kept, cleaner)
		}
	}
	s.cleaners = kept
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	cmnlog.Infof("event=directory action=delete status=ok cleaner_id=%s", id)
	return nil
}

func (s *Service) Cleaners() []domain.Cleaner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Cleaner, len(s.cleaners))
	copy(out, s.cleaners)
	return out
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Service) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Service) requireToken() error {
	if _, ok := s.tokens.Token(); !ok {
		s.mu.Lock()
		s.lastErr = errNotAuthenticated
		s.mu.Unlock()
		return errors.New(errNotAuthenticated)
	}
	return nil
}

func (s *Service) begin() {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Service) fail(action string, err error, fallback string) error {
	message := gateway.Message(err, fallback)
	s.mu.Lock()
	s.loading = false
	s.lastErr = message
	s.mu.Unlock()
	cmnlog.Warnf("event=directory action=%s status=failed error=%v", action, err)
	return errors.New(message)
}
