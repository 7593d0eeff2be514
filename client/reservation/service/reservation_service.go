package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"cleanmatch_client/client/common/gateway"
	cmnlog "cleanmatch_client/client/common/log"
	"cleanmatch_client/client/reservation/domain"
)

const (
	reservationsPath = "/reservations"

	availabilityWindowDays = 30

	fetchAvailabilityFallback = "Failed to fetch availability"
	fetchCleanerFallback      = "Failed to fetch cleaner reservations"
	fetchClientFallback       = "Failed to fetch client reservations"
	createFallbackMessage     = "Failed to create reservation"
	updateFallbackMessage     = "Failed to update reservation status"

	errNotAuthenticated = "User is not authenticated"
)

// Service caches the reservation list scoped to the logged-in identity and
// derives day-level availability from it.
type Service struct {
	mu           sync.RWMutex
	reservations []domain.Reservation
	loading      bool
	lastErr      string

	gw     *gateway.Client
	tokens gateway.TokenSource
}

func NewService(gw *gateway.Client, tokens gateway.TokenSource) *Service {
	return &Service{gw: gw, tokens: tokens}
}

// FetchForCleaner loads every reservation booked against one cleaner,
// regardless of who the viewer is. Feeds the availability calendar.
func (s *Service) FetchForCleaner(ctx context.Context, cleanerID string) error {
	return s.fetch(ctx, reservationsPath+"/"+cleanerID, "fetch_for_cleaner", fetchAvailabilityFallback)
}

// FetchCleanerView loads reservations where the logged-in identity is the
// cleaner; the server scopes the result from the bearer token.
func (s *Service) FetchCleanerView(ctx context.Context) error {
	return s.fetch(ctx, reservationsPath+"/cleaner", "fetch_cleaner_view", fetchCleanerFallback)
}

// FetchClientView is the client-side counterpart of FetchCleanerView.
func (s *Service) FetchClientView(ctx context.Context) error {
	return s.fetch(ctx, reservationsPath+"/client", "fetch_client_view", fetchClientFallback)
}

func (s *Service) fetch(ctx context.Context, path, action, fallback string) error {
	if err := s.requireToken(); err != nil {
		return err
	}
	s.begin()

	var reservations []domain.Reservation
	if err := s.gw.Get(ctx, path, &reservations); err != nil {
		return s.fail(action, err, fallback)
	}

	s.mu.Lock()
	s.reservations = reservations
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	cmnlog.Infof("event=reservation action=%s status=ok count=%d", action, len(reservations))
	return nil
}

// Create books a cleaner for a day and appends the server's echo. Callers
// wanting fresh availability re-fetch; the server's create response is the
// final arbiter when two clients race for the same day.
func (s *Service) Create(ctx context.Context, input domain.CreateInput) (domain.Reservation, error) {
	if err := s.requireToken(); err != nil {
		return domain.Reservation{}, err
	}
	s.begin()

	var created domain.Reservation
	if err := s.gw.Post(ctx, reservationsPath, input, &created); err != nil {
		return domain.Reservation{}, s.fail("create", err, createFallbackMessage)
	}

	s.mu.Lock()
	s.reservations = append(s.reservations, created)
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	cmnlog.Infof("event=reservation action=create status=ok reservation_id=%s date=%s", created.ID, created.Date)
	return created, nil
}

// UpdateStatus records the cleaner's accept/reject decision and replaces the
// cached record with the server's copy.
func (s *Service) UpdateStatus(ctx context.Context, reservationID string, status domain.Status) (domain.Reservation, error) {
	if !status.IsDecision() {
		return domain.Reservation{}, errors.New("status must be accepted or rejected")
	}
	if err := s.requireToken(); err != nil {
		return domain.Reservation{}, err
	}
	s.begin()

	var updated domain.Reservation
	payload := map[string]domain.Status{"status": status}
	if err := s.gw.Patch(ctx, reservationsPath+"/"+reservationID, payload, &updated); err != nil {
		return domain.Reservation{}, s.fail("update_status", err, updateFallbackMessage)
	}

	s.mu.Lock()
	for i := range s.reservations {
		if s.reservations[i].ID == updated.ID {
			s.reservations[i] = updated
			break
		}
	}
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	cmnlog.Infof("event=reservation action=update_status status=ok reservation_id=%s new_status=%s", updated.ID, updated.Status)
	return updated, nil
}

// Delete cancels a reservation. Unlike the other operations this one is
// best-effort: failures are logged, not stored in the error state.
func (s *Service) Delete(ctx context.Context, reservationID string) {
	if _, ok := s.tokens.Token(); !ok {
		cmnlog.Warnf("event=reservation action=delete status=skipped reason=unauthenticated reservation_id=%s", reservationID)
		return
	}

	if err := s.gw.Delete(ctx, reservationsPath+"/"+reservationID, nil); err != nil {
		cmnlog.Warnf("event=reservation action=delete status=failed reservation_id=%s error=%v", reservationID, err)
		return
	}

	s.mu.Lock()
	kept := s.reservations[:0]
	for _, reservation := range s.reservations {
		if reservation.ID != reservationID {
			kept = append(kept, reservation)
		}
	}
	s.reservations = kept
	s.mu.Unlock()
	cmnlog.Infof("event=reservation action=delete status=ok reservation_id=%s", reservationID)
}

// Availability derives the look-ahead calendar from the cached reservations:
// a day is unavailable when any cached reservation falls on it, time-of-day
// ignored. This is a client-side heuristic, not a slot lock.
func (s *Service) Availability(from time.Time) []domain.DayAvailability {
	s.mu.RLock()
	booked := map[string]struct{}{}
	for _, reservation := range s.reservations {
		if day, ok := reservation.Day(); ok {
			booked[day.Format("2006-01-02")] = struct{}{}
		}
	}
	s.mu.RUnlock()

	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	window := make([]domain.DayAvailability, 0, availabilityWindowDays)
	for i := 0; i < availabilityWindowDays; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		_, taken := booked[date]
		window = append(window, domain.DayAvailability{Date: date, Available: !taken})
	}
	return window
}

func (s *Service) Reservations() []domain.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Reservation, len(s.reservations))
	copy(out, s.reservations)
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
	cmnlog.Warnf("event=reservation action=%s status=failed error=%v", action, err)
	return errors.New(message)
}
