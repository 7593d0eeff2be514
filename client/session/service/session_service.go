package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cleanmatch_client/client/common/gateway"
	"cleanmatch_client/client/common/keystore"
	cmnlog "cleanmatch_client/client/common/log"
	"cleanmatch_client/client/session/domain"
)

const (
	loginPath  = "/auth/login"
	signupPath = "/auth/signUp"

	loginFallbackMessage  = "Login failed"
	signupFallbackMessage = "Signup failed"
)

// ChannelManager is the slice of the realtime channel the session store may
// drive. Only the session's token lifecycle opens or closes the channel.
type ChannelManager interface {
	Connect(ctx context.Context, token string) error
	Disconnect()
}

// ChangeListener is invoked after every session transition: with the profile
// on login/signup/checkAuth success, with nil on logout.
type ChangeListener func(profile *domain.Identity)

// Service holds the authentication state machine and owns the persisted
// token and profile.
type Service struct {
	mu       sync.RWMutex
	state    domain.Session
	store    *keystore.Store
	channel  ChannelManager
	gw       *gateway.Client
	onChange ChangeListener
}

// storedProfile mirrors the persisted profile envelope.
type storedProfile struct {
	User domain.Identity `json:"user"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

func NewService(store *keystore.Store, channel ChannelManager) *Service {
	return &Service{
		state:   domain.Session{Status: domain.StatusChecking},
		store:   store,
		channel: channel,
	}
}

// UseGateway attaches the API client after construction; the gateway itself
// reads the bearer token back from this service.
func (s *Service) UseGateway(gw *gateway.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gw = gw
}

func (s *Service) OnChange(listener ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = listener
}

// Token implements gateway.TokenSource.
func (s *Service) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Token == "" {
		return "", false
	}
	return s.state.Token, true
}

func (s *Service) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.state
	if s.state.Profile != nil {
		profile := *s.state.Profile
		snap.Profile = &profile
	}
	return snap
}

// CheckAuth restores a persisted session without touching the network.
// Anything wrong with the persisted data (missing, corrupt, expired) resolves
// to anonymous; persistence errors never fail the app.
func (s *Service) CheckAuth(ctx context.Context) {
	s.setChecking()

	token, ok, err := s.store.Get(ctx, keystore.KeyAuthToken)
	if err != nil || !ok || strings.TrimSpace(token) == "" {
		if err != nil {
			cmnlog.Warnf("event=session action=check_auth status=storage_error error=%v", err)
		}
		s.setAnonymous("")
		return
	}

	rawProfile, ok, err := s.store.Get(ctx, keystore.KeyProfile)
	if err != nil || !ok {
		s.clearPersisted(ctx)
		s.setAnonymous("")
		return
	}
	var stored storedProfile
	if err := json.Unmarshal([]byte(rawProfile), &stored); err != nil || stored.User.ID == "" {
		s.clearPersisted(ctx)
		s.setAnonymous("")
		return
	}

	if tokenExpired(token) {
		cmnlog.Infof("event=session action=check_auth status=token_expired user_id=%s", stored.User.ID)
		s.clearPersisted(ctx)
		s.setAnonymous("")
		return
	}

	s.setAuthenticated(token, stored.User)
	cmnlog.Infof("event=session action=check_auth status=ok user_id=%s role=%s", stored.User.ID, stored.User.PrimaryRole())
	// Listeners bind their channel handlers before the socket opens.
	s.notify(s.profileCopy())
	s.connectChannel(ctx, token)
}

func (s *Service) Login(ctx context.Context, email, password string) error {
	s.setLoading()

	var resp authResponse
	payload := map[string]string{"email": email, "password": password}
	if err := s.gw.Post(ctx, loginPath, payload, &resp); err != nil {
		return s.failAuth(ctx, "login", err, loginFallbackMessage)
	}
	return s.completeAuth(ctx, "login", resp)
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Location string
	Avatar   *gateway.ImagePart
}

func (s *Service) Signup(ctx context.Context, input SignupInput) error {
	s.setLoading()

	fields := map[string]string{
		"name":     input.Name,
		"email":    input.Email,
		"password": input.Password,
		"phone":    input.Phone,
		"location": input.Location,
	}
	var resp authResponse
	if err := s.gw.PostForm(ctx, signupPath, fields, input.Avatar, &resp); err != nil {
		return s.failAuth(ctx, "signup", err, signupFallbackMessage)
	}
	return s.completeAuth(ctx, "signup", resp)
}

// Logout clears the session synchronously and removes the persisted
// credentials. The server is not told.
func (s *Service) Logout() {
	s.mu.Lock()
	userID := ""
	if s.state.Profile != nil {
		userID = s.state.Profile.ID
	}
	s.state = domain.Session{Status: domain.StatusAnonymous}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.clearPersisted(ctx)

	if s.channel != nil {
		s.channel.Disconnect()
	}
	cmnlog.Infof("event=session action=logout status=ok user_id=%s", userID)
	s.notify(nil)
}

func (s *Service) completeAuth(ctx context.Context, action string, resp authResponse) error {
	if err := s.persist(ctx, resp); err != nil {
		cmnlog.Errorf("event=session action=%s status=persist_failed error=%v", action, err)
		s.setAnonymous(fallbackFor(action))
		return &gateway.APIError{Status: 0, Message: fallbackFor(action)}
	}

	s.setAuthenticated(resp.Token, resp.User)
	cmnlog.Infof("event=session action=%s status=ok user_id=%s role=%s", action, resp.User.ID, resp.User.PrimaryRole())
	s.notify(s.profileCopy())
	s.connectChannel(ctx, resp.Token)
	return nil
}

func (s *Service) failAuth(ctx context.Context, action string, err error, fallback string) error {
	message := gateway.Message(err, fallback)
	s.setAnonymous(message)
	cmnlog.Warnf("event=session action=%s status=failed error=%v", action, err)
	return err
}

func (s *Service) persist(ctx context.Context, resp authResponse) error {
	if err := s.store.Put(ctx, keystore.KeyAuthToken, resp.Token); err != nil {
		return err
	}
	raw, err := json.Marshal(storedProfile{User: resp.User})
	if err != nil {
		return err
	}
	return s.store.Put(ctx, keystore.KeyProfile, string(raw))
}

func (s *Service) clearPersisted(ctx context.Context) {
	if err := s.store.Delete(ctx, keystore.KeyAuthToken); err != nil {
		cmnlog.Warnf("event=session action=clear_credentials status=failed key=%s error=%v", keystore.KeyAuthToken, err)
	}
	if err := s.store.Delete(ctx, keystore.KeyProfile); err != nil {
		cmnlog.Warnf("event=session action=clear_credentials status=failed key=%s error=%v", keystore.KeyProfile, err)
	}
}

func (s *Service) connectChannel(ctx context.Context, token string) {
	if s.channel == nil {
		return
	}
	if err := s.channel.Connect(ctx, token); err != nil {
		// The session stays authenticated; chat simply has no live channel
		// until the next token change.
		cmnlog.Warnf("event=session action=channel_connect status=failed error=%v", err)
	}
}

func (s *Service) setChecking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.Session{Status: domain.StatusChecking, Loading: true}
}

func (s *Service) setLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = true
	s.state.LastError = ""
}

func (s *Service) setAuthenticated(token string, profile domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.Session{
		Token:   token,
		Profile: &profile,
		Status:  domain.StatusAuthenticated,
	}
}

func (s *Service) setAnonymous(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.Session{Status: domain.StatusAnonymous, LastError: message}
}

func (s *Service) profileCopy() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Profile == nil {
		return nil
	}
	profile := *s.state.Profile
	return &profile
}

func (s *Service) notify(profile *domain.Identity) {
	s.mu.RLock()
	listener := s.onChange
	s.mu.RUnlock()
	if listener != nil {
		listener(profile)
	}
}

func fallbackFor(action string) string {
	if action == "signup" {
		return signupFallbackMessage
	}
	return loginFallbackMessage
}

// tokenExpired reports whether token is a JWT whose exp claim is in the past.
// Tokens that do not parse as JWTs are treated as opaque and kept.
func tokenExpired(token string) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

