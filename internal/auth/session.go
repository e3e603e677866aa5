package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/analytics"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/executor"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// Routes the session navigates to after an action completes.
const (
	RouteHome  = "Home"
	RouteLogin = "Authorization"
)

// User-facing messages.
const (
	IncorrectCredentialsMessage = "Incorrect username/email or password"
	RegistrationFailedMessage   = "Registration failed, please try again"
)

const refreshFlightKey = "refresh"

// Navigator moves the user between screens.
type Navigator interface {
	Navigate(route string)
	// Reload discards all in-memory application state.
	Reload()
}

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}
func (nopNavigator) Reload()         {}

// SessionConfig configures a Session.
type SessionConfig struct {
	Client    *executor.Client
	Store     CredentialStore
	Tracker   analytics.Tracker
	Navigator Navigator
	Google    GoogleConfig
}

// Session owns the authentication state machine. It is the only writer of
// the credential store.
type Session struct {
	client    *executor.Client
	store     CredentialStore
	tracker   analytics.Tracker
	navigator Navigator
	google    GoogleConfig

	mu    sync.RWMutex
	state SessionState
	// generation changes on every logout so refreshes started before it
	// cannot write their result afterwards.
	generation uint64
	oauthState string

	refreshGroup singleflight.Group
}

// NewSession creates a session in the unauthenticated state. The caller is
// expected to install Policy() on the client.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		client:    cfg.Client,
		store:     cfg.Store,
		tracker:   cfg.Tracker,
		navigator: cfg.Navigator,
		google:    cfg.Google,
	}
	if s.store == nil {
		s.store = NewMemoryStore()
	}
	if s.tracker == nil {
		s.tracker = analytics.LogTracker{}
	}
	if s.navigator == nil {
		s.navigator = nopNavigator{}
	}
	return s
}

// Policy returns the refresh stage to install on the session's client.
func (s *Session) Policy() *executor.RefreshPolicy {
	return executor.NewRefreshPolicy(s, RefreshPath)
}

// Store returns the credential store backing the session.
func (s *Session) Store() CredentialStore {
	return s.store
}

// Tracker returns the analytics tracker events are sent to.
func (s *Session) Tracker() analytics.Tracker {
	return s.tracker
}

// State returns a snapshot of the session state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether the session holds a credential.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// Restore re-derives IsAuthenticated from the credential store.
func (s *Session) Restore() bool {
	creds, err := s.store.Load()
	if err != nil {
		log.Warnf("Failed to load stored credentials: %v", err)
	}
	present := err == nil && creds != nil

	s.mu.Lock()
	s.state.IsAuthenticated = present
	s.mu.Unlock()
	return present
}

// Login authenticates with a username and password. Failures are recorded
// in the session state rather than returned.
func (s *Session) Login(ctx context.Context, username, password string) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	resp, err := s.client.Do(ctx, &executor.Request{
		Method: http.MethodPost,
		Path:   LoginPath,
		Body:   []byte(form.Encode()),
		Header: http.Header{
			"Accept":       {"application/json"},
			"Content-Type": {"application/x-www-form-urlencoded"},
		},
		Anonymous: true,
	})
	if err == nil {
		err = s.establish(resp.Body)
	}
	if err != nil {
		log.Debugf("Login failed: %v", err)
		message := IncorrectCredentialsMessage
		if executor.IsTransportError(err) {
			message = err.Error()
		}
		s.mu.Lock()
		s.state.ErrorLogIn = true
		s.state.ErrorMessage = message
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.state.ErrorLogIn = false
	s.state.ErrorMessage = ""
	s.mu.Unlock()

	log.Infof("Logged in as %s", username)
	s.navigator.Navigate(RouteHome)
	s.tracker.Track(ctx, analytics.UserEvent(analytics.UserLoggedIn))
}

// LoginWithGoogle exchanges a Google access token for an API credential.
// Unlike Login, failures are returned to the caller.
func (s *Session) LoginWithGoogle(ctx context.Context, accessToken string) error {
	body, err := json.Marshal(googleLoginRequest{AccessToken: accessToken})
	if err != nil {
		return fmt.Errorf("marshal google login request: %w", err)
	}

	resp, err := s.client.Do(ctx, &executor.Request{
		Method:    http.MethodPost,
		Path:      GoogleLoginPath,
		Body:      body,
		Header:    http.Header{"Content-Type": {"application/json"}},
		Anonymous: true,
	})
	if err != nil {
		log.Errorf("Error while authenticating with Google: %v", err)
		return fmt.Errorf("google login: %w", err)
	}
	if err := s.establish(resp.Body); err != nil {
		log.Errorf("Error while authenticating with Google: %v", err)
		return fmt.Errorf("google login: %w", err)
	}

	s.tracker.Track(ctx, analytics.UserEvent(analytics.UserGoogleLogIn))
	return nil
}

// Register creates an account and reports whether it succeeded. On success
// the user is sent to the login screen; on failure ErrorRegister carries the
// server's explanation.
func (s *Session) Register(ctx context.Context, payload RegisterRequest) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		s.setRegisterError(err.Error())
		return false
	}

	resp, err := s.client.Do(ctx, &executor.Request{
		Method:    http.MethodPost,
		Path:      RegisterPath,
		Body:      body,
		Header:    http.Header{"Content-Type": {"application/json"}},
		Anonymous: true,
	})
	if err != nil {
		log.Debugf("Registration failed: %v", err)
		s.setRegisterError(registrationError(err))
		return false
	}

	log.Infof("User %s has been successfully created!", gjson.GetBytes(resp.Body, "username").String())
	s.navigator.Navigate(RouteLogin)
	s.tracker.Track(ctx, analytics.UserEvent(analytics.UserRegistered))
	return true
}

// Logout drops the credential, resets the session state and reloads the
// application. In-flight requests are not cancelled.
func (s *Session) Logout() {
	s.mu.Lock()
	s.generation++
	if err := s.store.Clear(); err != nil {
		log.Warnf("Failed to clear credentials: %v", err)
	}
	s.state = SessionState{}
	s.oauthState = ""
	s.mu.Unlock()

	log.Info("Logged out")
	s.navigator.Reload()
}

// ForceLogout implements executor.TokenRefresher.
func (s *Session) ForceLogout() {
	s.Logout()
}

// ClearError resets the login error flag. The register error and the login
// error message are left alone.
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ErrorLogIn = false
}

// RefreshToken exchanges the stored refresh token for a new token pair and
// returns the new access token.
func (s *Session) RefreshToken(ctx context.Context) (string, error) {
	return s.RefreshAccessToken(ctx, "")
}

// RefreshAccessToken implements executor.TokenRefresher. Concurrent callers
// share a single refresh call. When rejected is set and the stored access
// token already differs from it, the stored token is returned without
// contacting the server.
func (s *Session) RefreshAccessToken(ctx context.Context, rejected string) (string, error) {
	ch := s.refreshGroup.DoChan(refreshFlightKey, func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx), rejected)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Session) refresh(ctx context.Context, rejected string) (string, error) {
	s.mu.RLock()
	generation := s.generation
	s.mu.RUnlock()

	creds, err := s.store.Load()
	if err != nil {
		return "", fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil {
		return "", ErrNotAuthenticated
	}
	if rejected != "" && creds.AccessToken() != rejected {
		log.Debug("Access token was already refreshed, reusing stored token")
		return creds.AccessToken(), nil
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: creds.RefreshToken()})
	if err != nil {
		return "", fmt.Errorf("marshal refresh request: %w", err)
	}

	resp, err := s.client.Do(ctx, &executor.Request{
		Method:    http.MethodPost,
		Path:      RefreshPath,
		Body:      body,
		Header:    http.Header{"Content-Type": {"application/json"}},
		Anonymous: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	refreshToken := gjson.GetBytes(resp.Body, "refresh_token").String()
	if refreshToken == "" {
		refreshToken = creds.RefreshToken()
	}
	updated, err := creds.WithTokens(gjson.GetBytes(resp.Body, "access_token").String(), refreshToken)
	if err != nil {
		log.Warnf("Refresh response carried no access token, logging out")
		s.Logout()
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return "", fmt.Errorf("%w: session ended during refresh", ErrNotAuthenticated)
	}
	if err := s.store.Save(updated); err != nil {
		return "", fmt.Errorf("save refreshed credentials: %w", err)
	}
	s.state.IsAuthenticated = true

	log.Debug("Token refreshed successfully")
	return updated.AccessToken(), nil
}

// establish stores a token response as the current credential.
func (s *Session) establish(body []byte) error {
	creds, err := NewCredential(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	s.state.IsAuthenticated = true
	return nil
}

func (s *Session) setRegisterError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ErrorRegister = message
}

// registrationError extracts the user-facing reason from a failed
// registration. The server normally sends {"detail": "..."}; validation
// failures arrive as a list of {"msg": "..."} objects.
func registrationError(err error) string {
	statusErr, ok := executor.AsStatusError(err)
	if !ok {
		if executor.IsTransportError(err) {
			return err.Error()
		}
		return RegistrationFailedMessage
	}

	detail := gjson.GetBytes(statusErr.Body, "detail")
	switch {
	case detail.Type == gjson.String && strings.TrimSpace(detail.String()) != "":
		return detail.String()
	case detail.IsArray():
		var msgs []string
		for _, item := range detail.Array() {
			if msg := item.Get("msg").String(); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return RegistrationFailedMessage
}

// IsRefreshFailure reports whether err ended the session.
func IsRefreshFailure(err error) bool {
	return errors.Is(err, ErrRefreshFailed)
}

var _ executor.TokenRefresher = (*Session)(nil)
