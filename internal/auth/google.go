package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// GoogleAuthURL is Google's OAuth 2.0 authorization endpoint.
const GoogleAuthURL = "https://accounts.google.com/o/oauth2/auth"

var googleScopes = []string{"openid", "profile", "email"}

// BrowserOpener shows a URL to the user.
type BrowserOpener func(url string) error

// GoogleConfig configures the Google implicit flow.
type GoogleConfig struct {
	ClientID string
	// RedirectURL is the local callback route receiving the token fragment.
	RedirectURL string
	// AuthURL overrides GoogleAuthURL.
	AuthURL string
	Open    BrowserOpener
}

// GoogleAuthenticate starts the Google implicit flow and returns the
// authorization URL. The token itself arrives later through the callback
// route, which hands it to LoginWithGoogle.
func (s *Session) GoogleAuthenticate() (string, error) {
	if s.google.ClientID == "" {
		return "", errors.New("google client ID not configured")
	}
	if s.google.RedirectURL == "" {
		return "", errors.New("google redirect URL not configured")
	}

	authURL := s.google.AuthURL
	if authURL == "" {
		authURL = GoogleAuthURL
	}

	cfg := &oauth2.Config{
		ClientID:    s.google.ClientID,
		Endpoint:    oauth2.Endpoint{AuthURL: authURL},
		RedirectURL: s.google.RedirectURL,
		Scopes:      googleScopes,
	}

	state := uuid.NewString()
	target := cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("response_type", "token"))

	s.mu.Lock()
	s.oauthState = state
	s.mu.Unlock()

	if s.google.Open != nil {
		if err := s.google.Open(target); err != nil {
			log.Warnf("Failed to open browser: %v", err)
		}
	}
	return target, nil
}

// ConsumeOAuthState checks the state echoed by the callback against the one
// issued by GoogleAuthenticate. A state is accepted at most once.
func (s *Session) ConsumeOAuthState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expected := s.oauthState
	s.oauthState = ""
	if expected == "" || state == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(state)) == 1
}

// OpenBrowser opens url in the default web browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}
