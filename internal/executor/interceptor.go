package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// TokenRefresher is the part of the session the refresh policy depends on.
type TokenRefresher interface {
	// RefreshAccessToken returns a usable access token after rejected was
	// refused by the server.
	RefreshAccessToken(ctx context.Context, rejected string) (string, error)
	// ForceLogout drops the session after an unrecoverable auth failure.
	ForceLogout()
}

// RefreshPolicy handles expired credentials. A 401 triggers one refresh and
// one resend of the original request; a failure on the refresh endpoint
// itself ends the session.
type RefreshPolicy struct {
	refresher   TokenRefresher
	refreshPath string
}

// NewRefreshPolicy creates a policy that refreshes through refresher and
// treats any request whose path contains refreshPath as the refresh call.
func NewRefreshPolicy(refresher TokenRefresher, refreshPath string) *RefreshPolicy {
	return &RefreshPolicy{
		refresher:   refresher,
		refreshPath: strings.Trim(refreshPath, "/"),
	}
}

// Intercept implements Interceptor.
func (p *RefreshPolicy) Intercept(ctx context.Context, req *Request, err error, send Sender) (*Response, error) {
	if p.isRefreshRequest(req) {
		log.Warnf("Refresh endpoint failed, logging out: %v", err)
		p.refresher.ForceLogout()
		return nil, err
	}

	statusErr, ok := AsStatusError(err)
	if !ok || statusErr.StatusCode != http.StatusUnauthorized || req.Anonymous || req.retried {
		return nil, err
	}

	req.retried = true
	log.Debugf("Received 401 for %s %s, refreshing access token", req.Method, req.Path)

	token, refreshErr := p.refresher.RefreshAccessToken(ctx, req.BearerToken())
	if refreshErr != nil {
		return nil, fmt.Errorf("refresh after 401 on %s: %w", req.Path, refreshErr)
	}

	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return send(ctx, req)
}

func (p *RefreshPolicy) isRefreshRequest(req *Request) bool {
	return p.refreshPath != "" && strings.Contains(req.Path, p.refreshPath)
}
