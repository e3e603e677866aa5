package api

import (
	"net/http"
	"time"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/auth"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type callbackTokenRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
	State       string `json:"state"`
}

// callbackPage moves the token out of the URL fragment, which never reaches
// the server, and posts it back.
const callbackPage = `<!DOCTYPE html>
<html>
<head><title>todoctl</title></head>
<body>
<h1 id="title">Completing sign-in...</h1>
<p id="detail"></p>
<script>
(function () {
  var params = new URLSearchParams(window.location.hash.substring(1));
  var token = params.get("access_token");
  var title = document.getElementById("title");
  var detail = document.getElementById("detail");
  if (!token) {
    title.textContent = "Login Failed";
    detail.textContent = params.get("error") || "No access token was returned.";
    return;
  }
  fetch("/callback/token", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({access_token: token, state: params.get("state") || ""})
  }).then(function (resp) {
    if (resp.ok) {
      title.textContent = "Login Successful";
      detail.textContent = "You can close this window.";
    } else {
      title.textContent = "Login Failed";
      detail.textContent = "Please check the terminal output.";
    }
  });
  history.replaceState(null, "", window.location.pathname);
})();
</script>
</body>
</html>
`

func stateResponse(state auth.SessionState) gin.H {
	return gin.H{
		"is_authenticated": state.IsAuthenticated,
		"error_log_in":     state.ErrorLogIn,
		"error_message":    state.ErrorMessage,
		"error_register":   state.ErrorRegister,
	}
}

func (s *Server) statusHandler(c *gin.Context) {
	resp := stateResponse(s.session.State())

	creds, err := s.session.Store().Load()
	if err != nil {
		log.Warnf("Failed to read credentials: %v", err)
	}
	if creds != nil {
		resp["token_type"] = creds.Get("token_type").String()
		if expiry, ok := creds.AccessExpiry(); ok {
			resp["expires_at"] = expiry.UTC().Format(time.RFC3339)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	s.session.Login(c.Request.Context(), req.Username, req.Password)

	state := s.session.State()
	if state.ErrorLogIn {
		c.JSON(http.StatusUnauthorized, stateResponse(state))
		return
	}
	c.JSON(http.StatusOK, stateResponse(state))
}

func (s *Server) registerHandler(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	if !s.session.Register(c.Request.Context(), req) {
		c.JSON(http.StatusBadRequest, stateResponse(s.session.State()))
		return
	}
	c.JSON(http.StatusCreated, stateResponse(s.session.State()))
}

func (s *Server) logoutHandler(c *gin.Context) {
	s.session.Logout()
	c.JSON(http.StatusOK, stateResponse(s.session.State()))
}

func (s *Server) clearErrorHandler(c *gin.Context) {
	s.session.ClearError()
	c.JSON(http.StatusOK, stateResponse(s.session.State()))
}

func (s *Server) googleHandler(c *gin.Context) {
	target, err := s.session.GoogleAuthenticate()
	if err != nil {
		abortWithError(c, http.StatusServiceUnavailable, "configuration_error", err.Error())
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (s *Server) callbackPageHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(callbackPage))
}

func (s *Server) callbackTokenHandler(c *gin.Context) {
	var req callbackTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	if !s.session.ConsumeOAuthState(req.State) {
		log.Warn("Rejected Google callback with unknown state")
		abortWithError(c, http.StatusForbidden, "authentication_error", "Invalid state parameter")
		return
	}

	err := s.session.LoginWithGoogle(c.Request.Context(), req.AccessToken)
	s.notifyGoogleLogin(err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse(s.session.State()))
}
