package api

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/auth"
	"github.com/dtsarev/minichat/internal/service"
)

const (
	sessionTTL     = 24 * time.Hour
	stateCookie    = "oauth_state"
	stateCookieTTL = 600 // seconds
)

// AuthHandler runs the Google login flow: the only public endpoints.
// The provider authenticates; we find-or-create the account and hand out
// a session token.
type AuthHandler struct {
	provider  *auth.GoogleProvider
	identity  *service.IdentityService
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthHandler(provider *auth.GoogleProvider, identity *service.IdentityService, jwtSecret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		provider:  provider,
		identity:  identity,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// Login handles GET /v1/auth/google/login
func (h *AuthHandler) Login(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	// The state round-trips through a short-lived cookie and is checked
	// on the callback.
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, stateCookieTTL, "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, h.provider.LoginURL(state))
}

type authResponse struct {
	Token string `json:"token"`
}

// Callback handles GET /v1/auth/google/callback
func (h *AuthHandler) Callback(c *gin.Context) {
	expected, err := c.Cookie(stateCookie)
	if err != nil || expected == "" || c.Query("state") != expected {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "state mismatch"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing code"})
		return
	}

	identity, err := h.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("oauth exchange failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login failed"})
		return
	}

	user, err := h.identity.FindOrCreate(c.Request.Context(), identity.ProviderID, identity.Email)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, h.jwtSecret, sessionTTL)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token})
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
