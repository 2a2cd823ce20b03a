package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"design-portal-backend/internal/identity"
	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
)

const resetAcknowledgement = "If an account exists for that email, a password reset link has been sent."

type AuthHandler struct {
	provider identity.Provider
	google   *identity.GoogleVerifier
	issuer   *identity.TokenIssuer
	profiles *services.ProfileService
}

// NewAuthHandler wires the identity flows. google may be nil when Google
// sign-in is not configured.
func NewAuthHandler(provider identity.Provider, google *identity.GoogleVerifier, issuer *identity.TokenIssuer, profiles *services.ProfileService) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		google:   google,
		issuer:   issuer,
		profiles: profiles,
	}
}

// Signup godoc
// @Summary     Create an account
// @Description Registers an e-mail/password account and creates the customer profile.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.SignupRequest true "Sign-up details"
// @Success     201 {object} models.AuthResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Password != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Passwords do not match"})
		return
	}

	res, err := h.provider.SignUp(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "sign up failed",
			Message: err.Error(),
		})
		return
	}

	h.respondSignedIn(c, http.StatusCreated, res)
}

// Login godoc
// @Summary     Sign in with e-mail and password
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.LoginRequest true "Credentials"
// @Success     200 {object} models.AuthResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.provider.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: identity.ErrInvalidCredentials.Error()})
			return
		}
		respondError(c, err, "sign in")
		return
	}

	h.respondSignedIn(c, http.StatusOK, res)
}

// Google godoc
// @Summary     Sign in with Google
// @Description Exchanges a Google ID token for an API access token.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.GoogleSignInRequest true "Google ID token"
// @Success     200 {object} models.AuthResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /auth/google [post]
func (h *AuthHandler) Google(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "google sign-in is not configured"})
		return
	}

	var req models.GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id, err := h.google.Verify(c.Request.Context(), req.IDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid token", Message: "google sign-in failed"})
		return
	}

	token, err := h.issuer.Issue(*id)
	if err != nil {
		respondError(c, err, "issue token")
		return
	}

	h.respondSignedIn(c, http.StatusOK, &identity.Result{Identity: *id, AccessToken: token})
}

// PasswordReset godoc
// @Summary     Request a password reset e-mail
// @Description Always answers with the same acknowledgement, whether or not the account exists.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.PasswordResetRequest true "Account e-mail"
// @Success     200 {object} models.AckResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /auth/password-reset [post]
func (h *AuthHandler) PasswordReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Please enter a valid email address"})
		return
	}

	if err := h.provider.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		slog.WarnContext(c.Request.Context(), "while sending password reset", slog.Any("err", err))
	}
	c.JSON(http.StatusOK, models.AckResponse{Status: "ok", Message: resetAcknowledgement})
}

// Logout godoc
// @Summary     Sign out
// @Tags        auth
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.AckResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	// Tokens minted for Google identities are unknown to the provider, so a
	// failed revoke is not the caller's problem.
	if err := h.provider.SignOut(c.Request.Context(), s.Token); err != nil {
		slog.InfoContext(c.Request.Context(), "provider sign out failed",
			slog.String("user_id", s.UID), slog.Any("err", err))
	}
	c.JSON(http.StatusOK, models.AckResponse{Status: "ok"})
}

func (h *AuthHandler) respondSignedIn(c *gin.Context, status int, res *identity.Result) {
	user, err := h.profiles.Ensure(c.Request.Context(), res.Identity)
	if err != nil {
		respondError(c, err, "create profile")
		return
	}
	role := user.Role
	if !role.Valid() {
		role = models.RoleCustomer
	}
	c.JSON(status, models.AuthResponse{
		AccessToken: res.AccessToken,
		UserID:      res.UID,
		Email:       res.Email,
		Role:        role,
	})
}
