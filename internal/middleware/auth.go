package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/identity"
	"design-portal-backend/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey  = "user_id"
	SessionKey = "session"
)

// TokenVerifier checks a bearer token and returns who it was issued to.
type TokenVerifier interface {
	Verify(raw string) (*identity.Identity, error)
}

// Profiles resolves the stored profile behind a verified identity.
type Profiles interface {
	Get(ctx context.Context, uid string) (*models.User, error)
	Ensure(ctx context.Context, id identity.Identity) (*models.User, error)
}

// AuthMiddleware verifies the bearer token, makes sure the caller has a
// profile and stores the resulting identity.Session on the context. The
// token may also come in the access_token query parameter, since browser
// EventSource requests cannot set headers.
func AuthMiddleware(verifier TokenVerifier, profiles Profiles) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "missing authorization header", "")
			return
		}

		id, err := verifier.Verify(tokenString)
		if err != nil {
			message := "token is invalid"
			if strings.Contains(err.Error(), "token is expired") {
				message = "token has expired"
			}
			abort(c, http.StatusUnauthorized, "invalid token", message)
			return
		}

		user, err := profiles.Get(c.Request.Context(), id.UID)
		if errors.Is(err, docstore.ErrNotFound) {
			user, err = profiles.Ensure(c.Request.Context(), *id)
		}
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "while resolving profile",
				slog.String("user_id", id.UID), slog.Any("err", err))
			abort(c, http.StatusInternalServerError, "failed to load profile", "")
			return
		}

		role := user.Role
		if !role.Valid() {
			role = models.RoleCustomer
		}

		c.Set(UserIDKey, id.UID)
		c.Set(SessionKey, &identity.Session{Identity: *id, Role: role, Token: tokenString})
		c.Next()
	}
}

// SessionFrom returns the session AuthMiddleware stored, or nil.
func SessionFrom(c *gin.Context) *identity.Session {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*identity.Session)
	return s
}

// RequireScopeAccess lets customers address only their own :user_id.
// Designers may address anyone.
func RequireScopeAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFrom(c)
		if session == nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		if !session.CanAccess(c.Param("user_id")) {
			abort(c, http.StatusForbidden, "forbidden", "you may only access your own data")
			return
		}
		c.Next()
	}
}

func RequireDesigner() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFrom(c)
		if session == nil || !session.IsDesigner() {
			abort(c, http.StatusForbidden, "forbidden", "designer access required")
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	tokenString := ""
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		tokenString = strings.TrimSpace(parts[1])
	} else {
		tokenString = c.Query("access_token")
	}
	if tokenString == "" {
		return "", false
	}

	// Try URL decoding in case the token was URL-encoded
	if decoded, err := url.QueryUnescape(tokenString); err == nil {
		tokenString = decoded
	}
	return tokenString, true
}

func abort(c *gin.Context, status int, err, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: err, Message: message})
}
