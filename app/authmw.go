package app

import (
	"errors"
	"net/http"
	"strings"

	"cabinetkey/auth"
	"cabinetkey/lending"
	"cabinetkey/models"
	"cabinetkey/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = session.CookieName

const identityKey = "identity"

// IdentityFrom returns the caller resolved by AuthRequired.
func IdentityFrom(c *gin.Context) (lending.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return lending.Identity{}, false
	}
	id, ok := v.(lending.Identity)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// AuthRequired resolves the caller from a bearer token or the session cookie
// and re-reads the user row so role and active flag are always current.
func AuthRequired(accounts *lending.Accounts, appSess *session.AppSessionStore, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var (
			u   *models.User
			err error
		)
		if tok := bearerToken(c); tok != "" {
			claims, verr := auth.ValidateToken(jwtSecret, tok)
			if verr != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid token"})
				return
			}
			u, err = accounts.Resolve(ctx, claims.Subject)
			if errors.Is(err, models.ErrNotFound) && claims.Email != "" {
				// 首次访问：按 token 中的邮箱建档
				u, err = accounts.Provision(ctx, claims.Subject, claims.Email, claims.Name)
			}
		} else {
			ck, cerr := c.Request.Cookie(AppSessionCookie)
			if cerr != nil || ck.Value == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
				return
			}
			as, serr := appSess.Get(ctx, ck.Value)
			if serr != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
				return
			}
			u, err = accounts.Resolve(ctx, as.UserID)
			if errors.Is(err, models.ErrNotFound) {
				_ = appSess.Delete(ctx, ck.Value)
			}
		}

		switch {
		case err == nil:
		case models.IsFault(err):
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, H{"error": "identity lookup failed"})
			return
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}

		c.Set(identityKey, lending.IdentityOf(u))
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if err := lending.RequireAdmin(id); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
