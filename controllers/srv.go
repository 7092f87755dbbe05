// controllers/srv.go
package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cabinetkey/app"
	"cabinetkey/db"
	"cabinetkey/lending"
	"cabinetkey/models"
	"cabinetkey/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Srv struct {
	Repo      *db.Repo
	AppSess   *session.AppSessionStore
	Accounts  *lending.Accounts
	Coord     *lending.Coordinator
	Inventory *lending.Inventory
	History   *lending.History
	Favorites *lending.Favorites
	Log       *slog.Logger
	WebOrigin string
	Cfg       app.Config
}

func GetSrv(a *app.App) *Srv {
	repo := db.NewRepo(a.DB)
	return &Srv{
		Repo:      repo,
		AppSess:   a.AppSessions(),
		Accounts:  lending.NewAccounts(repo, a.AppSessions(), a.Config.AdminEmails),
		Coord:     lending.NewCoordinator(repo, a.Config.LoanLimits),
		Inventory: lending.NewInventory(repo),
		History:   lending.NewHistory(repo),
		Favorites: lending.NewFavorites(repo),
		Log:       a.Log,
		WebOrigin: a.Config.WebOrigin,
		Cfg:       a.Config,
	}
}

// --- helpers ---

func identity(c *gin.Context) lending.Identity {
	id, _ := app.IdentityFrom(c)
	return id
}

// statusOf maps the error taxonomy onto HTTP.
func statusOf(err error) int {
	switch {
	case models.IsFault(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Srv) fail(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusServiceUnavailable {
		s.Log.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "err", err)
		msg = "temporarily unavailable, nothing was changed"
	}
	c.JSON(status, app.H{"error": msg, "code": lending.Outcome(err)})
}

// idParam reads a UUID path parameter, answering 400 when it is malformed.
func (s *Srv) idParam(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		s.badRequest(c, "invalid uuid")
		return "", false
	}
	return id, true
}

func (s *Srv) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, app.H{"error": msg, "code": "invalid_input"})
}

// 统一设置业务会话 Cookie
func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	secure := strings.HasPrefix(s.WebOrigin, "https://")
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   int(maxAge / time.Second),
	})
}

// issueSession opens a redis session for userID and sets the cookie.
func (s *Srv) issueSession(ctx context.Context, w http.ResponseWriter, userID string) error {
	id, err := s.AppSess.Create(ctx, userID)
	if err != nil {
		return err
	}
	s.setAppCookie(w, id, s.AppSess.TTL())
	return nil
}
