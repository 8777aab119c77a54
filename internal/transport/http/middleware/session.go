package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartfile-qa/internal/model"
	"smartfile-qa/internal/pkg/logging"
	"smartfile-qa/internal/transport/http/response"
)

const ContextSessionKey = "session"

type SessionEnsurer interface {
	Ensure(ctx context.Context, key string) (*model.Session, bool, error)
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	MaxAge int
	Secure bool
}

// BindSession resolves the session cookie to a session row, starting a new
// session when the cookie is missing or unusable.
func BindSession(sessions SessionEnsurer, cookie CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, _ := c.Cookie(cookie.Name)
		session, created, err := sessions.Ensure(c.Request.Context(), key)
		if err != nil {
			logging.Error("bind session failed", "err", err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session unavailable")
			c.Abort()
			return
		}
		if created || key != session.SessionKey {
			SetSessionCookie(c, cookie, session.SessionKey)
		}
		c.Set(ContextSessionKey, session)
		c.Next()
	}
}

func SetSessionCookie(c *gin.Context, cookie CookieConfig, key string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, key, cookie.MaxAge, "/", "", cookie.Secure, true)
}

// CurrentSession returns the session bound by BindSession.
func CurrentSession(c *gin.Context) (*model.Session, bool) {
	v, ok := c.Get(ContextSessionKey)
	if !ok {
		return nil, false
	}
	session, ok := v.(*model.Session)
	return session, ok && session != nil
}
