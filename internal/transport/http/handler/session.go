package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartfile-qa/internal/app"
	"smartfile-qa/internal/transport/http/middleware"
	"smartfile-qa/internal/transport/http/response"
)

type SessionHandler struct {
	sessions *app.SessionService
	cookie   middleware.CookieConfig
}

type AttachEmailRequest struct {
	Email string `json:"email" binding:"required,max=255"`
}

func NewSessionHandler(sessions *app.SessionService, cookie middleware.CookieConfig) *SessionHandler {
	return &SessionHandler{sessions: sessions, cookie: cookie}
}

func (h *SessionHandler) Current(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	response.OK(c, session)
}

func (h *SessionHandler) Reset(c *gin.Context) {
	oldKey := ""
	if session, ok := middleware.CurrentSession(c); ok {
		oldKey = session.SessionKey
	}

	session, err := h.sessions.Reset(c.Request.Context(), oldKey)
	if err != nil {
		writeAppError(c, err, "reset session failed")
		return
	}
	middleware.SetSessionCookie(c, h.cookie, session.SessionKey)
	response.OK(c, session)
}

func (h *SessionHandler) AttachEmail(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	var req AttachEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	updated, err := h.sessions.AttachEmail(c.Request.Context(), session, req.Email)
	if err != nil {
		writeAppError(c, err, "attach email failed")
		return
	}
	response.OK(c, updated)
}
