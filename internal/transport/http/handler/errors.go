package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartfile-qa/internal/app"
	"smartfile-qa/internal/filestore"
	"smartfile-qa/internal/model"
	"smartfile-qa/internal/pkg/logging"
	"smartfile-qa/internal/transport/http/middleware"
	"smartfile-qa/internal/transport/http/response"
)

// writeAppError maps service errors to API responses. Unknown errors are
// logged and reported with fallback.
func writeAppError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidEmail):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidEmail, err.Error())
	case errors.Is(err, app.ErrFileRequired), errors.Is(err, app.ErrFileEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeFileRequired, err.Error())
	case errors.Is(err, app.ErrQuestionEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeQuestionEmpty, err.Error())
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrFileNotFound):
		response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
	case errors.Is(err, app.ErrLLMNotConfigured):
		response.Error(c, http.StatusServiceUnavailable, response.CodeLLMUnavailable, err.Error())
	case errors.Is(err, app.ErrEnqueue), errors.Is(err, filestore.ErrExhausted):
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, err.Error())
	default:
		logging.Error(fallback, "path", c.FullPath(), "request_id", c.GetString(middleware.ContextRequestIDKey), "err", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

// currentSession returns the bound session or writes a 500 when the route
// was registered without BindSession.
func currentSession(c *gin.Context) (*model.Session, bool) {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeSessionNotFound, "session not bound")
		return nil, false
	}
	return session, true
}
