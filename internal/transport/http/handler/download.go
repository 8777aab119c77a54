package handler

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartfile-qa/internal/retrieval"
	"smartfile-qa/internal/transport/http/response"
)

const (
	msgInvalidToken = "Invalid or expired token"
	msgNotFound     = "File not found or no longer available"
	msgForbidden    = "Access to the stored file was denied"
	msgUnavailable  = "File storage is temporarily unavailable"
	msgStorage      = "Failed to read the stored file"
)

type DownloadHandler struct {
	resolver    *retrieval.Resolver
	showDetails bool
}

// NewDownloadHandler serves secure-download links. showDetails adds the
// underlying error to failure bodies and is meant for development only.
func NewDownloadHandler(resolver *retrieval.Resolver, showDetails bool) *DownloadHandler {
	return &DownloadHandler{resolver: resolver, showDetails: showDetails}
}

func (h *DownloadHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Fail(c, http.StatusUnauthorized, msgInvalidToken, h.details("missing token"))
		return
	}

	delivery, err := h.resolver.Resolve(c.Request.Context(), retrieval.Request{
		SessionID: c.Param("sessionId"),
		FileID:    c.Param("fileId"),
		Filename:  c.Param("filename"),
		Token:     token,
		Preview:   c.Query("preview") == "true",
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	header := c.Writer.Header()
	for key, values := range delivery.Headers() {
		header[key] = values
	}

	if delivery.Preview && delivery.IsVideo() {
		http.ServeContent(c.Writer, c.Request, delivery.Filename, time.Time{}, bytes.NewReader(delivery.Data))
		return
	}
	c.Data(http.StatusOK, header.Get("Content-Type"), delivery.Data)
}

func (h *DownloadHandler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, retrieval.ErrUnauthorized):
		response.Fail(c, http.StatusUnauthorized, msgInvalidToken, h.details(err.Error()))
	case errors.Is(err, retrieval.ErrForbidden):
		response.Fail(c, http.StatusForbidden, msgForbidden, h.details(err.Error()))
	case errors.Is(err, retrieval.ErrUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, msgUnavailable, h.details(err.Error()))
	case errors.Is(err, retrieval.ErrStorage):
		response.Fail(c, http.StatusInternalServerError, msgStorage, h.details(err.Error()))
	case errors.Is(err, retrieval.ErrNotFound):
		response.Fail(c, http.StatusNotFound, msgNotFound, h.details(err.Error()))
	default:
		response.Fail(c, http.StatusInternalServerError, msgStorage, h.details(err.Error()))
	}
}

func (h *DownloadHandler) details(s string) string {
	if !h.showDetails {
		return ""
	}
	return s
}
