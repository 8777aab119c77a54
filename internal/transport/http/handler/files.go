package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartfile-qa/internal/app"
	"smartfile-qa/internal/transport/http/response"
)

// multipart framing on top of the file itself
const multipartOverhead = 1 << 20

type FileHandler struct {
	files    *app.FileService
	maxBytes int64
}

func NewFileHandler(files *app.FileService, maxBytes int64) *FileHandler {
	return &FileHandler{files: files, maxBytes: maxBytes}
}

func (h *FileHandler) Upload(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAppError(c, app.ErrFileTooLarge, "upload failed")
			return
		}
		writeAppError(c, app.ErrFileRequired, "upload failed")
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		writeAppError(c, app.ErrFileTooLarge, "upload failed")
		return
	}

	f, err := header.Open()
	if err != nil {
		writeAppError(c, err, "read upload failed")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeAppError(c, err, "read upload failed")
		return
	}

	view, err := h.files.Upload(c.Request.Context(), app.UploadInput{
		Session:  session,
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		writeAppError(c, err, "upload failed")
		return
	}
	response.OK(c, view)
}

func (h *FileHandler) List(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	files, err := h.files.List(c.Request.Context(), session)
	if err != nil {
		writeAppError(c, err, "list files failed")
		return
	}
	response.OK(c, gin.H{"files": files})
}

func (h *FileHandler) Delete(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid file id")
		return
	}
	if err := h.files.Delete(c.Request.Context(), session, uint(id)); err != nil {
		writeAppError(c, err, "delete file failed")
		return
	}
	response.OK(c, gin.H{"deleted": id})
}
