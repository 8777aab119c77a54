package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartfile-qa/internal/app"
	"smartfile-qa/internal/transport/http/response"
)

type QAHandler struct {
	qa *app.QAService
}

type AskRequest struct {
	Question string `json:"question" binding:"required,max=8000"`
	FileID   string `json:"file_id"`
}

func NewQAHandler(qa *app.QAService) *QAHandler {
	return &QAHandler{qa: qa}
}

func (h *QAHandler) Ask(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.qa.Ask(c.Request.Context(), app.AskInput{
		Session:  session,
		Question: req.Question,
		FileID:   req.FileID,
	})
	if err != nil {
		writeAppError(c, err, "answer question failed")
		return
	}
	response.OK(c, result)
}

func (h *QAHandler) History(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	conversations, err := h.qa.History(c.Request.Context(), session, limit)
	if err != nil {
		writeAppError(c, err, "get history failed")
		return
	}
	response.OK(c, gin.H{"conversations": conversations})
}
