package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartfile-qa/internal/app"
	"smartfile-qa/internal/transport/http/response"
)

type ReportHandler struct {
	reports *app.ReportService
}

type EmailReportRequest struct {
	Email string `json:"email" binding:"required,max=255"`
}

func NewReportHandler(reports *app.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func (h *ReportHandler) Download(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	pdf, err := h.reports.BuildPDF(c.Request.Context(), session.SessionKey)
	if err != nil {
		writeAppError(c, err, "build report failed")
		return
	}

	name := fmt.Sprintf("qa-report-%s.pdf", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *ReportHandler) Email(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	var req EmailReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	to, err := h.reports.EnqueueEmail(c.Request.Context(), session, req.Email)
	if err != nil {
		writeAppError(c, err, "queue report email failed")
		return
	}
	c.JSON(http.StatusAccepted, response.APIResponse{
		Code:    response.CodeOK,
		Message: "queued",
		Data:    gin.H{"email": to},
	})
}
