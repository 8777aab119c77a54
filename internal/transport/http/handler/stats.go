package handler

import (
	"github.com/gin-gonic/gin"

	"smartfile-qa/internal/app"
	"smartfile-qa/internal/transport/http/response"
)

type StatsHandler struct {
	stats *app.StatsService
}

func NewStatsHandler(stats *app.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func (h *StatsHandler) Get(c *gin.Context) {
	stats, err := h.stats.Get(c.Request.Context())
	if err != nil {
		writeAppError(c, err, "load stats failed")
		return
	}
	response.OK(c, stats)
}

func (h *StatsHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.stats.Dashboard(c.Request.Context())
	if err != nil {
		writeAppError(c, err, "load dashboard failed")
		return
	}
	response.OK(c, dashboard)
}
