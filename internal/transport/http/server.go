package http

import (
	"github.com/gin-gonic/gin"

	"smartfile-qa/internal/bootstrap"
	"smartfile-qa/internal/transport/http/handler"
	"smartfile-qa/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	cfg := app.Config
	gin.SetMode(cfg.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.RequestLogger(), gin.Recovery())
	router.MaxMultipartMemory = cfg.MaxUploadBytes()

	svc := app.Services
	cookie := middleware.CookieConfig{
		Name:   cfg.Session.CookieName,
		MaxAge: cfg.Session.CookieMaxAge,
		Secure: cfg.IsProd(),
	}

	healthHandler := handler.NewHealthHandler(app)
	downloadHandler := handler.NewDownloadHandler(svc.Resolver, cfg.IsDev())
	sessionHandler := handler.NewSessionHandler(svc.Sessions, cookie)
	fileHandler := handler.NewFileHandler(svc.Files, cfg.MaxUploadBytes())
	qaHandler := handler.NewQAHandler(svc.QA)
	reportHandler := handler.NewReportHandler(svc.Reports)
	statsHandler := handler.NewStatsHandler(svc.Stats)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/secure-download/:sessionId/:fileId/:filename", downloadHandler.Serve)

	v1 := router.Group("/api/v1")
	v1.GET("/stats", statsHandler.Get)
	v1.GET("/stats/recent", statsHandler.Dashboard)

	sessionGroup := v1.Group("")
	sessionGroup.Use(middleware.BindSession(svc.Sessions, cookie))
	sessionGroup.GET("/session", sessionHandler.Current)
	sessionGroup.POST("/session/reset", sessionHandler.Reset)
	sessionGroup.POST("/session/email", sessionHandler.AttachEmail)

	sessionGroup.POST("/files", fileHandler.Upload)
	sessionGroup.GET("/files", fileHandler.List)
	sessionGroup.DELETE("/files/:id", fileHandler.Delete)

	sessionGroup.POST("/ask", qaHandler.Ask)
	sessionGroup.GET("/conversations", qaHandler.History)

	sessionGroup.GET("/report", reportHandler.Download)
	sessionGroup.POST("/report/email", reportHandler.Email)

	return router
}
