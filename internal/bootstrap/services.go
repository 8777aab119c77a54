package bootstrap

import (
	"gorm.io/gorm"

	appsvc "smartfile-qa/internal/app"
	"smartfile-qa/internal/cache"
	"smartfile-qa/internal/config"
	"smartfile-qa/internal/filestore"
	"smartfile-qa/internal/pkg/filetoken"
	"smartfile-qa/internal/repository"
	"smartfile-qa/internal/retrieval"
)

// Services is the application layer the HTTP transport talks to.
type Services struct {
	Sessions *appsvc.SessionService
	Files    *appsvc.FileService
	QA       *appsvc.QAService
	Reports  *appsvc.ReportService
	Stats    *appsvc.StatsService
	Resolver *retrieval.Resolver
}

// Deps are the infrastructure pieces services are built from. History and
// the queues may be nil.
type Deps struct {
	Config            *config.Config
	DB                *gorm.DB
	Store             *filestore.Store
	Uploads           *cache.UploadCache
	Tokens            *filetoken.Service
	LLM               appsvc.Completer
	History           appsvc.HistoryCache
	ConversationQueue appsvc.JobPublisher
	ReportQueue       appsvc.JobPublisher
}

func NewServices(d Deps) *Services {
	cfg := d.Config

	sessionRepo := repository.NewSessionRepository(d.DB)
	userRepo := repository.NewUserRepository(d.DB)
	fileRepo := repository.NewFileRepository(d.DB)
	conversationRepo := repository.NewConversationRepository(d.DB)
	statsRepo := repository.NewStatsRepository(d.DB)

	files := appsvc.NewFileService(fileRepo, d.Store, d.Uploads, d.Tokens, cfg.PublicBaseURL(), cfg.MaxUploadBytes())

	return &Services{
		Sessions: appsvc.NewSessionService(sessionRepo, userRepo, d.Uploads),
		Files:    files,
		QA:       appsvc.NewQAService(files, conversationRepo, d.LLM, d.ConversationQueue, d.History, cfg.LLM.MaxFileChars),
		Reports:  appsvc.NewReportService(sessionRepo, conversationRepo, files, d.ReportQueue, cfg.App.Name+" report"),
		Stats:    appsvc.NewStatsService(statsRepo, d.Uploads),
		Resolver: retrieval.NewResolver(d.Tokens, fileRepo, d.Store, d.Uploads),
	}
}
