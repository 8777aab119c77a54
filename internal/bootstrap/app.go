package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"smartfile-qa/internal/ai"
	"smartfile-qa/internal/cache"
	"smartfile-qa/internal/config"
	"smartfile-qa/internal/filestore"
	"smartfile-qa/internal/model"
	"smartfile-qa/internal/pkg/filetoken"
	"smartfile-qa/internal/pkg/logging"
	"smartfile-qa/internal/platform/mailer"
	mysqlClient "smartfile-qa/internal/platform/mysql"
	rabbitmqClient "smartfile-qa/internal/platform/rabbitmq"
	redisClient "smartfile-qa/internal/platform/redis"
	"smartfile-qa/internal/repository"
	"smartfile-qa/internal/worker"
)

type App struct {
	Config   *config.Config
	MySQL    *gorm.DB
	Redis    *redis.Client
	MQConn   *amqp.Connection
	Services *Services

	ConversationWorker *worker.Consumer
	ReportWorker       *worker.Consumer
	PurgeWorker        *worker.PurgeWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logging.Setup(cfg.App.Env)
	if cfg.UsesDefaultTokenSecret() {
		logging.Warn("file tokens are signed with the default secret; set JWT_SECRET before exposing this server")
	}

	a := &App{Config: cfg, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN(), cfg.IsDev())
	if err != nil {
		return err
	}
	a.MySQL = mysqlDB
	if err := mysqlDB.AutoMigrate(&model.User{}, &model.Session{}, &model.File{}, &model.Conversation{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	a.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}

	store, err := filestore.NewOS(cfg.Storage.UploadDir)
	if err != nil {
		return err
	}
	uploads, err := cache.NewUploadCache(cfg.Session.CacheCapacity)
	if err != nil {
		return err
	}
	tokens, err := filetoken.NewService(cfg.FileToken.Secret, cfg.FileTokenTTL())
	if err != nil {
		return err
	}
	history := cache.NewHistoryCache(
		a.Redis,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	llm := ai.NewOpenAICompatibleClient(ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
	if !llm.Configured() {
		logging.Warn("llm is not configured; questions will be rejected")
	}

	a.Services = NewServices(Deps{
		Config:            cfg,
		DB:                mysqlDB,
		Store:             store,
		Uploads:           uploads,
		Tokens:            tokens,
		LLM:               llm,
		History:           history,
		ConversationQueue: rabbitmqClient.NewPublisher(a.MQConn, cfg.RabbitMQ.ConversationPersistQueue),
		ReportQueue:       rabbitmqClient.NewPublisher(a.MQConn, cfg.RabbitMQ.ReportEmailQueue),
	})

	persister := worker.NewConversationPersister(repository.NewConversationRepository(mysqlDB), history)
	a.ConversationWorker = worker.NewConsumer(a.MQConn, cfg.RabbitMQ.ConversationPersistQueue, "conversation-persist", persister.Handle)
	if err := a.ConversationWorker.Start(ctx); err != nil {
		return fmt.Errorf("start conversation worker failed: %w", err)
	}

	smtp := mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	if !smtp.Configured() {
		logging.Warn("smtp is not configured; report emails will be dropped")
	}
	reportMailer := worker.NewReportMailer(a.Services.Reports, smtp, cfg.App.Name)
	a.ReportWorker = worker.NewConsumer(a.MQConn, cfg.RabbitMQ.ReportEmailQueue, "report-email", reportMailer.Handle)
	if err := a.ReportWorker.Start(ctx); err != nil {
		return fmt.Errorf("start report worker failed: %w", err)
	}

	a.PurgeWorker = worker.NewPurgeWorker(store, cfg.Storage.RetentionDays, cfg.PurgeInterval())
	a.PurgeWorker.Start(ctx)

	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.PurgeWorker != nil {
		a.PurgeWorker.Close()
	}
	if a.ConversationWorker != nil {
		a.ConversationWorker.Close()
	}
	if a.ReportWorker != nil {
		a.ReportWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
