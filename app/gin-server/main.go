package main

import (
	"context"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/prepwise/prepwise/config"
	"github.com/prepwise/prepwise/internal/api/handlers"
	"github.com/prepwise/prepwise/internal/api/middleware"
	"github.com/prepwise/prepwise/internal/api/routes"
	"github.com/prepwise/prepwise/internal/cache"
	"github.com/prepwise/prepwise/internal/logger"
	"github.com/prepwise/prepwise/internal/models"
	"github.com/prepwise/prepwise/internal/providers/llm"
	"github.com/prepwise/prepwise/internal/providers/stt"
	"github.com/prepwise/prepwise/internal/realtime"
	mongorepo "github.com/prepwise/prepwise/internal/repositories/mongo"
	pgrepo "github.com/prepwise/prepwise/internal/repositories/postgres"
	"github.com/prepwise/prepwise/internal/services"
	"github.com/prepwise/prepwise/internal/storage"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	ctx := context.Background()

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Fatal("MongoDB index error")
	}
	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}

	if err := config.PostgresDB.AutoMigrate(
		&models.User{},
		&models.Job{},
		&models.Skill{},
		&models.ResumeFile{},
	); err != nil {
		log.WithError(err).Fatal("PostgreSQL migrate error")
	}

	// External providers
	llmProvider, err := llm.NewVertexGemini(ctx,
		os.Getenv("GOOGLE_PROJECT_ID"),
		os.Getenv("GOOGLE_LOCATION"),
		os.Getenv("LLM_MODEL"),
	)
	if err != nil {
		log.WithError(err).Fatal("Vertex init error")
	}
	defer llmProvider.Close()

	sttProvider, err := stt.NewGoogleSpeech(ctx, os.Getenv("SPEECH_LANGUAGE"))
	if err != nil {
		log.WithError(err).Fatal("Speech init error")
	}
	defer sttProvider.Close()

	store, err := storage.NewGCSStore(ctx, os.Getenv("GCS_BUCKET"))
	if err != nil {
		log.WithError(err).Fatal("Storage init error")
	}
	defer store.Close()

	// Repositories
	db := config.MongoDatabase()
	sessionRepo := mongorepo.NewSessionRepo(db)
	userRepo := pgrepo.NewUserRepo(config.PostgresDB)
	catalogRepo := pgrepo.NewCatalogRepo(config.PostgresDB)
	resumeRepo := pgrepo.NewResumeRepo(config.PostgresDB)

	// Services
	rdcache := cache.NewRedisCache(config.RedisClient)
	events := realtime.NewRedisPublisher(config.RedisClient)

	questionSeconds, _ := strconv.Atoi(os.Getenv("QUESTION_SECONDS"))

	authSvc := services.NewAuthService(userRepo, os.Getenv("JWT_SECRET"))
	catalogSvc := services.NewCatalogService(catalogRepo, rdcache)
	resumeSvc := services.NewResumeService(resumeRepo, store)
	interviewSvc := services.NewInterviewService(services.InterviewServiceDeps{
		Sessions:        sessionRepo,
		Catalog:         catalogRepo,
		Generator:       services.NewQuestionGenerator(llmProvider),
		Evaluator:       services.NewAnswerEvaluator(llmProvider),
		STT:             sttProvider,
		Uploader:        store,
		Signer:          store,
		Events:          events,
		Logger:          log,
		QuestionSeconds: questionSeconds,
	})

	// HTTP
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		Auth:      handlers.NewAuthHandler(authSvc),
		Catalog:   handlers.NewCatalogHandler(catalogSvc),
		Interview: handlers.NewInterviewHandler(interviewSvc),
		Resume:    handlers.NewResumeHandler(resumeSvc),
		WS:        handlers.NewWSHandler(interviewSvc, config.RedisClient),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
