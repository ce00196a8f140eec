package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"storecare/internal/adapter/api"
	"storecare/internal/adapter/api/handler"
	apimiddleware "storecare/internal/adapter/api/middleware"
	"storecare/internal/adapter/api/router"
	"storecare/internal/adapter/repository"
	domainrepo "storecare/internal/domain/repository"
	"storecare/internal/infrastructure/firebase"
	"storecare/internal/infrastructure/ratelimit"
	"storecare/internal/infrastructure/websocket"
	"storecare/internal/usecase"
	"storecare/pkg/config"
	"storecare/pkg/logger"
)

type conversationBackend interface {
	domainrepo.ConversationStore
	domainrepo.ConversationDirectory
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opt option.ClientOption
	if cfg.ServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON))
	} else {
		if _, err := os.Stat(cfg.ServiceAccountPath); os.IsNotExist(err) {
			logger.Fatal("Service account file does not exist: %s", cfg.ServiceAccountPath)
		}
		logger.Info("Using Firebase service account from file: %s", cfg.ServiceAccountPath)
		opt = option.WithCredentialsFile(cfg.ServiceAccountPath)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		logger.Fatal("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		logger.Fatal("Failed to initialize Firebase Auth: %v", err)
	}
	firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient)

	var (
		conversations   conversationBackend
		serviceRequests domainrepo.ServiceRequestRepository
		inquiries       domainrepo.InquiryRepository
	)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		logger.Warn("STORE_BACKEND=memory: data is lost on restart")
		conversations = repository.NewMemoryConversationStore()
		serviceRequests = repository.NewMemoryServiceRequestRepository()
		inquiries = repository.NewMemoryInquiryRepository()
	default:
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
		if err != nil {
			logger.Fatal("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		conversations = repository.NewFirestoreConversationStore(firestoreClient)
		serviceRequests = repository.NewFirestoreServiceRequestRepository(firestoreClient)
		inquiries = repository.NewFirestoreInquiryRepository(firestoreClient)
	}

	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine(ctx)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	conversationUseCase := usecase.NewConversationUseCase(conversations, conversations)
	serviceRequestUseCase := usecase.NewServiceRequestUseCase(serviceRequests, rateLimiter)
	inquiryUseCase := usecase.NewInquiryUseCase(inquiries, rateLimiter)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(firebaseAuthClient)

	router.Setup(e, router.Handlers{
		Conversation:   handler.NewConversationHandler(conversationUseCase),
		ServiceRequest: handler.NewServiceRequestHandler(serviceRequestUseCase),
		Inquiry:        handler.NewInquiryHandler(inquiryUseCase),
		Admin:          handler.NewAdminHandler(firebaseAuthClient),
		Health:         handler.NewHealthHandler(firebaseAuthClient, wsManager),
		WebSocket: handler.NewWebSocketHandler(
			wsManager,
			firebaseAuthClient,
			conversations,
			rateLimiter,
			usecase.WithScrollDelay(cfg.ChatScrollDelay),
			usecase.WithEventBuffer(cfg.ChatEventBuffer),
		),
	}, authMiddleware, rateLimiter)

	go func() {
		logger.Info("Starting server on port %s (store backend: %s)...", cfg.ServerPort, cfg.StoreBackend)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error: %v", err)
	}
}
