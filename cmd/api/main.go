package main

import (
	authhandler "reservio/internal/auth/handler"
	authmw "reservio/internal/auth/middleware"
	authrepo "reservio/internal/auth/repository"
	authservice "reservio/internal/auth/service"
	blockedhandler "reservio/internal/blockedtimes/handler"
	blockedrepo "reservio/internal/blockedtimes/repository"
	blockedservice "reservio/internal/blockedtimes/service"
	blockedvalidator "reservio/internal/blockedtimes/validator"
	"reservio/internal/events"
	reservationhandler "reservio/internal/reservations/handler"
	reservationrepo "reservio/internal/reservations/repository"
	reservationservice "reservio/internal/reservations/service"
	reservationvalidator "reservio/internal/reservations/validator"
	resourcehandler "reservio/internal/resources/handler"
	resourcerepo "reservio/internal/resources/repository"
	resourceservice "reservio/internal/resources/service"
	resourcevalidator "reservio/internal/resources/validator"
	"reservio/pkg/app"
	"reservio/pkg/config"
	"reservio/pkg/contracts"
	kafka_config "reservio/pkg/kafka/config"

	"github.com/julienschmidt/httprouter"
)

const ServiceName = "reservio-api"

// apiHandler fans route registration out to every domain handler.
type apiHandler struct {
	handlers []contracts.Handler
}

func (h *apiHandler) RegisterRoutes(router *httprouter.Router) {
	for _, handler := range h.handlers {
		handler.RegisterRoutes(router)
	}
}

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.Log.Info("Starting Reservio API")
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	publisher := initPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}()

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, initHandlers(cfg, publisher))
	serverApp.Run()
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Event publishing disabled")
		return events.NewNoopPublisher()
	}

	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	publisher, err := events.NewKafkaPublisher(kafkaCfg, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize Kafka publisher", "error", err)
	}
	return publisher
}

func initHandlers(cfg *config.Config, publisher events.Publisher) contracts.Handler {
	auth := authmw.New(cfg.JWTSecret, cfg.Log)

	userRepo := authrepo.NewMongoUserRepository(cfg)
	tokenRepo := authrepo.NewMongoRefreshTokenRepository(cfg)
	authSvc := authservice.NewAuthService(userRepo, tokenRepo, cfg)

	resourceRepo := resourcerepo.NewMongoResourceRepository(cfg)
	resourceSvc := resourceservice.NewResourceService(resourceRepo, resourcevalidator.NewResourceValidator(), cfg)

	reservationRepo := reservationrepo.NewMongoReservationRepository(cfg)
	slotLockRepo := reservationrepo.NewSlotLockRepository(cfg)
	blockedRepo := blockedrepo.NewMongoBlockedTimeRepository(cfg)

	reservationSvc := reservationservice.NewReservationService(
		reservationRepo,
		slotLockRepo,
		resourceRepo,
		blockedRepo,
		reservationvalidator.NewReservationValidator(cfg.MinReservationDuration, cfg.MaxReservationDuration),
		publisher,
		cfg,
	)

	blockedSvc := blockedservice.NewBlockedTimeService(
		blockedRepo,
		slotLockRepo,
		resourceRepo,
		reservationRepo,
		blockedvalidator.NewBlockedTimeValidator(),
		publisher,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return &apiHandler{handlers: []contracts.Handler{
		authhandler.NewAuthHandler(authSvc, cfg.Log),
		resourcehandler.NewResourceHandler(resourceSvc, auth, cfg.Log),
		reservationhandler.NewReservationHandler(reservationSvc, auth, cfg.Log),
		blockedhandler.NewBlockedTimeHandler(blockedSvc, auth, cfg.Log),
	}}
}
