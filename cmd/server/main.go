package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/config"
	"github.com/iliyamo/swimming-pool-reservation/internal/database"
	"github.com/iliyamo/swimming-pool-reservation/internal/handler"
	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/middleware"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/queue"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
	"github.com/iliyamo/swimming-pool-reservation/internal/router"
	"github.com/iliyamo/swimming-pool-reservation/internal/service"
	"github.com/iliyamo/swimming-pool-reservation/internal/storage"
)

func main() {
	cfg := config.Load() // Load environment config
	appLog := logger.NewZapLogger(cfg.LogFile, cfg.IsProduction())
	defer func() { _ = appLog.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBMigrate {
		applied, err := database.Migrate(rootCtx, db)
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
		appLog.Info("startup", "migrations applied", map[string]interface{}{"versions": applied})
	}

	users := repository.NewUserRepo(db)
	settings := repository.NewSettingRepo(db)
	tx := database.NewRunner(db)
	if cfg.SeedAdmin {
		if err := seed(rootCtx, cfg, tx, users, settings); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	typeRepo := repository.NewMembershipTypeRepo(db)
	kinds, err := typeRepo.ResolveKinds(rootCtx, model.KindSession, model.KindAnnual)
	if err != nil {
		log.Fatalf("membership types: %v", err)
	}
	types := service.NewMembershipTypes(kinds)

	blobs := newBlobStore(cfg)

	// Keep events a nil interface when the queue is off.
	var events service.EventPublisher
	notifications := repository.NewNotificationRepo(db)
	if cfg.QueueEnabled {
		events = queue.NewPublisher(cfg.RabbitURL, appLog)
		go func() {
			if err := queue.StartNotificationConsumer(rootCtx, cfg.RabbitURL, notifications, appLog); err != nil && !errors.Is(err, context.Canceled) {
				appLog.Error("queue", "notification consumer stopped", map[string]interface{}{"error": err})
			}
		}()
	}

	pools := repository.NewPoolRepo(db)
	reservations := repository.NewReservationRepo(db)
	lockers := repository.NewLockerRepo(db)
	lockerReservations := repository.NewLockerReservationRepo(db)
	payments := repository.NewPaymentRepo(db)
	memberships := repository.NewMembershipRepo(db)
	categories := repository.NewCategoryRepo(db)
	tokens := repository.NewTokenRepo(db)
	if n, err := tokens.PurgeExpired(rootCtx, time.Now()); err != nil {
		appLog.Warn("startup", "refresh token purge failed", map[string]interface{}{"error": err.Error()})
	} else if n > 0 {
		appLog.Info("startup", "expired refresh tokens purged", map[string]interface{}{"count": n})
	}

	stores := service.Stores{
		Pools:              pools,
		Reservations:       reservations,
		Lockers:            lockers,
		LockerReservations: lockerReservations,
		Payments:           payments,
		Memberships:        memberships,
		Categories:         categories,
		Users:              users,
		Settings:           settings,
	}
	booking := service.NewBookingService(tx, stores, blobs, events, appLog)
	membershipSvc := service.NewMembershipService(tx, stores, types, appLog)
	paymentSvc := service.NewPaymentService(tx, stores, types, blobs, events, appLog)

	authH := handler.NewAuthHandler(cfg, tx, users, tokens, membershipSvc, appLog)
	userH := &handler.UserHandler{
		Cfg: cfg, Users: users, Tokens: tokens, Categories: categories, Memberships: memberships,
		Reservations: reservations, Notifications: notifications, Blobs: blobs, Log: appLog,
	}
	poolH := &handler.PoolHandler{Tx: tx, Pools: pools, Log: appLog}
	reservationH := &handler.ReservationHandler{Booking: booking, Reservations: reservations, Log: appLog}
	lockerH := &handler.LockerHandler{Booking: booking, Lockers: lockers, LockerReservations: lockerReservations, Log: appLog}
	membershipH := &handler.MembershipHandler{
		Tx: tx, Service: membershipSvc, Memberships: memberships, Types: typeRepo, Categories: categories, Log: appLog,
	}
	paymentH := &handler.PaymentHandler{Service: paymentSvc, Payments: payments, Log: appLog}
	settingH := &handler.SettingHandler{Settings: settings, Log: appLog}
	adminH := &handler.AdminHandler{
		Cfg: cfg, Tx: tx, Stats: repository.NewAdminRepo(db), Users: users,
		Memberships: membershipSvc, Notifications: notifications, Log: appLog,
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		appLog.Warn("startup", "redis unavailable, rate limiting and caching disabled", nil)
	} else {
		defer rdb.Close()
	}
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, appLog)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, appLog)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(appLog))
	if cfg.CloudinaryURL == "" {
		e.Static(cfg.PublicBaseURL, cfg.UploadDir)
	}

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, authH, cfg.JWTSecret, limit)
	router.RegisterPublic(e, poolH, membershipH, settingH, cache)
	router.RegisterUser(e, router.UserHandlers{
		User: userH, Reservations: reservationH, Lockers: lockerH, Memberships: membershipH, Payments: paymentH,
	}, cfg.JWTSecret, limit)
	router.RegisterAdmin(e, router.AdminHandlers{
		Admin: adminH, Pools: poolH, Reservations: reservationH, Lockers: lockerH,
		Memberships: membershipH, Payments: paymentH, Settings: settingH,
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		appLog.Info("startup", "listening", map[string]interface{}{"addr": addr, "env": cfg.Env})
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-rootCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLog.Error("shutdown", "graceful shutdown failed", map[string]interface{}{"error": err})
	}
	appLog.Info("shutdown", "server stopped", nil)
}

// newBlobStore prefers Cloudinary and falls back to the local upload dir.
func newBlobStore(cfg config.Config) storage.BlobStore {
	if cfg.CloudinaryURL != "" {
		store, err := storage.NewCloudinaryStore(cfg.CloudinaryURL, "swimming-pool")
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		return store
	}
	return storage.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL)
}
