package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/mkarimv/vehicle-service-center/internal/config"
	"github.com/mkarimv/vehicle-service-center/internal/database"
	"github.com/mkarimv/vehicle-service-center/internal/handler"
	appmw "github.com/mkarimv/vehicle-service-center/internal/middleware"
	"github.com/mkarimv/vehicle-service-center/internal/queue"
	"github.com/mkarimv/vehicle-service-center/internal/repository"
	"github.com/mkarimv/vehicle-service-center/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}
	limiter := appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := appmw.NewRedisCache(config.LoadCacheConfig(), rdb)

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	apptRepo := repository.NewAppointmentRepo(db)
	partRepo := repository.NewPartRepo(db)
	demandRepo := repository.NewDemandRepo(db)
	conflictRepo := repository.NewConflictRepo(db)

	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	apptHandler := handler.NewAppointmentHandler(apptRepo, demandRepo, conflictRepo, partRepo)
	partHandler := handler.NewPartHandler(partRepo)
	conflictHandler := handler.NewConflictHandler(conflictRepo, partRepo, demandRepo, apptRepo)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterCustomer(e, apptHandler, cfg.JWTSecret, limiter)
	router.RegisterTechnician(e, apptHandler, cfg.JWTSecret, limiter)
	router.RegisterStaff(e, apptHandler, partHandler, conflictHandler, cfg.JWTSecret, limiter, cache)

	// Notification consumer runs for the lifetime of the process and
	// reconnects on broker failure.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
