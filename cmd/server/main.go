package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/database"
	"github.com/iliyamo/movie-catalog/internal/handler"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
	"github.com/iliyamo/movie-catalog/internal/router"
	queuepublisher "github.com/iliyamo/movie-catalog/internal/service"
	"github.com/iliyamo/movie-catalog/internal/upload"
	"github.com/iliyamo/movie-catalog/internal/webui"
	"github.com/iliyamo/movie-catalog/pkg/client"
)

func main() {
	// .env is a convenience for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	cancel()

	posters, err := upload.NewStore(cfg.UploadDir, cfg.MaxPosterBytes)
	if err != nil {
		log.Fatalf("init upload store: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; response cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	movies := repository.NewMovieRepo(db)

	authHandler := handler.NewAuthHandler(cfg, users)
	movieHandler := handler.NewMovieHandler(movies, posters)
	movieHandler.Publish = queuepublisher.PublishMovieEvent

	// Background consumer turning movie events into the audit log. Runs its
	// own reconnect loop, so a missing broker only costs log noise.
	go queue.StartMovieEventConsumer()

	e := echo.New()
	router.RegisterRoutes(e, posters.Dir(), config.LoadCacheConfig(), rdb)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)
	router.RegisterMovies(e, movieHandler, cfg.JWTSecret)

	// The web UI consumes the API over HTTP like any other client; by
	// default it points at this same process.
	base := cfg.APIBaseURL
	if base == "" {
		base = "http://127.0.0.1:" + cfg.Port
	}
	webui.New(client.New(base)).Register(e)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
