package main

import (
	"log"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ouvidoria/ocorrencias-api/internal/config"
	"github.com/ouvidoria/ocorrencias-api/internal/database"
	"github.com/ouvidoria/ocorrencias-api/internal/handler"
	"github.com/ouvidoria/ocorrencias-api/internal/queue"
	"github.com/ouvidoria/ocorrencias-api/internal/repository"
	"github.com/ouvidoria/ocorrencias-api/internal/router"
	mailer "github.com/ouvidoria/ocorrencias-api/internal/service"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when redis is unreachable; limits and cache degrade

	// The mail consumer runs in-process; a dedicated worker binary can take
	// over by pointing at the same queue.
	go queue.StartMailConsumer(cfg)

	users := repository.NewUserRepo(db)
	sistemas := repository.NewSistemaRepo(db)
	ocorrencias := repository.NewOcorrenciaRepo(db)
	pareceres := repository.NewParecerRepo(db)
	tipos := repository.NewTipoRepo(db)
	mail := mailer.NewPublisher(cfg.RabbitURL)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	router.Register(e, router.Deps{
		Cfg:       cfg,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		RDB:       rdb,
		Users:     users,
		Sistemas:  sistemas,

		Auth:       handler.NewAuthHandler(cfg, users, mail),
		User:       handler.NewUserHandler(cfg, users),
		Ocorrencia: handler.NewOcorrenciaHandler(ocorrencias),
		Parecer:    handler.NewParecerHandler(pareceres),
		Sistema:    handler.NewSistemaHandler(sistemas),
		Tipo:       handler.NewTipoHandler(tipos),
		Health:     handler.NewHealthHandler(db, rdb),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
