// @title                       canvas2image API
// @version                     1.0
// @description                 Saves canvas images into the shared pictures collection.
// @BasePath                    /api
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/bulatminnakhmetov/canvas2image/docs"
	"github.com/bulatminnakhmetov/canvas2image/internal/config"
	"github.com/bulatminnakhmetov/canvas2image/internal/database"
	bridgehandler "github.com/bulatminnakhmetov/canvas2image/internal/handler/bridge"
	imagehandler "github.com/bulatminnakhmetov/canvas2image/internal/handler/image"
	"github.com/bulatminnakhmetov/canvas2image/internal/logging"
	"github.com/bulatminnakhmetov/canvas2image/internal/metrics"
	"github.com/bulatminnakhmetov/canvas2image/internal/middleware"
	"github.com/bulatminnakhmetov/canvas2image/internal/permission"
	mediarepo "github.com/bulatminnakhmetov/canvas2image/internal/repository/media"
	imageservice "github.com/bulatminnakhmetov/canvas2image/internal/service/image"
	storagemedia "github.com/bulatminnakhmetov/canvas2image/internal/storage/media"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	maxPayload, _ := cfg.MaxPayloadBytes()
	reg := metrics.NewRegistry()

	ctx := context.Background()
	store, err := storagemedia.New(ctx, cfg.MediaStore())
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Media.Backend).Msg("failed to init media store")
	}

	opts := []imageservice.Option{imageservice.WithMetrics(reg)}
	var index imagehandler.MediaIndex

	if cfg.IndexEnabled() {
		dbConfig := cfg.Database()
		db, err := database.NewConnection(dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := database.Migrate(db, dbConfig.DBName); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate media index")
		}
		repo := mediarepo.NewRepository(db)
		opts = append(opts, imageservice.WithScanner(repo))
		index = repo
	} else {
		log.Warn().Msg("DB_HOST not set, media index disabled")
	}

	imageService := imageservice.NewImageService(store, opts...)

	var authorizer permission.Authorizer = permission.Scoped{}
	if cfg.StorageRequirePermission {
		authorizer = permission.NewClaimsAuthorizer(true)
	}
	imageHandler := imagehandler.NewImageHandler(imageService, authorizer, index, maxPayload)
	bridgeHandler := bridgehandler.NewHandler(imageService, maxPayload)

	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(reg))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/metrics", reg.Handler)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(middleware.Auth([]byte(cfg.JWTSecret)))
		} else {
			log.Warn().Msg("JWT_SECRET not set, API routes are unauthenticated")
		}

		// The bridge lives as long as the socket, so no request timeout here.
		r.Get("/bridge", bridgeHandler.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(60 * time.Second))
			r.Post("/images", imageHandler.SaveImage)
			r.Get("/images", imageHandler.ListImages)
			r.Get("/images/entry", imageHandler.GetImage)
			r.Delete("/images", imageHandler.DeleteImage)
		})
	})

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server is starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("port", cfg.ServerPort).Msg("could not listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	imageService.Wait()

	log.Info().Msg("server gracefully stopped")
}
